// Package source provides line-oriented readers for the sensor stream.
//
// Every Source bounds each ReadLine by a read timeout so the ingestion loop
// can observe shutdown: an empty line with a nil error means "nothing
// arrived in time". Partial lines are buffered across timeouts and only
// complete, newline-terminated lines are returned.
//
// Implementations:
//   - serial: a device opened with go.bug.st/serial
//   - tcp:    a line-oriented TCP bridge (ser2net and similar)
//   - file:   a recorded capture, optionally paced for replay
//   - stdin:  lines piped into the process
package source
