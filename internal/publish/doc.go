// Package publish pushes the latest status card to an MQTT v5 broker.
//
// Publisher is a present.Sink. Each poller view whose newest entry has not
// been published yet is encoded as a Status and queued; the queue is a
// bounded channel that evicts the oldest entry when full, so a broker outage
// never blocks the poller and the freshest status always survives.
//
// Publisher.Run connects with paho.golang, drains the queue to
// <topic>/status (retained, configured QoS) and reconnects with truncated
// exponential backoff (1s→60s, ±25% jitter) when the connection drops.
package publish
