// Package present turns history snapshots into display-ready views.
//
// view.go holds the pure Build function: fault card, health card, aligned
// time series and the 3D operating-point scatter. diagnostics.go derives
// plain-English hints from the same window. poller.go runs Build on a fixed
// interval and fans each view out to sinks (WebSocket hub, MQTT publisher,
// alert engine, gauges) while keeping the newest one for pull-based
// readers such as the REST API.
//
// Nothing in this package writes to the history store.
package present
