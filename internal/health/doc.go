// Package health maps a model health index onto status bands and summarises
// a window of results.
//
// Status bands: Healthy >80, Moderate Risk 50–80 (both ends inclusive),
// Faulty <50. A non-finite index is Faulty.
//
// Summarize is a pure function over a history snapshot; the REST layer and
// the MQTT status card both use it.
package health
