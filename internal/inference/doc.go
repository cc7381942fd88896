// Package inference runs the fault classifier and health regressor over one
// enriched sample.
//
// The Adapter validates the recorded feature-name list against the canonical
// schema once, at construction, and fixes the classifier's column order from
// it. Per-sample failures are returned as *InferenceError and never stop the
// caller; construction failures (ErrSchemaMismatch, ErrModelUnavailable) are
// fatal at startup.
package inference
