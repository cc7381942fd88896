// Package types defines the shared in-memory types that flow through the
// pipeline: the validated sensor sample, its enriched form, the inference
// result and the history entry stored in the rolling window.
//
// Values of these types are never mutated after construction; the history
// store hands out copies, so readers may hold them across render cycles.
package types
