// Package history holds the rolling window of inference results shared
// between the ingestion loop (single writer) and the presentation layer
// (many readers). It provides a fixed-capacity ring with FIFO eviction and
// copy-out snapshots; nothing is persisted beyond the window.
package history
