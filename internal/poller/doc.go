// Package poller implements the Polling Controller and Data Aggregator.
//
// The Polling Controller:
//   - Owns the watched symbol (Idle or Watching)
//   - Runs one recurring timer per selection, ticking immediately and then every Interval
//   - Tags each tick with the selection generation and discards stale results
//   - Publishes complete RenderSnapshots to a SnapshotHandler
//
// The Data Aggregator fetches price, P&L and indicators concurrently and
// joins them into one snapshot, or fails the whole tick with a
// *PartialFetchError.
package poller
