// Package registry implements the Instrument Registry.
//
// The registry is the session's write-once ledger of instruments entered by
// the user. Records are validated on entry, kept in insertion order, and
// never updated or removed. Duplicate symbols are kept as separate records.
// Every successful add emits a Change on the Changes channel so the symbol
// selector can refresh.
package registry
