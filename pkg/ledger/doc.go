// Package ledger records which media items of an account are already on disk.
//
// Each account folder holds an append-only JSON Lines file. Every Record call
// appends one line and fsyncs before returning, so an item is only considered
// downloaded once its ledger line is durable. A torn final line left by a
// crash is cut from the file on the next Load and the item is fetched again;
// any other malformed line is reported as a ledger_io error.
package ledger
