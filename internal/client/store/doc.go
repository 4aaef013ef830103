// Package store is the offline-first local store of the sync engine.
//
// A Store owns the on-device SQLite database. It accepts local writes at any
// time, marking the touched record pending and appending a sync ledger row,
// and it ingests authoritative server data under one rule: a record that is
// pending or in conflict is never overwritten by incoming data. Records move
// between states as follows:
//
//	synced   -> pending   local write
//	pending  -> synced    push acknowledged at the current revision
//	pending  -> conflict  push rejected for a version mismatch
//	conflict -> pending   ResolveConflict(KeepLocal)
//	conflict -> synced    ResolveConflict(DiscardLocal)
//
// Writes are serialized by a store-wide mutex and committed one transaction
// per operation; reads use the connection pool and never wait for writers.
package store
