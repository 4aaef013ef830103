// Package inspections persists inspection rows of the local store.
//
// The SQLite implementation works over dbx.DBTX, so the store can run it
// either against the pooled database for reads or inside a write
// transaction. Sync bookkeeping columns (sync_status, version, revision,
// server_version) live on the row; retry state lives in push_state, owned
// by the ledger package, and is only joined here when listing pending work.
package inspections
