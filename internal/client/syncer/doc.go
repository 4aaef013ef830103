// Package syncer drains locally pending inspection data to the remote API
// and pulls the server's copy back.
//
// A run, started with Manager.StartSync, goes through these phases:
//
//  1. enumerate pending inspections and entries whose backoff has elapsed
//  2. push inspections
//  3. for each entry, upload local attachments, commit the remote
//     references, then push the structured fields
//  4. pull GET /inspections/mine and ingest it into the store
//
// Each record is settled on its own: an acknowledged push marks it synced
// (only if it was not edited while the push was in flight), a version
// mismatch marks it conflict, and any other failure leaves it pending with a
// capped exponential backoff. Only store failures and a rejected session
// abort a run.
//
// Scheduler feeds StartSync from a ticker and from connectivity regain
// notifications. At most one run is ever in flight.
package syncer
