// Package connectivity tracks whether the remote API is reachable.
//
// An Observer collects observations from a Probe (polled by Run or Check) or
// from the host platform (Report) and publishes debounced online/offline
// transitions to subscribers. The sync scheduler subscribes to learn when
// connectivity comes back.
package connectivity
