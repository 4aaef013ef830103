// Package client talks to the remote inspection API.
//
// The Client interface is what the sync manager consumes; HTTPClient is the
// JSON over HTTP implementation. Requests carry the session cookie held by a
// Session, which also rotates the token when the server sets a new cookie and
// refuses to send a token whose JWT expiry has passed.
//
// # Error Handling
//
// Responses are mapped onto errors matched with errors.Is/As:
//   - 401, 403 and an expired session: ErrUnauthorized
//   - 404: common.ErrNotFound
//   - 409: *ConflictError, which matches common.ErrVersionConflict
//   - 5xx, timeouts and transport failures: ErrUnavailable
//   - any other 4xx: ErrRejected
package client
