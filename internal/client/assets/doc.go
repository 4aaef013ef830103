// Package assets moves locally captured photos and voice notes to remote
// object storage.
//
// Pipeline hashes each file with BLAKE2b-256, derives the object key from the
// digest and hands the bytes to an Uploader. The digest doubles as an
// idempotency key, so uploading the same file twice is harmless. Pipeline
// never retries on its own; failed uploads surface as *UploadFailedError and
// the sync manager decides when to try again.
//
// Two Uploader backends are provided: HTTPUploader posts to the API's
// /objects/upload endpoint and S3Uploader writes straight to an S3 compatible
// bucket.
package assets
