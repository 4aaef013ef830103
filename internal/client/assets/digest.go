package assets

import (
	"encoding/hex"
	"io"
	"mime"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// Digest returns the hex BLAKE2b-256 of everything read from r.
func Digest(r io.Reader) (string, error) {
	h, err := blake2b.New256(nil)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// ObjectKey is the storage key hint for a file: its digest plus the original
// extension.
func ObjectKey(digest, path string) string {
	return digest + strings.ToLower(filepath.Ext(path))
}

func contentType(path string) string {
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(path))); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
