// Package buildinfo exposes version data stamped in at link time, e.g.
//
//	go build -ldflags "-X github.com/dmitrijs2005/fieldsync/internal/buildinfo.Version=v1.2.0"
package buildinfo

import (
	"fmt"
	"io"
)

// Set via -ldflags at build time.
var (
	Version    string
	BuildDate  string
	CommitHash string
)

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

// PrintBuildData writes the build version, date and commit to w.
func PrintBuildData(w io.Writer) {
	fmt.Fprintf(w, "Build version: %s\n", orNA(Version))
	fmt.Fprintf(w, "Build date: %s\n", orNA(BuildDate))
	fmt.Fprintf(w, "Build commit: %s\n", orNA(CommitHash))
}
