package buildinfo

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrintBuildData(t *testing.T) {
	var buf bytes.Buffer
	PrintBuildData(&buf)
	assert.Equal(t, "Build version: N/A\nBuild date: N/A\nBuild commit: N/A\n", buf.String())

	Version, CommitHash = "v0.3.0", "abc1234"
	t.Cleanup(func() { Version, CommitHash = "", "" })

	buf.Reset()
	PrintBuildData(&buf)
	assert.Contains(t, buf.String(), "Build version: v0.3.0\n")
	assert.Contains(t, buf.String(), "Build commit: abc1234\n")
}
