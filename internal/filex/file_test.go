package filex

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
)

func chdir(t *testing.T, dir string) func() {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	return func() { _ = os.Chdir(old) }
}

func TestEnsureDir_ResolvesRelativeToCWD(t *testing.T) {
	tmp, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	defer chdir(t, tmp)()

	got, err := EnsureDir(filepath.Join("data", "photos"))
	require.NoError(t, err)

	want := filepath.Join(tmp, "data", "photos")
	require.Equal(t, want, got)

	fi, err := os.Stat(want)
	require.NoError(t, err)
	require.True(t, fi.IsDir(), "should create a directory")

	if runtime.GOOS != "windows" {
		require.Equal(t, os.FileMode(0o700), fi.Mode().Perm()&0o700)
	}
}

func TestEnsureDir_Idempotent(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "db")

	first, err := EnsureDir(dir)
	require.NoError(t, err)
	second, err := EnsureDir(dir)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestEnsureDir_FailsIfFileWithSameNameExists(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "db")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))

	_, err := EnsureDir(blocker)
	require.Error(t, err, "should fail when a file exists with the same name")
}

func TestEnsureParentDir(t *testing.T) {
	file := filepath.Join(t.TempDir(), "a", "b", "local.db")
	require.NoError(t, EnsureParentDir(file))

	fi, err := os.Stat(filepath.Dir(file))
	require.NoError(t, err)
	require.True(t, fi.IsDir())

	_, err = os.Stat(file)
	require.True(t, os.IsNotExist(err), "only the directory is created")
}
