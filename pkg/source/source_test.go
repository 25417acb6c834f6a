package source

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilesystemSource(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "script.sh")
	require.NoError(t, os.WriteFile(path, []byte("echo hello\n"), 0o644))

	src := NewFilesystem()

	content, err := src.Read(path)
	require.NoError(t, err)
	assert.Equal(t, "echo hello\n", string(content))

	// Non-existent file should error
	_, err = src.Read(filepath.Join(dir, "nonexistent.sh"))
	assert.Error(t, err)
}

func TestMapSource(t *testing.T) {
	src := NewMap(map[string]string{
		"app.py":    "x = 1\n",
		"deploy.sh": "echo deploy\n",
	})

	content, err := src.Read("app.py")
	require.NoError(t, err)
	assert.Equal(t, "x = 1\n", string(content))

	_, err = src.Read("missing.py")
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)

	assert.ElementsMatch(t, []string{"app.py", "deploy.sh"}, src.Paths())
}
