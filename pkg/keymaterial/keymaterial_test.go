package keymaterial

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCreateKeyWritesValidBase64WithRestrictivePerms(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".key")

	require.NoError(t, CreateKey(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0600), info.Mode().Perm())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(data), 6)
	require.LessOrEqual(t, len(data), 1024)

	_, err = base64.StdEncoding.DecodeString(string(data))
	require.NoError(t, err)
}

func TestCreateKeyProducesDistinctKeys(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.key")
	b := filepath.Join(dir, "b.key")

	require.NoError(t, CreateKey(a))
	require.NoError(t, CreateKey(b))

	dataA, _ := os.ReadFile(a)
	dataB, _ := os.ReadFile(b)
	require.NotEqual(t, dataA, dataB)
}
