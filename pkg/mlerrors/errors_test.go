package mlerrors

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecorateAppendsSortedLogTails(t *testing.T) {
	dir := t.TempDir()

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "shard02"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "shard01"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "shard02", "mongod.log"), []byte("shard02 log line\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "shard01", "mongod.log"), []byte("shard01 log line\n"), 0644))

	base := &SpawnError{Msg: "mongod exited immediately"}
	decorated := Decorate(dir, base)

	require.Error(t, decorated)
	require.Contains(t, decorated.Error(), "shard01 log line")
	require.Contains(t, decorated.Error(), "shard02 log line")

	idx1 := indexOf(decorated.Error(), "shard01/mongod.log")
	idx2 := indexOf(decorated.Error(), "shard02/mongod.log")
	require.True(t, idx1 < idx2, "expected shard01 tail before shard02 tail")

	var spawnErr *SpawnError
	require.True(t, errors.As(decorated, &spawnErr))
}

func TestDecorateNilErrorReturnsNil(t *testing.T) {
	require.NoError(t, Decorate(t.TempDir(), nil))
}

func indexOf(s, substr string) int {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}
