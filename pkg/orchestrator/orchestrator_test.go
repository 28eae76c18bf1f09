package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zph/mlaunch/pkg/descriptor"
	"github.com/zph/mlaunch/pkg/naming"
)

// writeFakeServer returns a script standing in for mongod/mongos: it
// parses --pidfilepath from its own argv and writes its pid there (as
// mongod does given --pidfilepath), then on TERM appends name to the
// file named by --marker before exiting, letting tests observe stop
// order without relying on timing.
func writeFakeServer(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	script := filepath.Join(dir, "fakemongod.sh")
	content := `#!/bin/sh
pidfile=""
marker=""
name=""
prev=""
for arg in "$@"; do
  case "$prev" in
    --pidfilepath) pidfile="$arg" ;;
    --marker) marker="$arg" ;;
    --name) name="$arg" ;;
  esac
  prev="$arg"
done
trap 'echo "$name" >> "$marker"; exit 0' TERM
echo $$ > "$pidfile"
while true; do sleep 1; done
`
	require.NoError(t, os.WriteFile(script, []byte(content), 0755))
	return script
}

func writeDescriptor(t *testing.T, dir string, dbDirs []string, startCmds map[string][]string, sharded *int) {
	t.Helper()
	d := &descriptor.Descriptor{
		Sharded:  sharded,
		DBDirs:   dbDirs,
		Settings: make(map[string]descriptor.Settings, len(dbDirs)),
	}
	for _, db := range dbDirs {
		require.NoError(t, os.MkdirAll(db, 0755))
		d.Settings[db] = descriptor.Settings{StartCmd: startCmds[db]}
	}
	require.NoError(t, descriptor.Save(dir, d))
}

func TestStartSpawnsEveryDirectory(t *testing.T) {
	script := writeFakeServer(t)
	root := t.TempDir()

	dirA := filepath.Join(root, "a")
	dirB := filepath.Join(root, "b")
	marker := filepath.Join(root, "marker.txt")

	startCmds := map[string][]string{
		dirA: {script, "--pidfilepath", naming.PIDFile(dirA, script), "--marker", marker, "--name", "a"},
		dirB: {script, "--pidfilepath", naming.PIDFile(dirB, script), "--marker", marker, "--name", "b"},
	}
	writeDescriptor(t, root, []string{dirA, dirB}, startCmds, nil)

	require.NoError(t, Start(context.Background(), root))

	pidA, err := readPIDFileEventually(t, naming.PIDFile(dirA, script))
	require.NoError(t, err)
	require.Greater(t, pidA, 0)
	pidB, err := readPIDFileEventually(t, naming.PIDFile(dirB, script))
	require.NoError(t, err)
	require.Greater(t, pidB, 0)

	require.NoError(t, Stop(context.Background(), root))
}

func TestStopOrderIsSynchronousForSharded(t *testing.T) {
	script := writeFakeServer(t)
	root := t.TempDir()

	csrs := filepath.Join(root, "csrs")
	shard01 := filepath.Join(root, "shard01")
	router01 := filepath.Join(root, "router01")
	marker := filepath.Join(root, "marker.txt")

	startCmds := map[string][]string{
		csrs:     {script, "--pidfilepath", naming.PIDFile(csrs, script), "--marker", marker, "--name", "csrs"},
		shard01:  {script, "--pidfilepath", naming.PIDFile(shard01, script), "--marker", marker, "--name", "shard01"},
		router01: {script, "--pidfilepath", naming.PIDFile(router01, script), "--marker", marker, "--name", "router01"},
	}
	sharded := 1
	writeDescriptor(t, root, []string{csrs, shard01, router01}, startCmds, &sharded)

	require.NoError(t, Start(context.Background(), root))
	require.NoError(t, Stop(context.Background(), root))

	data, err := os.ReadFile(marker)
	require.NoError(t, err)
	order := strings.Fields(string(data))
	require.Equal(t, []string{"router01", "shard01", "csrs"}, order)
}

func TestStopSkipsMissingPidFileSilently(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "standalone")
	require.NoError(t, os.MkdirAll(dir, 0755))

	startCmds := map[string][]string{
		dir: {"/does/not/matter", "--pidfilepath", naming.PIDFile(dir, "mongod")},
	}
	writeDescriptor(t, root, []string{dir}, startCmds, nil)

	require.NoError(t, Stop(context.Background(), root))
}

func TestStopIsIdempotent(t *testing.T) {
	script := writeFakeServer(t)
	root := t.TempDir()
	dir := filepath.Join(root, "standalone")
	marker := filepath.Join(root, "marker.txt")

	startCmds := map[string][]string{
		dir: {script, "--pidfilepath", naming.PIDFile(dir, script), "--marker", marker, "--name", "standalone"},
	}
	writeDescriptor(t, root, []string{dir}, startCmds, nil)

	require.NoError(t, Start(context.Background(), root))
	require.NoError(t, Stop(context.Background(), root))
	require.NoError(t, Stop(context.Background(), root))
}

func TestStatusReflectsPidFileAndLiveness(t *testing.T) {
	script := writeFakeServer(t)
	root := t.TempDir()
	dir := filepath.Join(root, "standalone")
	marker := filepath.Join(root, "marker.txt")

	startCmds := map[string][]string{
		dir: {script, "--pidfilepath", naming.PIDFile(dir, script), "--marker", marker, "--name", "standalone"},
	}
	writeDescriptor(t, root, []string{dir}, startCmds, nil)

	require.NoError(t, Start(context.Background(), root))

	statuses, err := Status(root)
	require.NoError(t, err)
	require.Len(t, statuses, 1)
	require.True(t, statuses[0].HasPID)
	require.True(t, statuses[0].Running)

	require.NoError(t, Stop(context.Background(), root))

	statuses, err = Status(root)
	require.NoError(t, err)
	require.True(t, statuses[0].HasPID)
	require.False(t, statuses[0].Running)
}

func readPIDFileEventually(t *testing.T, path string) (int, error) {
	t.Helper()
	require.Eventually(t, func() bool {
		_, err := os.Stat(path)
		return err == nil
	}, 2*time.Second, 20*time.Millisecond)
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}
