package descriptor

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zph/mlaunch/pkg/mongoversion"
	"github.com/zph/mlaunch/pkg/options"
	"github.com/zph/mlaunch/pkg/planner"
)

func buildTestPlan(t *testing.T, dir string) *planner.Plan {
	t.Helper()
	opts, err := options.WithDefaults(options.Options{Dir: dir, ReplicaSet: "rs0"})
	require.NoError(t, err)
	v, err := mongoversion.Parse("6.0.0")
	require.NoError(t, err)
	plan, err := planner.Build(opts, v, "")
	require.NoError(t, err)
	return plan
}

func TestFromPlanUnshardedHasNilSharded(t *testing.T) {
	d := FromPlan(buildTestPlan(t, "/tmp/d"))
	require.Nil(t, d.Sharded)
	require.Len(t, d.DBDirs, 3)
	for _, dir := range d.DBDirs {
		require.Contains(t, d.Settings, dir)
		require.NotEmpty(t, d.Settings[dir].StartCmd)
	}
}

func TestFromPlanShardedSetsShardedCount(t *testing.T) {
	dir := "/tmp/d"
	opts, err := options.WithDefaults(options.Options{Dir: dir, BasePort: 30000, Sharded: 2, Mongos: 1})
	require.NoError(t, err)
	v, err := mongoversion.Parse("6.0.0")
	require.NoError(t, err)
	plan, err := planner.Build(opts, v, "")
	require.NoError(t, err)

	d := FromPlan(plan)
	require.NotNil(t, d.Sharded)
	require.Equal(t, 2, *d.Sharded)
	require.Equal(t, 1, d.Mongos)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	plan := buildTestPlan(t, dir)
	original := FromPlan(plan)

	require.NoError(t, Save(dir, original))

	// No stray temp files left behind after a successful save.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		require.NotContains(t, e.Name(), ".tmp")
	}

	loaded, err := Load(dir)
	require.NoError(t, err)
	require.Equal(t, original.DBDirs, loaded.DBDirs)
	for _, d := range original.DBDirs {
		require.Equal(t, original.Settings[d].StartCmd, loaded.Settings[d].StartCmd)
	}
}

func TestPath(t *testing.T) {
	require.Equal(t, filepath.Join("/tmp/d", "mongo-manager.yml"), Path("/tmp/d"))
}
