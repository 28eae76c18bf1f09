package options

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateRejectsUsernameXorPassword(t *testing.T) {
	o := Options{Dir: "/tmp/d", Username: "root"}
	require.Error(t, o.Validate())

	o = Options{Dir: "/tmp/d", Password: "hunter2"}
	require.Error(t, o.Validate())

	o = Options{Dir: "/tmp/d", Username: "root", Password: "hunter2"}
	require.NoError(t, o.Validate())
}

func TestValidateRejectsArbiterWithoutReplicaSet(t *testing.T) {
	o := Options{Dir: "/tmp/d", Arbiter: true}
	require.Error(t, o.Validate())

	o.ReplicaSet = "rs0"
	require.NoError(t, o.Validate())
}

func TestValidateRejectsDataBearingNodesWithoutReplicaSet(t *testing.T) {
	o := Options{Dir: "/tmp/d", DataBearingNodes: 2}
	require.Error(t, o.Validate())
}

func TestValidateRequiresDir(t *testing.T) {
	o := Options{}
	require.Error(t, o.Validate())
}

func TestWithDefaultsStandalone(t *testing.T) {
	merged, err := WithDefaults(Options{Dir: "/tmp/d"})
	require.NoError(t, err)
	require.Equal(t, DefaultBasePort, merged.BasePort)
	require.Equal(t, 0, merged.DataBearingNodes)
}

func TestWithDefaultsReplicaSetNoArbiter(t *testing.T) {
	merged, err := WithDefaults(Options{Dir: "/tmp/d", ReplicaSet: "rs0"})
	require.NoError(t, err)
	require.Equal(t, DefaultDataBearingNodes, merged.DataBearingNodes)
}

func TestWithDefaultsReplicaSetWithArbiter(t *testing.T) {
	merged, err := WithDefaults(Options{Dir: "/tmp/d", ReplicaSet: "rs0", Arbiter: true})
	require.NoError(t, err)
	require.Equal(t, DefaultDataBearingNodesWithArbiter, merged.DataBearingNodes)
}

func TestWithDefaultsShardedSetsMongos(t *testing.T) {
	merged, err := WithDefaults(Options{Dir: "/tmp/d", Sharded: 2})
	require.NoError(t, err)
	require.Equal(t, 1, merged.Mongos)
}

func TestWithDefaultsPreservesExplicitValues(t *testing.T) {
	merged, err := WithDefaults(Options{Dir: "/tmp/d", BasePort: 30000, Sharded: 2, Mongos: 3})
	require.NoError(t, err)
	require.Equal(t, 30000, merged.BasePort)
	require.Equal(t, 3, merged.Mongos)
}
