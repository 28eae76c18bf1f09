package mongoversion

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseValidVersion(t *testing.T) {
	v, err := Parse("4.4.18")
	require.NoError(t, err)
	require.Equal(t, "4.4.18", v.String())
}

func TestParseRejectsMalformedVersion(t *testing.T) {
	_, err := Parse("not-a-version")
	require.Error(t, err)
}

func TestUsesReplicatedConfigServer(t *testing.T) {
	old, err := Parse("3.2.0")
	require.NoError(t, err)
	require.False(t, UsesReplicatedConfigServer(old, false))
	require.True(t, UsesReplicatedConfigServer(old, true), "csrs flag forces replicated config server regardless of version")

	v34, err := Parse("3.4.0")
	require.NoError(t, err)
	require.True(t, UsesReplicatedConfigServer(v34, false))

	v50, err := Parse("5.0.9")
	require.NoError(t, err)
	require.True(t, UsesReplicatedConfigServer(v50, false))
}

func TestUsesTLSFlagFamily(t *testing.T) {
	v40, err := Parse("4.0.0")
	require.NoError(t, err)
	require.False(t, UsesTLSFlagFamily(v40))

	v42, err := Parse("4.2.0")
	require.NoError(t, err)
	require.True(t, UsesTLSFlagFamily(v42))
}

func TestDetectRejectsWhitespaceInBinPath(t *testing.T) {
	_, err := Detect(context.Background(), "/path with space/bin")
	require.Error(t, err)
}
