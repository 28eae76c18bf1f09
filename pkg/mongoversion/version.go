// Package mongoversion invokes a mongod binary with --version and parses
// its semantic version, and exposes the version-gated constraints the
// planner needs (config-server-as-replica-set, TLS flag family).
package mongoversion

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"

	hashiversion "github.com/hashicorp/go-version"
	"golang.org/x/mod/semver"

	"github.com/zph/mlaunch/pkg/mlerrors"
)

var versionPattern = regexp.MustCompile(`db version v(\d+\.\d+\.\d+)`)

// CSRSMinVersion is the version at and above which a config server runs
// as a one-member replica set by default.
var CSRSMinVersion = hashiversion.Must(hashiversion.NewVersion("3.4.0"))

// TLSFlagMinVersion is the version at and above which the --tls* flag
// family replaces --ssl*.
var TLSFlagMinVersion = hashiversion.Must(hashiversion.NewVersion("4.2.0"))

// Version wraps a parsed mongod server version.
type Version struct {
	raw  string
	semv *hashiversion.Version
}

// String returns the canonical "MAJOR.MINOR.PATCH" form.
func (v Version) String() string { return v.raw }

// AtLeast reports whether v is greater than or equal to other.
func (v Version) AtLeast(other *hashiversion.Version) bool {
	return v.semv.GreaterThanOrEqual(other)
}

// Detect invokes "<binDir>/mongod --version" (or "mongod" on PATH when
// binDir is empty), parses the first "db version vX.Y.Z" occurrence from
// stdout, and returns the parsed version. The result is meant to be
// cached by the caller per run; Detect itself performs no caching.
func Detect(ctx context.Context, binDir string) (Version, error) {
	binary := "mongod"
	if binDir != "" {
		binary = filepath.Join(binDir, "mongod")
	}

	if strings.ContainsAny(binary, " \t\n") {
		return Version{}, &mlerrors.VersionProbeError{Msg: fmt.Sprintf("binary path %q contains whitespace", binary)}
	}

	cmd := exec.CommandContext(ctx, binary, "--version")
	out, err := cmd.Output()
	if err != nil {
		return Version{}, &mlerrors.VersionProbeError{Msg: fmt.Sprintf("%s --version failed", binary), Err: err}
	}

	match := versionPattern.FindSubmatch(out)
	if match == nil {
		return Version{}, &mlerrors.VersionProbeError{Msg: fmt.Sprintf("could not find version pattern in %s --version output", binary)}
	}

	return Parse(string(match[1]))
}

// Parse validates and wraps a raw "MAJOR.MINOR.PATCH" string. Exported
// for tests and for any caller that already has a version string in hand
// (e.g. one read back from a persisted descriptor).
func Parse(raw string) (Version, error) {
	canonical := semver.Canonical("v" + raw)
	if !semver.IsValid(canonical) {
		return Version{}, &mlerrors.VersionProbeError{Msg: fmt.Sprintf("invalid semantic version %q", raw)}
	}

	semv, err := hashiversion.NewVersion(raw)
	if err != nil {
		return Version{}, &mlerrors.VersionProbeError{Msg: fmt.Sprintf("could not parse version %q", raw), Err: err}
	}

	return Version{raw: raw, semv: semv}, nil
}

// UsesReplicatedConfigServer implements the config-server-shape predicate:
// true when csrsForced is set or the detected version is >= 3.4.
func UsesReplicatedConfigServer(v Version, csrsForced bool) bool {
	return csrsForced || v.AtLeast(CSRSMinVersion)
}

// UsesTLSFlagFamily reports whether v uses the newer --tls* flag family
// (true) as opposed to the legacy --ssl* family (false).
func UsesTLSFlagFamily(v Version) bool {
	return v.AtLeast(TLSFlagMinVersion)
}
