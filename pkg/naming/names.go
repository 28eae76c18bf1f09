// Package naming derives the on-disk directory and file names for a
// deployment's processes from their role and index.
package naming

import (
	"fmt"
	"path/filepath"
	"strings"
)

// StandaloneDir is the directory name for the single standalone node.
const StandaloneDir = "standalone"

// ArbiterDir is the directory name for the replica set arbiter.
const ArbiterDir = "arbiter"

// CSRSDir is the directory name for a replicated config server.
const CSRSDir = "csrs"

// ReplicaSetMemberDir returns the directory name for the N-th (1-based)
// data-bearing replica set member, e.g. "rs1", "rs2".
func ReplicaSetMemberDir(index int) string {
	return fmt.Sprintf("rs%d", index)
}

// ShardDir returns the directory name for a shard, e.g. "shard01".
// Indexes are 1-based and zero-padded to two digits.
func ShardDir(index int) string {
	return fmt.Sprintf("shard%02d", index)
}

// RouterDir returns the directory name for a mongos router, e.g. "router01".
// Indexes are 1-based and zero-padded to two digits.
func RouterDir(index int) string {
	return fmt.Sprintf("router%02d", index)
}

// KeyFileName is the name of the shared key file under the deployment root.
const KeyFileName = ".key"

// DescriptorFileName is the name of the persisted deployment descriptor.
const DescriptorFileName = "mongo-manager.yml"

// PIDFile returns the pid file path for a process whose argv[0] is binary
// (a path or bare name), inside dir. The basename of the binary determines
// the file name, e.g. ".../mongod" -> "<dir>/mongod.pid".
func PIDFile(dir, binary string) string {
	return filepath.Join(dir, basename(binary)+".pid")
}

// LogFile returns the log file path for a process whose argv[0] is binary,
// inside dir, e.g. ".../mongod" -> "<dir>/mongod.log".
func LogFile(dir, binary string) string {
	return filepath.Join(dir, basename(binary)+".log")
}

// PIDFileFromLogFile derives a pid file path from a log file path by
// replacing the ".log" suffix with ".pid", per the spec invariant that
// the two paths share a basename stem.
func PIDFileFromLogFile(logPath string) string {
	return strings.TrimSuffix(logPath, ".log") + ".pid"
}

func basename(binary string) string {
	return filepath.Base(binary)
}
