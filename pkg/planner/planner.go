// Package planner derives, from validated options and a detected server
// version, the ordered list of processes a deployment needs: their
// directories, ports, roles, and argv.
package planner

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/zph/mlaunch/pkg/mongoversion"
	"github.com/zph/mlaunch/pkg/naming"
	"github.com/zph/mlaunch/pkg/options"
)

// Role identifies the kind of process a ProcessPlan describes.
type Role int

const (
	RoleStandalone Role = iota
	RoleReplicaSetMember
	RoleArbiter
	RoleConfigServer
	RoleShard
	RoleRouter
)

func (r Role) String() string {
	switch r {
	case RoleStandalone:
		return "standalone"
	case RoleReplicaSetMember:
		return "replica-set-member"
	case RoleArbiter:
		return "arbiter"
	case RoleConfigServer:
		return "config-server"
	case RoleShard:
		return "shard"
	case RoleRouter:
		return "router"
	default:
		return "unknown"
	}
}

// ProcessPlan describes a single process to spawn.
type ProcessPlan struct {
	Dir        string
	Port       int
	Role       Role
	ReplicaSet string // empty when the process does not run with --replSet
	Argv       []string
}

// PIDFile returns the pid file path for this process, derived from argv[0].
func (p ProcessPlan) PIDFile() string { return naming.PIDFile(p.Dir, p.Argv[0]) }

// LogFile returns the log file path for this process, derived from argv[0].
func (p ProcessPlan) LogFile() string { return naming.LogFile(p.Dir, p.Argv[0]) }

// Plan is the full per-deployment plan, with Processes in start order
// (stop order is this reversed, per the spec's "stop order is simply
// reversed start order" design note).
type Plan struct {
	Sharded                int // 0 when not sharded
	Mongos                 int // 0 when not sharded
	ReplicatedConfigServer bool
	ConfigDBOpt            string // only set for sharded deployments
	Processes              []ProcessPlan
}

// Build derives the full plan for opts (already defaulted and validated)
// against the detected server version. keyFilePath is the path to the
// shared key file when auth is enabled and the topology needs one
// (replica set or sharded; standalone never takes a key file), or empty.
func Build(opts options.Options, version mongoversion.Version, keyFilePath string) (*Plan, error) {
	switch {
	case opts.IsSharded():
		return buildSharded(opts, version, keyFilePath)
	case opts.IsReplicaSet():
		return buildReplicaSet(opts, version, keyFilePath)
	default:
		return buildStandalone(opts, version)
	}
}

func buildStandalone(opts options.Options, version mongoversion.Version) (*Plan, error) {
	dir := filepath.Join(opts.Dir, naming.StandaloneDir)
	port := opts.BasePort

	argv := assembleMongodArgv(opts, version, mongodArgvSpec{
		dir:              dir,
		port:             port,
		role:             RoleStandalone,
		passthroughExtra: opts.MongodPassthroughArgs,
	})

	return &Plan{
		Processes: []ProcessPlan{{Dir: dir, Port: port, Role: RoleStandalone, Argv: argv}},
	}, nil
}

func buildReplicaSet(opts options.Options, version mongoversion.Version, keyFilePath string) (*Plan, error) {
	n := opts.DataBearingNodes
	processes := make([]ProcessPlan, 0, n+1)

	for i := 1; i <= n; i++ {
		dir := filepath.Join(opts.Dir, naming.ReplicaSetMemberDir(i))
		port := opts.BasePort + i - 1
		argv := assembleMongodArgv(opts, version, mongodArgvSpec{
			dir:              dir,
			port:             port,
			role:             RoleReplicaSetMember,
			replicaSet:       opts.ReplicaSet,
			keyFilePath:      keyFilePath,
			passthroughExtra: opts.MongodPassthroughArgs,
		})
		processes = append(processes, ProcessPlan{Dir: dir, Port: port, Role: RoleReplicaSetMember, ReplicaSet: opts.ReplicaSet, Argv: argv})
	}

	if opts.Arbiter {
		dir := filepath.Join(opts.Dir, naming.ArbiterDir)
		port := opts.BasePort + n
		argv := assembleMongodArgv(opts, version, mongodArgvSpec{
			dir:              dir,
			port:             port,
			role:             RoleArbiter,
			replicaSet:       opts.ReplicaSet,
			keyFilePath:      keyFilePath,
			passthroughExtra: opts.MongodPassthroughArgs,
		})
		processes = append(processes, ProcessPlan{Dir: dir, Port: port, Role: RoleArbiter, ReplicaSet: opts.ReplicaSet, Argv: argv})
	}

	return &Plan{Processes: processes}, nil
}

func buildSharded(opts options.Options, version mongoversion.Version, keyFilePath string) (*Plan, error) {
	m := opts.Mongos
	s := opts.Sharded

	replicatedConfigServer := mongoversion.UsesReplicatedConfigServer(version, opts.CSRS)

	configPort := opts.BasePort + m
	configDir := filepath.Join(opts.Dir, naming.CSRSDir)

	var configDBOpt string
	var configReplicaSet string
	if replicatedConfigServer {
		configReplicaSet = naming.CSRSDir
		configDBOpt = fmt.Sprintf("%s/localhost:%d", naming.CSRSDir, configPort)
	} else {
		configDBOpt = fmt.Sprintf("localhost:%d", configPort)
	}

	configArgv := assembleMongodArgv(opts, version, mongodArgvSpec{
		dir:              configDir,
		port:             configPort,
		role:             RoleConfigServer,
		replicaSet:       configReplicaSet,
		keyFilePath:      keyFilePath,
		passthroughExtra: opts.ConfigServerPassthroughArgs,
	})

	processes := make([]ProcessPlan, 0, 1+s+m)
	processes = append(processes, ProcessPlan{Dir: configDir, Port: configPort, Role: RoleConfigServer, ReplicaSet: configReplicaSet, Argv: configArgv})

	for i := 1; i <= s; i++ {
		dir := filepath.Join(opts.Dir, naming.ShardDir(i))
		port := opts.BasePort + m + i
		rsName := naming.ShardDir(i)
		argv := assembleMongodArgv(opts, version, mongodArgvSpec{
			dir:              dir,
			port:             port,
			role:             RoleShard,
			replicaSet:       rsName,
			keyFilePath:      keyFilePath,
			passthroughExtra: opts.MongodPassthroughArgs,
		})
		processes = append(processes, ProcessPlan{Dir: dir, Port: port, Role: RoleShard, ReplicaSet: rsName, Argv: argv})
	}

	for i := 1; i <= m; i++ {
		dir := filepath.Join(opts.Dir, naming.RouterDir(i))
		port := opts.BasePort + i - 1
		argv := assembleMongosArgv(opts, version, mongosArgvSpec{
			dir:              dir,
			port:             port,
			configDB:         configDBOpt,
			keyFilePath:      keyFilePath,
			passthroughExtra: opts.MongosPassthroughArgs,
		})
		processes = append(processes, ProcessPlan{Dir: dir, Port: port, Role: RoleRouter, Argv: argv})
	}

	return &Plan{
		Sharded:                s,
		Mongos:                 m,
		ReplicatedConfigServer: replicatedConfigServer,
		ConfigDBOpt:            configDBOpt,
		Processes:              processes,
	}, nil
}

type mongodArgvSpec struct {
	dir              string
	port             int
	role             Role
	replicaSet       string
	keyFilePath      string
	passthroughExtra []string
}

func assembleMongodArgv(opts options.Options, version mongoversion.Version, spec mongodArgvSpec) []string {
	binary := resolveBinary(opts.BinDir, "mongod")

	argv := []string{
		binary,
		"--logpath", naming.LogFile(spec.dir, binary),
		"--logappend",
		"--pidfilepath", naming.PIDFile(spec.dir, binary),
		"--dbpath", spec.dir,
		"--port", strconv.Itoa(spec.port),
	}

	if spec.replicaSet != "" {
		argv = append(argv, "--replSet", spec.replicaSet)
	}

	if spec.keyFilePath != "" {
		argv = append(argv, "--keyFile", spec.keyFilePath)
	}

	switch spec.role {
	case RoleConfigServer:
		argv = append(argv, "--configsvr")
	case RoleShard:
		argv = append(argv, "--shardsvr")
	}

	argv = append(argv, tlsArgs(opts, version)...)
	argv = append(argv, opts.PassthroughArgs...)
	argv = append(argv, spec.passthroughExtra...)

	return argv
}

type mongosArgvSpec struct {
	dir              string
	port             int
	configDB         string
	keyFilePath      string
	passthroughExtra []string
}

func assembleMongosArgv(opts options.Options, version mongoversion.Version, spec mongosArgvSpec) []string {
	binary := resolveBinary(opts.BinDir, "mongos")

	argv := []string{
		binary,
		"--logpath", naming.LogFile(spec.dir, binary),
		"--logappend",
		"--pidfilepath", naming.PIDFile(spec.dir, binary),
		"--port", strconv.Itoa(spec.port),
		"--configdb", spec.configDB,
	}

	if spec.keyFilePath != "" {
		argv = append(argv, "--keyFile", spec.keyFilePath)
	}

	argv = append(argv, tlsArgs(opts, version)...)
	argv = append(argv, opts.PassthroughArgs...)
	argv = append(argv, spec.passthroughExtra...)

	return argv
}

// tlsArgs resolves the version-gated TLS flag family once per process,
// per the design note that no downstream code should branch on version.
func tlsArgs(opts options.Options, version mongoversion.Version) []string {
	if !opts.TLSEnabled() {
		return nil
	}

	if mongoversion.UsesTLSFlagFamily(version) {
		return []string{
			"--tlsMode", opts.TLSMode,
			"--tlsCertificateKeyFile", opts.TLSCertificateKeyFile,
			"--tlsCAFile", opts.TLSCAFile,
		}
	}

	sslMode := strings.Replace(opts.TLSMode, "TLS", "SSL", 1)
	return []string{
		"--sslMode", sslMode,
		"--sslPEMKeyFile", opts.TLSCertificateKeyFile,
		"--sslCAFile", opts.TLSCAFile,
	}
}

func resolveBinary(binDir, name string) string {
	if binDir == "" {
		return name
	}
	return filepath.Join(binDir, name)
}
