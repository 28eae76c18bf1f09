package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zph/mlaunch/pkg/mongoversion"
	"github.com/zph/mlaunch/pkg/options"
	"github.com/zph/mlaunch/pkg/orchestrator"
	"github.com/zph/mlaunch/pkg/planner"
)

var initOpts options.Options
var initDryRun bool

func init() {
	flags := initCmd.Flags()
	flags.StringVar(&initOpts.BinDir, "bin-dir", "", "directory containing mongod/mongos (default: resolve on PATH)")
	flags.IntVar(&initOpts.BasePort, "base-port", 0, "lowest port allocated (default 27017)")
	flags.StringVar(&initOpts.ReplicaSet, "replica-set", "", "replica set name; presence selects the replica-set topology")
	flags.IntVar(&initOpts.Sharded, "sharded", 0, "number of shards; presence selects the sharded topology")
	flags.IntVar(&initOpts.Mongos, "mongos", 0, "number of routers (default 1 when sharded)")
	flags.BoolVar(&initOpts.CSRS, "csrs", false, "force config-server-as-replica-set even for older server versions")
	flags.BoolVar(&initOpts.Arbiter, "arbiter", false, "add an arbiter to the replica set")
	flags.IntVar(&initOpts.DataBearingNodes, "data-bearing-nodes", 0, "replica set members that carry data (default 3, or 2 with --arbiter)")
	flags.StringVar(&initOpts.Username, "username", "", "admin username; enables auth together with --password")
	flags.StringVar(&initOpts.Password, "password", "", "admin password; enables auth together with --username")
	flags.StringVar(&initOpts.TLSMode, "tls-mode", "", "TLS mode, e.g. requireTLS")
	flags.StringVar(&initOpts.TLSCertificateKeyFile, "tls-certificate-key-file", "", "PEM file with the server certificate and key")
	flags.StringVar(&initOpts.TLSCAFile, "tls-ca-file", "", "PEM file with the CA certificate")
	flags.StringSliceVar(&initOpts.PassthroughArgs, "passthrough-args", nil, "extra args appended to every process")
	flags.StringSliceVar(&initOpts.MongodPassthroughArgs, "mongod-passthrough-args", nil, "extra args appended to mongod processes")
	flags.StringSliceVar(&initOpts.MongosPassthroughArgs, "mongos-passthrough-args", nil, "extra args appended to mongos (router) processes")
	flags.StringSliceVar(&initOpts.ConfigServerPassthroughArgs, "config-server-passthrough-args", nil, "extra args appended to the config server")
	flags.BoolVar(&initDryRun, "dry-run", false, "print the plan without starting any server or touching the network")

	rootCmd.AddCommand(initCmd)
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Provision a new deployment",
	RunE: func(cmd *cobra.Command, args []string) error {
		initOpts.Dir = rootDir

		if initDryRun {
			return runDryRun(cmd.Context(), initOpts)
		}

		d, err := orchestrator.Init(cmd.Context(), initOpts)
		if err != nil {
			return err
		}
		fmt.Printf("deployment ready in %s (%d directories)\n", rootDir, len(d.DBDirs))
		return nil
	},
}

// runDryRun previews the plan the given options would produce, without
// creating any directory, starting any server, or opening a connection.
// It does run "mongod --version" to detect the server version.
func runDryRun(ctx context.Context, opts options.Options) error {
	opts, err := options.WithDefaults(opts)
	if err != nil {
		return err
	}
	if err := opts.Validate(); err != nil {
		return err
	}

	version, err := mongoversion.Detect(ctx, opts.BinDir)
	if err != nil {
		return err
	}

	keyFilePath := ""
	if opts.AuthEnabled() && !opts.IsStandalone() {
		keyFilePath = "<dir>/.key"
	}

	plan, err := planner.Build(opts, version, keyFilePath)
	if err != nil {
		return err
	}

	fmt.Printf("server version: %s\n", version.String())
	for _, proc := range plan.Processes {
		fmt.Printf("%-20s role=%-18s port=%-6d argv=%v\n", proc.Dir, proc.Role.String(), proc.Port, proc.Argv)
	}
	return nil
}
