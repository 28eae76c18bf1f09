package orchestrator

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/zph/mlaunch/pkg/descriptor"
	"github.com/zph/mlaunch/pkg/keymaterial"
	"github.com/zph/mlaunch/pkg/mongoversion"
	"github.com/zph/mlaunch/pkg/naming"
	"github.com/zph/mlaunch/pkg/options"
	"github.com/zph/mlaunch/pkg/planner"
	"github.com/zph/mlaunch/pkg/prober"
)

// initSharded spawns the config server and initiates it (as a one-node
// replica set when the CSRS shape applies), spawns and initiates each
// shard as a one-member replica set, spawns every router, persists the
// descriptor, then pings each shard in replica-set mode and adds it via
// router 1, finally creating the cluster user through the router if auth
// was requested.
func initSharded(ctx context.Context, opts options.Options, version mongoversion.Version) (*descriptor.Descriptor, error) {
	keyFilePath := ""
	if opts.AuthEnabled() {
		keyFilePath = filepath.Join(opts.Dir, naming.KeyFileName)
		if err := keymaterial.CreateKey(keyFilePath); err != nil {
			return nil, err
		}
	}

	plan, err := planner.Build(opts, version, keyFilePath)
	if err != nil {
		return nil, err
	}

	preAuth := tlsOnly(opts)

	var routers []planner.ProcessPlan
	shardHosts := make(map[string]string) // replica set name -> host

	for _, proc := range plan.Processes {
		switch proc.Role {
		case planner.RoleRouter:
			// Routers need the config server (and, for CSRS, its RS)
			// already initiated, which the loop below guarantees since
			// the planner places routers last in start order.
			routers = append(routers, proc)
			continue
		}

		if err := spawnProcess(ctx, proc); err != nil {
			return nil, err
		}

		switch proc.Role {
		case planner.RoleConfigServer:
			if plan.ReplicatedConfigServer {
				host := hostPort(proc.Port)
				member := []prober.Member{{Host: host}}
				if err := prober.ReplicaSetInitiate(ctx, host, naming.CSRSDir, member, true, preAuth); err != nil {
					return nil, err
				}
				if err := prober.WaitUntilProvisioned(ctx, host, provisionDeadline, preAuth); err != nil {
					return nil, err
				}
			}
		case planner.RoleShard:
			host := hostPort(proc.Port)
			member := []prober.Member{{Host: host}}
			if err := prober.ReplicaSetInitiate(ctx, host, proc.ReplicaSet, member, false, preAuth); err != nil {
				return nil, err
			}
			if err := prober.WaitUntilProvisioned(ctx, host, provisionDeadline, preAuth); err != nil {
				return nil, err
			}
			shardHosts[proc.ReplicaSet] = host
		}
	}

	for _, proc := range routers {
		if err := spawnProcess(ctx, proc); err != nil {
			return nil, err
		}
	}

	d := descriptor.FromPlan(plan)
	if err := descriptor.Save(opts.Dir, d); err != nil {
		return nil, err
	}

	if len(routers) == 0 {
		return nil, fmt.Errorf("sharded plan produced no routers")
	}
	router1 := hostPort(routers[0].Port)

	for _, proc := range plan.Processes {
		if proc.Role != planner.RoleShard {
			continue
		}
		host := shardHosts[proc.ReplicaSet]
		if err := prober.Ping(ctx, host, prober.ReplicaSetMode(proc.ReplicaSet), preAuth); err != nil {
			return nil, err
		}
		connString := fmt.Sprintf("%s/%s", proc.ReplicaSet, host)
		if err := prober.AddShard(ctx, router1, connString, preAuth); err != nil {
			return nil, err
		}
	}

	if opts.AuthEnabled() {
		if err := prober.CreateUser(ctx, router1, prober.RouterMode(), preAuth, opts.Username, opts.Password, nil); err != nil {
			return nil, err
		}
	}

	return d, nil
}
