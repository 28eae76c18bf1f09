package orchestrator

import (
	"context"
	"path/filepath"

	"github.com/zph/mlaunch/pkg/descriptor"
	"github.com/zph/mlaunch/pkg/keymaterial"
	"github.com/zph/mlaunch/pkg/mongoversion"
	"github.com/zph/mlaunch/pkg/naming"
	"github.com/zph/mlaunch/pkg/options"
	"github.com/zph/mlaunch/pkg/planner"
	"github.com/zph/mlaunch/pkg/prober"
)

// initReplicaSet spawns every member (data-bearing, then arbiter),
// persists the descriptor so a mid-failure state is recoverable by Stop,
// then pings every seed host, initiates the replica set, and waits for
// each member to reach primary/secondary. When auth is requested it
// creates the user, cycles the deployment through Stop/Start (replaying
// the recorded argv, which carries --keyFile from the first spawn on), and
// re-pings with credentials to prove auth works.
func initReplicaSet(ctx context.Context, opts options.Options, version mongoversion.Version) (*descriptor.Descriptor, error) {
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

	for _, proc := range plan.Processes {
		if err := spawnProcess(ctx, proc); err != nil {
			return nil, err
		}
	}

	d := descriptor.FromPlan(plan)
	if err := descriptor.Save(opts.Dir, d); err != nil {
		return nil, err
	}

	preAuth := tlsOnly(opts)

	hosts := make([]string, 0, len(plan.Processes))
	members := make([]prober.Member, 0, len(plan.Processes))
	for _, proc := range plan.Processes {
		host := hostPort(proc.Port)
		hosts = append(hosts, host)
		members = append(members, prober.Member{Host: host, ArbiterOnly: proc.Role == planner.RoleArbiter})
	}

	for _, host := range hosts {
		if err := prober.Ping(ctx, host, prober.DirectMode(), preAuth); err != nil {
			return nil, err
		}
	}

	if err := prober.ReplicaSetInitiate(ctx, hosts[0], opts.ReplicaSet, members, false, preAuth); err != nil {
		return nil, err
	}

	for _, host := range hosts {
		if err := prober.WaitUntilProvisioned(ctx, host, provisionDeadline, preAuth); err != nil {
			return nil, err
		}
	}

	if err := prober.Ping(ctx, hosts[0], prober.ReplicaSetMode(opts.ReplicaSet), preAuth); err != nil {
		return nil, err
	}

	if opts.AuthEnabled() {
		if err := prober.CreateUser(ctx, hosts[0], prober.ReplicaSetMode(opts.ReplicaSet), preAuth, opts.Username, opts.Password, nil); err != nil {
			return nil, err
		}

		if err := Stop(ctx, opts.Dir); err != nil {
			return nil, err
		}
		if err := Start(ctx, opts.Dir); err != nil {
			return nil, err
		}

		if err := prober.Ping(ctx, hosts[0], prober.ReplicaSetMode(opts.ReplicaSet), opts); err != nil {
			return nil, err
		}
	}

	return d, nil
}
