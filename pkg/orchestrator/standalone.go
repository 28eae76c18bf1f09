package orchestrator

import (
	"context"

	"github.com/zph/mlaunch/pkg/descriptor"
	"github.com/zph/mlaunch/pkg/mongoversion"
	"github.com/zph/mlaunch/pkg/options"
	"github.com/zph/mlaunch/pkg/planner"
	"github.com/zph/mlaunch/pkg/prober"
	"github.com/zph/mlaunch/pkg/spawner"
)

// initStandalone spawns the single node. When auth is requested, it
// creates the root user over an unauthenticated connection, stops the
// node, and respawns it with --auth appended, since a standalone never
// takes a key file and so cannot enforce auth from first boot.
func initStandalone(ctx context.Context, opts options.Options, version mongoversion.Version) (*descriptor.Descriptor, error) {
	plan, err := planner.Build(opts, version, "")
	if err != nil {
		return nil, err
	}
	proc := plan.Processes[0]

	if err := spawnProcess(ctx, proc); err != nil {
		return nil, err
	}

	if opts.AuthEnabled() {
		address := hostPort(proc.Port)
		preAuth := tlsOnly(opts)

		if err := prober.CreateUser(ctx, address, prober.DirectMode(), preAuth, opts.Username, opts.Password, nil); err != nil {
			return nil, err
		}

		pid, ok, err := spawner.PIDFromFile(proc.PIDFile())
		if err != nil {
			return nil, err
		}
		if ok {
			if err := spawner.Signal(pid, spawner.SignalTerm); err != nil {
				return nil, err
			}
			if err := spawner.WaitForExit(pid, stopTimeout, proc.Dir); err != nil {
				return nil, err
			}
		}

		proc.Argv = append(append([]string{}, proc.Argv...), "--auth")
		if err := spawnProcess(ctx, proc); err != nil {
			return nil, err
		}
		plan.Processes[0] = proc
	}

	d := descriptor.FromPlan(plan)
	if err := descriptor.Save(opts.Dir, d); err != nil {
		return nil, err
	}
	return d, nil
}
