// Package orchestrator is the top-level state machine: it drives the
// topology-specific init sequence, and the descriptor-replaying start and
// stop operations, by composing the planner, spawner, and prober.
package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/zph/mlaunch/pkg/descriptor"
	"github.com/zph/mlaunch/pkg/logging"
	"github.com/zph/mlaunch/pkg/mlerrors"
	"github.com/zph/mlaunch/pkg/mongoversion"
	"github.com/zph/mlaunch/pkg/naming"
	"github.com/zph/mlaunch/pkg/options"
	"github.com/zph/mlaunch/pkg/planner"
	"github.com/zph/mlaunch/pkg/spawner"
)

// stopTimeout bounds how long Stop waits for a TERM'd process to exit
// before failing with a StopTimeout.
const stopTimeout = 15 * time.Second

// provisionDeadline bounds how long Init waits for a replica set member
// to reach primary/secondary after replSetInitiate.
const provisionDeadline = 30 * time.Second

// Init validates opts, applies defaults, detects the server version, and
// dispatches to the topology-specific init sequence. On failure it
// decorates the error with the tail of every *.log file under opts.Dir,
// per the propagation policy for init-time errors; the partially-built
// deployment is left in place for inspection.
func Init(ctx context.Context, opts options.Options) (*descriptor.Descriptor, error) {
	opts, err := options.WithDefaults(opts)
	if err != nil {
		return nil, err
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(opts.Dir, 0755); err != nil {
		return nil, &mlerrors.OptionError{Msg: fmt.Sprintf("failed to create deployment dir %s: %v", opts.Dir, err)}
	}

	version, err := mongoversion.Detect(ctx, opts.BinDir)
	if err != nil {
		return nil, err
	}

	log := logging.WithFields(map[string]interface{}{"dir": opts.Dir, "version": version.String()})
	log.Info("starting init")

	var d *descriptor.Descriptor
	switch {
	case opts.IsSharded():
		d, err = initSharded(ctx, opts, version)
	case opts.IsReplicaSet():
		d, err = initReplicaSet(ctx, opts, version)
	default:
		d, err = initStandalone(ctx, opts, version)
	}

	if err != nil {
		return nil, mlerrors.Decorate(opts.Dir, err)
	}

	log.Info("init complete")
	return d, nil
}

// Start loads the descriptor in dir and spawns every recorded directory's
// start_cmd verbatim, in forward (start) order. No readiness probing is
// performed beyond the Spawner's own alive-check.
func Start(ctx context.Context, dir string) error {
	d, err := descriptor.Load(dir)
	if err != nil {
		return err
	}

	for _, dbDir := range d.DBDirs {
		settings, ok := d.Settings[dbDir]
		if !ok || len(settings.StartCmd) == 0 {
			return fmt.Errorf("descriptor missing start_cmd for %s", dbDir)
		}
		argv := settings.StartCmd
		logPath := naming.LogFile(dbDir, argv[0])
		pidPath := naming.PIDFile(dbDir, argv[0])

		logging.WithFields(map[string]interface{}{"dir": dbDir}).Info("starting")
		if err := spawner.Spawn(ctx, argv, logPath, pidPath); err != nil {
			return err
		}
	}

	return nil
}

// Stop loads the descriptor in dir and stops every process in reverse
// start order. Sharded deployments wait synchronously for each process to
// exit before signalling the next, since killing the config server before
// its shards stalls them; other topologies batch their waits after
// signalling everyone. A directory whose pid file is missing is skipped
// silently, and a recorded pid that is no longer alive is not waited on,
// so a second Stop is a no-op even though the pid files remain.
func Stop(ctx context.Context, dir string) error {
	d, err := descriptor.Load(dir)
	if err != nil {
		return err
	}

	type pending struct {
		dir    string
		pid    int
		binary string
	}
	var deferred []pending

	for i := len(d.DBDirs) - 1; i >= 0; i-- {
		dbDir := d.DBDirs[i]
		settings, ok := d.Settings[dbDir]
		if !ok || len(settings.StartCmd) == 0 {
			continue
		}
		binary := filepath.Base(settings.StartCmd[0])
		pidPath := naming.PIDFile(dbDir, settings.StartCmd[0])

		pid, ok, err := spawner.PIDFromFile(pidPath)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}

		wasAlive, _ := spawner.Alive(pid)

		if err := spawner.Signal(pid, spawner.SignalTerm); err != nil {
			return err
		}
		if !wasAlive {
			continue
		}

		label := fmt.Sprintf("%s (%s, pid %d)", dbDir, binary, pid)
		if d.IsSharded() {
			logging.WithFields(map[string]interface{}{"dir": dbDir, "pid": pid}).Info("stopping, waiting for exit")
			if err := spawner.WaitForExit(pid, stopTimeout, label); err != nil {
				return err
			}
		} else {
			deferred = append(deferred, pending{dbDir, pid, binary})
		}
	}

	for _, p := range deferred {
		label := fmt.Sprintf("%s (%s, pid %d)", p.dir, p.binary, p.pid)
		if err := spawner.WaitForExit(p.pid, stopTimeout, label); err != nil {
			return err
		}
	}

	return nil
}

// ProcessStatus is one directory's read-only liveness snapshot.
type ProcessStatus struct {
	Dir     string
	Binary  string
	PID     int
	HasPID  bool
	Running bool
}

// Status loads the descriptor in dir and reports, per directory, whether
// its pid file exists and whether that pid currently identifies a live
// process. It never spawns, signals, or connects to anything.
func Status(dir string) ([]ProcessStatus, error) {
	d, err := descriptor.Load(dir)
	if err != nil {
		return nil, err
	}

	statuses := make([]ProcessStatus, 0, len(d.DBDirs))
	for _, dbDir := range d.DBDirs {
		settings, ok := d.Settings[dbDir]
		if !ok || len(settings.StartCmd) == 0 {
			statuses = append(statuses, ProcessStatus{Dir: dbDir})
			continue
		}

		binary := filepath.Base(settings.StartCmd[0])
		pidPath := naming.PIDFile(dbDir, settings.StartCmd[0])

		pid, hasPID, err := spawner.PIDFromFile(pidPath)
		if err != nil {
			return nil, err
		}

		running := false
		if hasPID {
			running, err = spawner.Alive(pid)
			if err != nil {
				return nil, err
			}
		}

		statuses = append(statuses, ProcessStatus{
			Dir:     dbDir,
			Binary:  binary,
			PID:     pid,
			HasPID:  hasPID,
			Running: running,
		})
	}

	return statuses, nil
}

func hostPort(port int) string { return fmt.Sprintf("localhost:%d", port) }

// tlsOnly strips credentials from opts, for the prober calls that must
// run before a user exists but must still honor TLS configuration.
func tlsOnly(opts options.Options) options.Options {
	opts.Username = ""
	opts.Password = ""
	return opts
}

func ensureDir(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	return nil
}

// spawnProcess creates proc's directory and spawns it, logging the
// dir/port/role context the spawner itself does not know about.
func spawnProcess(ctx context.Context, proc planner.ProcessPlan) error {
	if err := ensureDir(proc.Dir); err != nil {
		return err
	}
	logging.WithFields(map[string]interface{}{
		"dir":  proc.Dir,
		"port": proc.Port,
		"role": proc.Role.String(),
	}).Info("spawning")
	return spawner.Spawn(ctx, proc.Argv, proc.LogFile(), proc.PIDFile())
}
