// Package spawner launches detached server processes with pid-file
// tracking and log redirection, and provides the signal/wait-for-exit
// primitives the orchestrator uses to stop them.
package spawner

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/shirou/gopsutil/v4/process"
	"golang.org/x/sys/unix"

	"github.com/zph/mlaunch/pkg/logging"
	"github.com/zph/mlaunch/pkg/mlerrors"
)

// aliveCheckTimeout bounds how long Spawn waits for the child to report
// itself alive via its pid file before declaring a SpawnError.
const aliveCheckTimeout = 10 * time.Second

const alivePollInterval = 50 * time.Millisecond

// SignalKind is the signal family Signal() accepts.
type SignalKind int

const (
	SignalTerm SignalKind = iota
	SignalKill
)

// Spawn starts argv[0] with the remaining elements of argv as its
// arguments, detached from the controlling terminal and as its own
// session leader, with stdout/stderr appended to logPath. It returns once
// the child is alive and has written pidPath (mongod/mongos write their
// own pid file given --pidfilepath), or fails with a SpawnError. The
// SpawnError does not carry the tail of logPath; errors raised during Init
// get the tails of every log under the deployment root from
// mlerrors.Decorate.
func Spawn(ctx context.Context, argv []string, logPath, pidPath string) error {
	attempt := uuid.NewString()
	log := logging.WithFields(map[string]interface{}{"attempt": attempt, "argv0": argv[0], "pid_path": pidPath})

	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return &mlerrors.SpawnError{Msg: fmt.Sprintf("failed to open log file %s", logPath), Err: err}
	}
	defer logFile.Close()

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid: true,
	}

	if err := cmd.Start(); err != nil {
		return &mlerrors.SpawnError{Msg: fmt.Sprintf("failed to start %s", argv[0]), Err: err}
	}

	// Reap the child when it exits, so Alive and WaitForExit (which poll by
	// pid) see it disappear instead of lingering as a zombie.
	go func() { _ = cmd.Wait() }()

	log.Debug("spawned child, waiting for pid file")

	if err := waitForPIDFile(pidPath, aliveCheckTimeout); err != nil {
		return &mlerrors.SpawnError{Msg: fmt.Sprintf("%s did not write pid file %s in time", argv[0], pidPath), Err: err}
	}

	pid, err := readPID(pidPath)
	if err != nil {
		return &mlerrors.SpawnError{Msg: fmt.Sprintf("could not read pid from %s", pidPath), Err: err}
	}

	alive, err := process.PidExists(int32(pid))
	if err != nil || !alive {
		return &mlerrors.SpawnError{Msg: fmt.Sprintf("process %d not alive immediately after spawn", pid)}
	}

	log.WithField("pid", pid).Debug("child is alive")
	return nil
}

func waitForPIDFile(pidPath string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		if _, err := os.Stat(pidPath); err == nil {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("timed out after %s", timeout)
		}
		time.Sleep(alivePollInterval)
	}
}

func readPID(pidPath string) (int, error) {
	data, err := os.ReadFile(pidPath)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

// Signal sends TERM or KILL to pid. "No such process" is silently
// ignored, per the Spawner contract.
func Signal(pid int, kind SignalKind) error {
	sig := unix.SIGTERM
	if kind == SignalKill {
		sig = unix.SIGKILL
	}

	err := unix.Kill(pid, sig)
	if err != nil && err != unix.ESRCH {
		return fmt.Errorf("failed to signal pid %d: %w", pid, err)
	}
	return nil
}

// Alive reports whether pid currently identifies a live process.
func Alive(pid int) (bool, error) {
	return process.PidExists(int32(pid))
}

// WaitForExit polls pid until it no longer exists or the deadline passes.
// On timeout it fails with a StopTimeout naming label and pid. No log tail
// is attached, here or by Stop; only errors raised during Init are
// decorated with log tails.
func WaitForExit(pid int, timeout time.Duration, label string) error {
	deadline := time.Now().Add(timeout)
	for {
		alive, err := process.PidExists(int32(pid))
		if err != nil || !alive {
			return nil
		}
		if time.Now().After(deadline) {
			return &mlerrors.StopTimeout{Msg: fmt.Sprintf("%s (pid %d) did not exit within %s", label, pid, timeout)}
		}
		time.Sleep(alivePollInterval)
	}
}

// ReadPIDFile reads and parses the pid recorded at path. Returns
// (0, nil) semantics are the caller's to define; ReadPIDFile itself
// returns an error only on I/O or parse failure.
func ReadPIDFile(path string) (int, error) {
	return readPID(path)
}

// PIDFromFile reads the pid at path, returning ok=false (no error) when
// the file does not exist, so stop can skip a directory silently.
func PIDFromFile(path string) (pid int, ok bool, err error) {
	if _, statErr := os.Stat(path); statErr != nil {
		if os.IsNotExist(statErr) {
			return 0, false, nil
		}
		return 0, false, statErr
	}
	pid, err = readPID(path)
	if err != nil {
		return 0, false, err
	}
	return pid, true, nil
}
