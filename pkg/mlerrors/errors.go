// Package mlerrors defines the typed error kinds the orchestrator raises
// and the log-tail decoration applied to init-time failures.
package mlerrors

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// tailLines is the approximate number of trailing log lines attached to
// a decorated error.
const tailLines = 50

// OptionError signals invalid or inconsistent options, raised before any
// side effect occurs.
type OptionError struct {
	Msg string
}

func (e *OptionError) Error() string { return "option error: " + e.Msg }

// VersionProbeError signals that `mongod --version` failed or its output
// could not be parsed.
type VersionProbeError struct {
	Msg string
	Err error
}

func (e *VersionProbeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("version probe error: %s: %v", e.Msg, e.Err)
	}
	return "version probe error: " + e.Msg
}

func (e *VersionProbeError) Unwrap() error { return e.Err }

// SpawnError signals that a child process failed to start or failed to
// write its pid file within the Spawner's internal timeout.
type SpawnError struct {
	Msg string
	Err error
}

func (e *SpawnError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("spawn error: %s: %v", e.Msg, e.Err)
	}
	return "spawn error: " + e.Msg
}

func (e *SpawnError) Unwrap() error { return e.Err }

// ProbeError signals that a ping or an initiate-family command failed.
type ProbeError struct {
	Msg string
	Err error
}

func (e *ProbeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("probe error: %s: %v", e.Msg, e.Err)
	}
	return "probe error: " + e.Msg
}

func (e *ProbeError) Unwrap() error { return e.Err }

// ProvisionTimeout signals that a replica set member never reached
// primary/secondary state within the provisioning deadline.
type ProvisionTimeout struct {
	Msg string
}

func (e *ProvisionTimeout) Error() string { return "provision timeout: " + e.Msg }

// StopTimeout signals that a process did not exit within the stop
// deadline after TERM.
type StopTimeout struct {
	Msg string
}

func (e *StopTimeout) Error() string { return "stop timeout: " + e.Msg }

// AddShardError signals that a router rejected an addShard command.
type AddShardError struct {
	Msg string
	Err error
}

func (e *AddShardError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("add shard error: %s: %v", e.Msg, e.Err)
	}
	return "add shard error: " + e.Msg
}

func (e *AddShardError) Unwrap() error { return e.Err }

// Decorate walks dir for every *.log file (sorted by path), appends the
// tail of each to err's message, and returns a new error of the same
// surface shape preserving err via %w. Used only for init-time failures;
// start/stop errors surface raw per the propagation policy.
func Decorate(dir string, err error) error {
	if err == nil {
		return nil
	}

	logs, walkErr := collectLogs(dir)
	if walkErr != nil || len(logs) == 0 {
		return err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%v\n", err)
	for _, path := range logs {
		fmt.Fprintf(&b, "\n--- tail of %s ---\n%s", path, tail(path, tailLines))
	}

	return fmt.Errorf("%s: %w", b.String(), err)
}

func collectLogs(dir string) ([]string, error) {
	var logs []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(path, ".log") {
			logs = append(logs, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(logs)
	return logs, nil
}

func tail(path string, n int) string {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Sprintf("(could not open log: %v)\n", err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
		if len(lines) > n {
			lines = lines[1:]
		}
	}

	return strings.Join(lines, "\n") + "\n"
}
