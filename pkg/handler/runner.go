// Package handler runs external handler programs for the engine. It
// replaces raw fork/exec with a spawn abstraction taking an explicit
// environment and returning the child's exit status, and it lets the
// child (re)assert configured run-time credentials before executing.
package handler

import (
	"context"
	"fmt"
	"os/exec"
	"os/user"
	"strconv"
	"syscall"
	"time"
)

// Result describes a finished handler process.
type Result struct {
	// ExitCode is the child's exit code; -1 when it was signaled.
	ExitCode int

	// Signal names the terminating signal, empty on a normal exit.
	Signal string

	// Duration is the wall-clock run time.
	Duration time.Duration
}

// Runner spawns a handler program with exactly the given environment
// (the daemon's own environment is never inherited) and waits for it
// to exit.
type Runner interface {
	Run(ctx context.Context, script string, env []string) (Result, error)
}

// ExecRunner runs handlers as real child processes.
type ExecRunner struct {
	// Credential, when set, is asserted on the child before exec so
	// the handler runs with the daemon's configured user and group
	// rather than whatever the daemon currently holds.
	Credential *syscall.Credential
}

// Run executes the script and blocks until it exits.
func (r *ExecRunner) Run(ctx context.Context, script string, env []string) (Result, error) {
	cmd := exec.CommandContext(ctx, script)
	cmd.Env = env
	if r.Credential != nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{Credential: r.Credential}
	}

	start := time.Now()
	err := cmd.Run()
	result := Result{Duration: time.Since(start)}

	if err != nil {
		exitErr, ok := err.(*exec.ExitError)
		if !ok {
			return result, fmt.Errorf("failed to run handler %s: %w", script, err)
		}
		result.ExitCode = exitErr.ExitCode()
		if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
			result.Signal = ws.Signal().String()
		}
		return result, nil
	}
	result.ExitCode = 0
	return result, nil
}

// LookupCredential resolves user and group names (or numeric IDs) into
// a credential for ExecRunner. Both arguments are optional; an empty
// credential request returns nil, meaning "inherit the daemon's own".
func LookupCredential(username, groupname string) (*syscall.Credential, error) {
	if username == "" && groupname == "" {
		return nil, nil
	}

	cred := &syscall.Credential{}
	if username != "" {
		u, err := user.Lookup(username)
		if err != nil {
			u, err = user.LookupId(username)
			if err != nil {
				return nil, fmt.Errorf("failed to look up user %q: %w", username, err)
			}
		}
		uid, err := strconv.ParseUint(u.Uid, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("non-numeric uid for user %q: %w", username, err)
		}
		gid, err := strconv.ParseUint(u.Gid, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("non-numeric gid for user %q: %w", username, err)
		}
		cred.Uid = uint32(uid)
		cred.Gid = uint32(gid)
	}
	if groupname != "" {
		g, err := user.LookupGroup(groupname)
		if err != nil {
			g, err = user.LookupGroupId(groupname)
			if err != nil {
				return nil, fmt.Errorf("failed to look up group %q: %w", groupname, err)
			}
		}
		gid, err := strconv.ParseUint(g.Gid, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("non-numeric gid for group %q: %w", groupname, err)
		}
		cred.Gid = uint32(gid)
	}
	return cred, nil
}
