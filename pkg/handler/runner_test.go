package handler

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func writeScript(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("handler scripts are POSIX shell scripts")
	}
	path := filepath.Join(t.TempDir(), "handler.sh")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	return path
}

func TestExecRunner_ExitCode(t *testing.T) {
	r := &ExecRunner{}

	res, err := r.Run(context.Background(), writeScript(t, "exit 0"), nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.ExitCode != 0 || res.Signal != "" {
		t.Errorf("unexpected result: %+v", res)
	}

	res, err = r.Run(context.Background(), writeScript(t, "exit 3"), nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.ExitCode != 3 {
		t.Errorf("expected exit code 3, got %d", res.ExitCode)
	}
}

func TestExecRunner_PassesExactEnvironment(t *testing.T) {
	script := writeScript(t, `test "$DEVICE" = "mem:dev0" || exit 1
test -z "$GOPATH" || exit 2`)

	t.Setenv("GOPATH", "/should/not/leak")

	r := &ExecRunner{}
	res, err := r.Run(context.Background(), script, []string{
		"PATH=/usr/bin:/bin",
		"DEVICE=mem:dev0",
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.ExitCode != 0 {
		t.Errorf("environment mismatch, script exited %d", res.ExitCode)
	}
}

func TestExecRunner_MissingScript(t *testing.T) {
	r := &ExecRunner{}
	if _, err := r.Run(context.Background(), filepath.Join(t.TempDir(), "absent.sh"), nil); err == nil {
		t.Fatal("expected an error for a missing handler")
	}
}

func TestLookupCredential(t *testing.T) {
	cred, err := LookupCredential("", "")
	if err != nil {
		t.Fatalf("LookupCredential failed: %v", err)
	}
	if cred != nil {
		t.Errorf("expected no credential for empty names, got %+v", cred)
	}

	if _, err := LookupCredential("no-such-user-zz", ""); err == nil {
		t.Error("expected an error for an unknown user")
	}
	if _, err := LookupCredential("", "no-such-group-zz"); err == nil {
		t.Error("expected an error for an unknown group")
	}
}
