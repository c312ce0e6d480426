package engine

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestError_MessageAndContext(t *testing.T) {
	cause := errors.New("read: i/o timeout")
	err := NewHardwareError("can't read option value", cause).
		WithDevice("mem:dev0").
		WithOption(3)

	msg := err.Error()
	for _, want := range []string{"[hardware]", "can't read option value", "device=mem:dev0", "option=3", "i/o timeout"} {
		if !strings.Contains(msg, want) {
			t.Errorf("error message missing %q: %s", want, msg)
		}
	}
	if !errors.Is(err, cause) {
		t.Error("expected the cause to be reachable via errors.Is")
	}
}

func TestIsClass(t *testing.T) {
	wrapped := fmt.Errorf("starting worker: %w", NewConfigError("bad filter", nil))
	if !IsClass(wrapped, ClassConfig) {
		t.Error("expected a config classification through wrapping")
	}
	if IsClass(wrapped, ClassHardware) {
		t.Error("unexpected hardware classification")
	}
	if IsClass(errors.New("plain"), ClassConfig) {
		t.Error("a plain error has no class")
	}
}

func TestError_IsMatchesByClass(t *testing.T) {
	a := NewHandlerError("spawn failed", nil)
	b := NewHandlerError("wait failed", nil)
	if !errors.Is(a, b) {
		t.Error("expected errors of the same class to match")
	}
	if errors.Is(a, NewConfigError("x", nil)) {
		t.Error("expected errors of different classes not to match")
	}
}
