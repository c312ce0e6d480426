package hal

import (
	"context"
	"errors"
	"testing"
)

func TestMemDevice_ScriptedReads(t *testing.T) {
	dev := NewMemDevice(DeviceInfo{Name: "mem:dev0"})
	idx := dev.AddOption(OptionDescriptor{Name: "scan", Kind: KindButton, Active: true},
		NumericValue(0), NumericValue(1), NumericValue(2))

	h, err := NewMemBackend(dev).Open("mem:dev0")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer h.Close()

	// First read returns the initial value; queued values follow; the
	// last value repeats once the queue drains.
	want := []uint64{0, 1, 2, 2, 2}
	for i, n := range want {
		v, err := h.Read(idx)
		if err != nil {
			t.Fatalf("Read %d failed: %v", i, err)
		}
		if v.Num != n {
			t.Errorf("read %d: expected %d, got %d", i, n, v.Num)
		}
	}
	if got := dev.ReadCount(idx); got != len(want) {
		t.Errorf("expected %d recorded reads, got %d", len(want), got)
	}
}

func TestMemDevice_OptionCountIncludesPseudoOption(t *testing.T) {
	dev := NewMemDevice(DeviceInfo{Name: "mem:dev0"})
	dev.AddOption(OptionDescriptor{Name: "scan", Kind: KindButton, Active: true})
	dev.AddOption(OptionDescriptor{Name: "copy", Kind: KindButton, Active: true})

	h, err := NewMemBackend(dev).Open("mem:dev0")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer h.Close()

	count, err := h.OptionCount()
	if err != nil {
		t.Fatalf("OptionCount failed: %v", err)
	}
	if count != 3 {
		t.Errorf("expected 2 options plus the pseudo-option, got %d", count)
	}

	if _, ok := h.Describe(0); ok {
		t.Error("index 0 must not expose a descriptor")
	}
	desc, ok := h.Describe(2)
	if !ok || desc.Name != "copy" || desc.Index != 2 {
		t.Errorf("unexpected descriptor at index 2: %+v (present=%v)", desc, ok)
	}
}

func TestMemDevice_ExclusiveOpen(t *testing.T) {
	dev := NewMemDevice(DeviceInfo{Name: "mem:dev0"})
	dev.AddOption(OptionDescriptor{Name: "scan", Kind: KindButton, Active: true})
	b := NewMemBackend(dev)

	h, err := b.Open("mem:dev0")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if _, err := b.Open("mem:dev0"); err == nil {
		t.Fatal("expected the second open to fail while a handle is held")
	}
	if err := h.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	h2, err := b.Open("mem:dev0")
	if err != nil {
		t.Fatalf("reopen after close failed: %v", err)
	}
	h2.Close()

	if dev.OpenCount() != 2 || dev.CloseCount() != 2 {
		t.Errorf("expected 2 opens and 2 closes, got %d/%d", dev.OpenCount(), dev.CloseCount())
	}
}

func TestMemDevice_OpenFailureModes(t *testing.T) {
	dev := NewMemDevice(DeviceInfo{Name: "mem:dev0"})
	b := NewMemBackend(dev)

	transient := errors.New("transient")
	dev.FailNextOpen(transient)
	if _, err := b.Open("mem:dev0"); !errors.Is(err, transient) {
		t.Fatalf("expected the one-shot failure, got %v", err)
	}
	h, err := b.Open("mem:dev0")
	if err != nil {
		t.Fatalf("expected the one-shot failure to clear, got %v", err)
	}
	h.Close()

	dev.SetOpenError(ErrAccessDenied)
	if _, err := b.Open("mem:dev0"); !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("expected the persistent failure, got %v", err)
	}
	if _, err := b.Open("mem:dev0"); !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("expected the persistent failure to persist, got %v", err)
	}
}

func TestMemHandle_UseAfterClose(t *testing.T) {
	dev := NewMemDevice(DeviceInfo{Name: "mem:dev0"})
	idx := dev.AddOption(OptionDescriptor{Name: "scan", Kind: KindButton, Active: true})

	h, err := NewMemBackend(dev).Open("mem:dev0")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := h.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if _, err := h.Read(idx); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed on read, got %v", err)
	}
	if _, err := h.OptionCount(); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed on option count, got %v", err)
	}
	if err := h.Close(); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed on double close, got %v", err)
	}
}

func TestBackendRegistry(t *testing.T) {
	names := BackendNames()
	found := false
	for _, n := range names {
		if n == "mem" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected the mem backend to be registered, got %v", names)
	}

	b, err := New("mem")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	devices, err := b.Devices(context.Background())
	if err != nil {
		t.Fatalf("Devices failed: %v", err)
	}
	if len(devices) != 1 || devices[0].Name != "mem:demo0" {
		t.Errorf("unexpected demo devices: %+v", devices)
	}

	if _, err := New("nope"); err == nil {
		t.Error("expected an error for an unregistered backend")
	}
}

func TestValueString(t *testing.T) {
	if got := NumericValue(7).String(); got != "7" {
		t.Errorf("expected \"7\", got %q", got)
	}
	if got := TextValue("busy").String(); got != "busy" {
		t.Errorf("expected \"busy\", got %q", got)
	}
	if got := (Value{}).String(); got != "0" {
		t.Errorf("the zero value renders as \"0\", got %q", got)
	}
}

func TestOptionKind(t *testing.T) {
	for _, k := range []OptionKind{KindBoolean, KindInteger, KindFixed, KindButton} {
		if !k.Numeric() {
			t.Errorf("%s: expected a numeric kind", k)
		}
	}
	if KindText.Numeric() {
		t.Error("text is not a numeric kind")
	}
	if !KindText.Supported() {
		t.Error("text is a supported kind")
	}
	if OptionKind(42).Supported() {
		t.Error("an out-of-range kind is not supported")
	}
}
