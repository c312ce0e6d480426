package hal

import (
	"context"
	"fmt"
	"sync"
)

func init() {
	Register("mem", func() Backend {
		b := NewMemBackend()
		demo := NewMemDevice(DeviceInfo{
			Name:   "mem:demo0",
			Vendor: "buttond",
			Model:  "demo",
			Type:   "virtual device",
		})
		demo.AddOption(OptionDescriptor{Name: "scan", Kind: KindButton, Active: true, Size: 4}, NumericValue(0))
		b.AddDevice(demo)
		return b
	})
}

// NumericValue builds a numeric sample.
func NumericValue(n uint64) Value {
	return Value{Kind: ValueNumeric, Num: n}
}

// TextValue builds a text sample.
func TextValue(s string) Value {
	return Value{Kind: ValueText, Str: s}
}

// MemBackend is an in-memory Backend with scripted devices. It backs
// the engine tests and the "mem" development backend; real hardware
// protocols live behind the same interface in external modules.
type MemBackend struct {
	mu      sync.Mutex
	devices []*MemDevice
}

// NewMemBackend creates an empty in-memory backend.
func NewMemBackend(devices ...*MemDevice) *MemBackend {
	return &MemBackend{devices: devices}
}

// AddDevice attaches a device to the backend.
func (b *MemBackend) AddDevice(d *MemDevice) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.devices = append(b.devices, d)
}

// Devices enumerates the attached devices in attachment order.
func (b *MemBackend) Devices(_ context.Context) ([]DeviceInfo, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	infos := make([]DeviceInfo, len(b.devices))
	for i, d := range b.devices {
		infos[i] = d.info
	}
	return infos, nil
}

// Open acquires the named device. Only one handle may be open at a time.
func (b *MemBackend) Open(name string) (Handle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, d := range b.devices {
		if d.info.Name == name {
			return d.open()
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNoSuchDevice, name)
}

// MemDevice is one scripted in-memory device. Option reads consume a
// queued value sequence; the last value repeats once the queue drains.
type MemDevice struct {
	mu   sync.Mutex
	info DeviceInfo

	options []*memOption

	opened     bool
	openCount  int
	closeCount int

	openErr     error // persistent open failure
	nextOpenErr error // one-shot open failure
}

type memOption struct {
	desc    OptionDescriptor
	queue   []Value
	current Value
	reads   int
	readErr error
}

// NewMemDevice creates a device with the given identity and no options.
func NewMemDevice(info DeviceInfo) *MemDevice {
	return &MemDevice{info: info}
}

// Info returns the device identity.
func (d *MemDevice) Info() DeviceInfo {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.info
}

// AddOption appends an option to the device table and returns its
// index. Indexes start at 1; index 0 is the option-count pseudo-option.
// Successive reads return the values in order; the last value repeats.
func (d *MemDevice) AddOption(desc OptionDescriptor, values ...Value) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	opt := &memOption{desc: desc, queue: values}
	d.options = append(d.options, opt)
	index := len(d.options)
	opt.desc.Index = index
	return index
}

// QueueValues appends values to an option's scripted read sequence.
func (d *MemDevice) QueueValues(index int, values ...Value) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if opt := d.optionAt(index); opt != nil {
		opt.queue = append(opt.queue, values...)
	}
}

// SetReadError makes reads of an option fail until cleared with nil.
func (d *MemDevice) SetReadError(index int, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if opt := d.optionAt(index); opt != nil {
		opt.readErr = err
	}
}

// SetOpenError makes every subsequent Open fail with err.
func (d *MemDevice) SetOpenError(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.openErr = err
}

// FailNextOpen makes only the next Open fail with err.
func (d *MemDevice) FailNextOpen(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextOpenErr = err
}

// ReadCount reports how many times an option has been read.
func (d *MemDevice) ReadCount(index int) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	if opt := d.optionAt(index); opt != nil {
		return opt.reads
	}
	return 0
}

// OpenCount reports how many times the device has been opened.
func (d *MemDevice) OpenCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.openCount
}

// CloseCount reports how many times a handle has been closed.
func (d *MemDevice) CloseCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closeCount
}

// IsOpen reports whether a handle is currently open.
func (d *MemDevice) IsOpen() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.opened
}

func (d *MemDevice) optionAt(index int) *memOption {
	if index < 1 || index > len(d.options) {
		return nil
	}
	return d.options[index-1]
}

func (d *MemDevice) open() (Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.nextOpenErr != nil {
		err := d.nextOpenErr
		d.nextOpenErr = nil
		return nil, err
	}
	if d.openErr != nil {
		return nil, d.openErr
	}
	if d.opened {
		return nil, fmt.Errorf("mem: device %s already open", d.info.Name)
	}
	d.opened = true
	d.openCount++
	return &memHandle{dev: d}, nil
}

type memHandle struct {
	mu     sync.Mutex
	dev    *MemDevice
	closed bool
}

func (h *memHandle) OptionCount() (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return 0, ErrClosed
	}
	h.dev.mu.Lock()
	defer h.dev.mu.Unlock()
	if len(h.dev.options) == 0 {
		return 0, nil
	}
	return len(h.dev.options) + 1, nil
}

func (h *memHandle) Describe(index int) (OptionDescriptor, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return OptionDescriptor{}, false
	}
	h.dev.mu.Lock()
	defer h.dev.mu.Unlock()
	opt := h.dev.optionAt(index)
	if opt == nil {
		return OptionDescriptor{}, false
	}
	return opt.desc, true
}

func (h *memHandle) Read(index int) (Value, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return Value{}, ErrClosed
	}
	h.dev.mu.Lock()
	defer h.dev.mu.Unlock()
	opt := h.dev.optionAt(index)
	if opt == nil {
		return Value{}, fmt.Errorf("%w: index %d", ErrNoSuchOption, index)
	}
	if opt.readErr != nil {
		return Value{}, opt.readErr
	}
	opt.reads++
	if len(opt.queue) > 0 {
		opt.current = opt.queue[0]
		opt.queue = opt.queue[1:]
	}
	return opt.current, nil
}

func (h *memHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrClosed
	}
	h.closed = true
	h.dev.mu.Lock()
	defer h.dev.mu.Unlock()
	h.dev.opened = false
	h.dev.closeCount++
	return nil
}
