package hal

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// OptionKind identifies the value type of a device option.
type OptionKind int

const (
	// KindBoolean is an on/off option read as 0 or 1.
	KindBoolean OptionKind = iota

	// KindInteger is a plain integer option.
	KindInteger

	// KindFixed is a fixed-point numeric option.
	KindFixed

	// KindButton is a momentary option that reports a press.
	KindButton

	// KindText is a string-valued option.
	KindText
)

// String returns the human-readable name of the option kind.
func (k OptionKind) String() string {
	switch k {
	case KindBoolean:
		return "boolean"
	case KindInteger:
		return "integer"
	case KindFixed:
		return "fixed"
	case KindButton:
		return "button"
	case KindText:
		return "text"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Numeric reports whether values of this kind are read as unsigned integers.
func (k OptionKind) Numeric() bool {
	switch k {
	case KindBoolean, KindInteger, KindFixed, KindButton:
		return true
	default:
		return false
	}
}

// Supported reports whether the kind is one the polling engine can sample.
func (k OptionKind) Supported() bool {
	return k >= KindBoolean && k <= KindText
}

// DeviceInfo describes an enumerable device.
type DeviceInfo struct {
	// Name uniquely identifies the device on this host.
	Name string

	// Vendor is the device vendor string.
	Vendor string

	// Model is the device model string.
	Model string

	// Type is the device type string (e.g. "flatbed scanner").
	Type string
}

// OptionDescriptor describes one option of an open device.
// Descriptors are read-only and queried on demand.
type OptionDescriptor struct {
	// Index is the option's position in the device option table.
	// Index 0 is reserved for the option-count pseudo-option.
	Index int

	// Name is the option's name; unnamed options cannot be matched.
	Name string

	// Kind is the option's value type.
	Kind OptionKind

	// Active reports whether the option is currently user-controllable.
	Active bool

	// Size is the option's value size in bytes.
	Size int
}

// ValueKind tags a sampled Value as numeric or text.
type ValueKind int

const (
	// ValueNumeric is an unsigned integer sample.
	ValueNumeric ValueKind = iota

	// ValueText is a string sample.
	ValueText
)

// Value is one sampled option value. The zero Value is a valid
// "nothing read" numeric sample and is substituted on read failures.
type Value struct {
	Kind ValueKind
	Num  uint64
	Str  string
}

// String renders the value for logging and environment export.
func (v Value) String() string {
	if v.Kind == ValueText {
		return v.Str
	}
	return fmt.Sprintf("%d", v.Num)
}

// Sentinel errors returned by backends.
var (
	// ErrAccessDenied reports that the device refused to be opened.
	// A reopen failing with this condition permanently abandons the
	// polling worker for that device.
	ErrAccessDenied = errors.New("hal: access denied")

	// ErrNoSuchDevice reports an open of an unknown device name.
	ErrNoSuchDevice = errors.New("hal: no such device")

	// ErrNoSuchOption reports a read of an option index the device
	// does not expose.
	ErrNoSuchOption = errors.New("hal: no such option")

	// ErrClosed reports use of a handle after Close.
	ErrClosed = errors.New("hal: handle closed")
)

// Backend is the hardware access capability the engine consumes.
// Implementations wrap a concrete hardware protocol; this package
// ships only the in-memory backend used for tests and development.
type Backend interface {
	// Devices enumerates the locally attached devices.
	Devices(ctx context.Context) ([]DeviceInfo, error)

	// Open acquires an exclusive handle on the named device.
	Open(name string) (Handle, error)
}

// Handle is an exclusively-owned open device.
type Handle interface {
	// OptionCount performs the reserved index-0 query and returns the
	// total number of options, including the pseudo-option itself.
	OptionCount() (int, error)

	// Describe returns the descriptor of the option at index, or
	// false if the device exposes no such descriptor.
	Describe(index int) (OptionDescriptor, bool)

	// Read samples the current value of the option at index.
	Read(index int) (Value, error)

	// Close releases the handle. The device may then be opened by
	// another process (e.g. an external handler program).
	Close() error
}

var (
	backendsMu sync.RWMutex
	backends   = make(map[string]func() Backend)
)

// Register makes a backend constructor available under a name.
// Concrete hardware backends register themselves from their init
// functions, mirroring database/sql driver registration.
func Register(name string, factory func() Backend) {
	backendsMu.Lock()
	defer backendsMu.Unlock()
	if factory == nil {
		panic("hal: Register factory is nil")
	}
	if _, dup := backends[name]; dup {
		panic("hal: Register called twice for backend " + name)
	}
	backends[name] = factory
}

// New constructs the named backend.
func New(name string) (Backend, error) {
	backendsMu.RLock()
	factory, ok := backends[name]
	backendsMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("hal: unknown backend %q (registered: %v)", name, BackendNames())
	}
	return factory(), nil
}

// BackendNames lists the registered backend names, sorted.
func BackendNames() []string {
	backendsMu.RLock()
	defer backendsMu.RUnlock()
	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
