package config

import (
	"time"
)

// DefaultPollInterval is used when poll_interval_ms is absent or
// non-positive.
const DefaultPollInterval = 500 * time.Millisecond

// ScriptNone is the sentinel script value meaning "detect the
// transition but do not invoke an external handler".
const ScriptNone = "none"

// Config is the full rule tree consumed by the engine.
type Config struct {
	// Global holds daemon-wide settings and the global rule section.
	Global Global `yaml:"global" validate:"required"`

	// Devices are device-specific rule sections, layered on top of
	// the global section for devices whose name matches the filter.
	Devices []DeviceSection `yaml:"devices,omitempty" validate:"dive"`
}

// Global is the daemon-wide rule section.
type Global struct {
	// PollIntervalMS is the sampling interval in milliseconds.
	PollIntervalMS int `yaml:"poll_interval_ms,omitempty"`

	// MultipleTriggers allows several trigger rules to bind the same
	// option index. When false, a later rule matching an already-bound
	// option overwrites that binding in place.
	MultipleTriggers bool `yaml:"multiple_triggers,omitempty"`

	// User and Group name the account the handler child process runs
	// as. Empty means the daemon's own credentials.
	User  string `yaml:"user,omitempty"`
	Group string `yaml:"group,omitempty"`

	// DeviceVar and ActionVar name the environment variables that
	// carry the device name and firing rule title to the handler.
	// An empty name omits the variable.
	DeviceVar string `yaml:"device_var,omitempty"`
	ActionVar string `yaml:"action_var,omitempty"`

	// Exports are the option-to-environment export rules.
	Exports []ExportRule `yaml:"exports,omitempty" validate:"dive"`

	// Triggers are the global trigger rules.
	Triggers []TriggerRule `yaml:"triggers,omitempty" validate:"dive"`
}

// DeviceSection is a rule section applied only to devices whose name
// matches Filter.
type DeviceSection struct {
	// Name titles the section for logging.
	Name string `yaml:"name,omitempty"`

	// Filter is a regular expression matched against device names.
	Filter string `yaml:"filter" validate:"required"`

	// Triggers are layered on top of (and can override) global
	// bindings targeting the same option.
	Triggers []TriggerRule `yaml:"triggers,omitempty" validate:"dive"`
}

// ExportRule maps a matched option to an environment variable.
type ExportRule struct {
	// Filter is a regular expression matched against option names.
	Filter string `yaml:"filter" validate:"required"`

	// Env is the environment variable name the option value is
	// exported as.
	Env string `yaml:"env" validate:"required"`
}

// TriggerRule declares a watched transition and its handler script.
// Exactly one of Numeric or Text must be set.
type TriggerRule struct {
	// Name titles the rule; it is exported as the ACTION variable.
	Name string `yaml:"name,omitempty"`

	// Filter is a regular expression matched against option names.
	Filter string `yaml:"filter" validate:"required"`

	// Script is the handler program path, or ScriptNone. Relative
	// paths resolve against the script directory. Empty means
	// ScriptNone.
	Script string `yaml:"script,omitempty"`

	// Numeric is the from/to condition for numeric-kind options.
	Numeric *NumericCondition `yaml:"numeric,omitempty"`

	// Text is the from/to pattern condition for text-kind options.
	Text *TextCondition `yaml:"text,omitempty"`
}

// NumericCondition fires when the cached sample equals From and the
// fresh sample equals To.
type NumericCondition struct {
	From uint64 `yaml:"from"`
	To   uint64 `yaml:"to"`
}

// TextCondition fires when the cached sample matches From and the
// fresh sample matches To. Both are independently compiled regular
// expressions.
type TextCondition struct {
	From string `yaml:"from" validate:"required"`
	To   string `yaml:"to" validate:"required"`
}

// PollInterval returns the configured sampling interval, falling back
// to DefaultPollInterval when absent or non-positive.
func (g Global) PollInterval() time.Duration {
	if g.PollIntervalMS <= 0 {
		return DefaultPollInterval
	}
	return time.Duration(g.PollIntervalMS) * time.Millisecond
}

// ScriptOrNone returns the rule's script, mapping the empty string to
// ScriptNone.
func (r TriggerRule) ScriptOrNone() string {
	if r.Script == "" {
		return ScriptNone
	}
	return r.Script
}
