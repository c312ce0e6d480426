package config

import (
	"bytes"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Loader parses and validates configuration files.
type Loader struct {
	validator *validator.Validate
}

// NewLoader creates a configuration loader.
func NewLoader() *Loader {
	return &Loader{
		validator: validator.New(),
	}
}

// Load reads, parses and validates the configuration file at path.
func (l *Loader) Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return l.Parse(data)
}

// Parse parses and validates raw YAML configuration data.
func (l *Loader) Parse(data []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := l.Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks struct tags plus cross-field rules the tags cannot
// express: every trigger rule must carry exactly one of numeric/text.
func (l *Loader) Validate(cfg *Config) error {
	if err := l.validator.Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	if err := validateTriggers("global", cfg.Global.Triggers); err != nil {
		return err
	}
	for _, sec := range cfg.Devices {
		name := sec.Name
		if name == "" {
			name = sec.Filter
		}
		if err := validateTriggers("device "+name, sec.Triggers); err != nil {
			return err
		}
	}
	return nil
}

func validateTriggers(section string, rules []TriggerRule) error {
	for i, r := range rules {
		if (r.Numeric == nil) == (r.Text == nil) {
			return fmt.Errorf("config validation failed: %s trigger %d (%s): exactly one of numeric/text is required",
				section, i, r.Filter)
		}
	}
	return nil
}

// Load is a convenience wrapper around a one-shot Loader.
func Load(path string) (*Config, error) {
	return NewLoader().Load(path)
}
