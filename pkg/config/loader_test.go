package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const sampleConfig = `
global:
  poll_interval_ms: 250
  multiple_triggers: true
  user: saned
  group: scanner
  device_var: DEVICE
  action_var: ACTION
  exports:
    - filter: "^page-count$"
      env: PAGE_COUNT
  triggers:
    - name: scan
      filter: "^scan$"
      script: scan.sh
      numeric:
        from: 0
        to: 1
    - name: status
      filter: "^status$"
      text:
        from: "^idle$"
        to: "^busy$"
devices:
  - name: fujitsu
    filter: "^fujitsu.*"
    triggers:
      - name: email
        filter: "^email$"
        script: /usr/local/bin/email.sh
        numeric:
          from: 1
          to: 0
`

func TestParse_FullConfig(t *testing.T) {
	cfg, err := NewLoader().Parse([]byte(sampleConfig))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if got := cfg.Global.PollInterval(); got != 250*time.Millisecond {
		t.Errorf("expected poll interval 250ms, got %s", got)
	}
	if !cfg.Global.MultipleTriggers {
		t.Error("expected multiple_triggers to be set")
	}
	if cfg.Global.User != "saned" || cfg.Global.Group != "scanner" {
		t.Errorf("unexpected credentials %q/%q", cfg.Global.User, cfg.Global.Group)
	}
	if len(cfg.Global.Triggers) != 2 {
		t.Fatalf("expected 2 global triggers, got %d", len(cfg.Global.Triggers))
	}

	scan := cfg.Global.Triggers[0]
	if scan.Numeric == nil || scan.Numeric.From != 0 || scan.Numeric.To != 1 {
		t.Errorf("unexpected numeric condition: %+v", scan.Numeric)
	}
	if scan.ScriptOrNone() != "scan.sh" {
		t.Errorf("unexpected script %q", scan.ScriptOrNone())
	}

	status := cfg.Global.Triggers[1]
	if status.Text == nil || status.Text.From != "^idle$" || status.Text.To != "^busy$" {
		t.Errorf("unexpected text condition: %+v", status.Text)
	}

	if len(cfg.Devices) != 1 || cfg.Devices[0].Filter != "^fujitsu.*" {
		t.Fatalf("unexpected device sections: %+v", cfg.Devices)
	}
	if len(cfg.Devices[0].Triggers) != 1 {
		t.Errorf("expected 1 device trigger, got %d", len(cfg.Devices[0].Triggers))
	}
}

func TestParse_UnknownFieldRejected(t *testing.T) {
	_, err := NewLoader().Parse([]byte("global:\n  pol_interval_ms: 250\n"))
	if err == nil {
		t.Fatal("expected an error for a misspelled field")
	}
}

func TestParse_MalformedYAML(t *testing.T) {
	_, err := NewLoader().Parse([]byte("global: [what"))
	if err == nil {
		t.Fatal("expected a parse error")
	}
}

func TestValidate_TriggerNeedsExactlyOneCondition(t *testing.T) {
	cases := []struct {
		name string
		rule TriggerRule
		ok   bool
	}{
		{"numeric only", TriggerRule{Filter: "^scan$", Numeric: &NumericCondition{To: 1}}, true},
		{"text only", TriggerRule{Filter: "^status$", Text: &TextCondition{From: "a", To: "b"}}, true},
		{"neither", TriggerRule{Filter: "^scan$"}, false},
		{"both", TriggerRule{
			Filter:  "^scan$",
			Numeric: &NumericCondition{To: 1},
			Text:    &TextCondition{From: "a", To: "b"},
		}, false},
	}

	l := NewLoader()
	for _, tc := range cases {
		cfg := &Config{Global: Global{Triggers: []TriggerRule{tc.rule}}}
		err := l.Validate(cfg)
		if tc.ok && err != nil {
			t.Errorf("%s: unexpected error: %v", tc.name, err)
		}
		if !tc.ok && err == nil {
			t.Errorf("%s: expected a validation error", tc.name)
		}
	}
}

func TestValidate_DeviceSectionNeedsFilter(t *testing.T) {
	cfg := &Config{
		Devices: []DeviceSection{{Name: "unfiltered"}},
	}
	if err := NewLoader().Validate(cfg); err == nil {
		t.Fatal("expected a validation error for a device section without a filter")
	}
}

func TestValidate_ExportNeedsEnvName(t *testing.T) {
	cfg := &Config{Global: Global{
		Exports: []ExportRule{{Filter: "^counter$"}},
	}}
	if err := NewLoader().Validate(cfg); err == nil {
		t.Fatal("expected a validation error for an export without an env name")
	}
}

func TestValidate_DeviceTriggerConditionChecked(t *testing.T) {
	cfg := &Config{
		Devices: []DeviceSection{{
			Filter:   "^fujitsu.*",
			Triggers: []TriggerRule{{Filter: "^scan$"}},
		}},
	}
	err := NewLoader().Validate(cfg)
	if err == nil {
		t.Fatal("expected a validation error for a conditionless device trigger")
	}
	if !strings.Contains(err.Error(), "exactly one of numeric/text") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestPollInterval_Default(t *testing.T) {
	var g Global
	if got := g.PollInterval(); got != DefaultPollInterval {
		t.Errorf("expected the default interval, got %s", got)
	}
	g.PollIntervalMS = -20
	if got := g.PollInterval(); got != DefaultPollInterval {
		t.Errorf("expected the default interval for a negative setting, got %s", got)
	}
}

func TestScriptOrNone(t *testing.T) {
	if got := (TriggerRule{}).ScriptOrNone(); got != ScriptNone {
		t.Errorf("expected the none sentinel for an empty script, got %q", got)
	}
	if got := (TriggerRule{Script: "x.sh"}).ScriptOrNone(); got != "x.sh" {
		t.Errorf("expected the script to pass through, got %q", got)
	}
}

func TestLoad_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "buttond.yaml")
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(cfg.Global.Triggers) != 2 {
		t.Errorf("expected 2 triggers, got %d", len(cfg.Global.Triggers))
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}
