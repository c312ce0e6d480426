package engine

import (
	"regexp"

	"github.com/buttond/buttond/pkg/config"
	"github.com/buttond/buttond/pkg/hal"
)

// The rule matcher compiles the filter patterns of a rule section
// against the worker's live option descriptors and produces concrete
// bindings. It runs with the worker lock held, during initialization
// only; the sampling loop never re-enters it.

// bindTriggerRules binds a section's trigger rules, in declaration
// order. Rules with unparsable filters or condition patterns are
// dropped individually; matching continues with the remaining rules.
func (w *Worker) bindTriggerRules(section string, rules []config.TriggerRule, multiple bool) {
	for _, rule := range rules {
		filter, err := regexp.Compile(rule.Filter)
		if err != nil {
			w.logger.WithError(err).Warnf("can't compile filter %q of trigger rule %q in section %s",
				rule.Filter, rule.Name, section)
			continue
		}
		for opt := 1; opt < w.optionCount; opt++ {
			desc, ok := w.eligibleOption(opt)
			if !ok || !filter.MatchString(desc.Name) {
				continue
			}
			w.installTriggerBinding(rule, desc, multiple)
		}
	}
}

// bindExportRules binds a section's export rules. Later rules override
// earlier bindings targeting the same option index.
func (w *Worker) bindExportRules(section string, rules []config.ExportRule) {
	for _, rule := range rules {
		filter, err := regexp.Compile(rule.Filter)
		if err != nil {
			w.logger.WithError(err).Warnf("can't compile filter %q of export rule in section %s",
				rule.Filter, section)
			continue
		}
		for opt := 1; opt < w.optionCount; opt++ {
			desc, ok := w.eligibleOption(opt)
			if !ok || !filter.MatchString(desc.Name) {
				continue
			}
			w.installExportBinding(rule, desc)
		}
	}
}

// eligibleOption returns the descriptor at opt if it can be bound:
// present, active, named, and of a supported kind.
func (w *Worker) eligibleOption(opt int) (hal.OptionDescriptor, bool) {
	log := w.logger.WithOption(opt)
	if w.handle == nil {
		return hal.OptionDescriptor{}, false
	}
	desc, ok := w.handle.Describe(opt)
	if !ok {
		log.Debug("option has no descriptor")
		return hal.OptionDescriptor{}, false
	}
	if !desc.Active {
		log.Debug("option is not active")
		return hal.OptionDescriptor{}, false
	}
	if desc.Name == "" {
		log.Debug("option has no name")
		return hal.OptionDescriptor{}, false
	}
	if !desc.Kind.Supported() {
		log.Warnf("option %s is of unsupported kind %s, skipping", desc.Name, desc.Kind)
		return hal.OptionDescriptor{}, false
	}
	return desc, true
}

// installTriggerBinding resolves the binding slot for a matched rule
// and installs a fully-built binding there. The slot policy: a rule
// matching an already-bound option overwrites that binding in place,
// unless multiple triggers are allowed, in which case it appends while
// capacity (the option count) remains and is dropped otherwise.
func (w *Worker) installTriggerBinding(rule config.TriggerRule, desc hal.OptionDescriptor, multiple bool) {
	log := w.logger.WithOption(desc.Index)

	binding, ok := w.buildTriggerBinding(rule, desc)
	if !ok {
		return
	}

	slot := -1
	for n := range w.triggers {
		if w.triggers[n].option == desc.Index {
			if !multiple {
				log.Warnf("trigger rule %q overrides script %s of option %s with %s",
					rule.Name, w.triggers[n].script, desc.Name, binding.script)
				slot = n
			}
			break
		}
	}

	if slot >= 0 {
		w.triggers[slot] = binding
		return
	}
	if len(w.triggers) >= cap(w.triggers) {
		log.Warnf("can't add trigger rule %q for option %s: no capacity left", rule.Name, desc.Name)
		return
	}
	log.Infof("installing trigger rule %q (%d) for option %s as %s",
		rule.Name, len(w.triggers), desc.Name, binding.script)
	w.triggers = append(w.triggers, binding)
}

// buildTriggerBinding compiles a matched rule into a binding and
// initializes its cached value with one sample. A text rule whose from-
// or to-pattern fails to compile discards the entire binding.
func (w *Worker) buildTriggerBinding(rule config.TriggerRule, desc hal.OptionDescriptor) (triggerBinding, bool) {
	binding := triggerBinding{
		option: desc.Index,
		name:   rule.Name,
		script: rule.ScriptOrNone(),
	}

	switch {
	case desc.Kind.Numeric():
		if rule.Numeric == nil {
			w.logger.WithOption(desc.Index).Warnf(
				"trigger rule %q has no numeric condition for numeric option %s, dropping",
				rule.Name, desc.Name)
			return triggerBinding{}, false
		}
		binding.numeric = &numericCondition{from: rule.Numeric.From, to: rule.Numeric.To}
	default:
		if rule.Text == nil {
			w.logger.WithOption(desc.Index).Warnf(
				"trigger rule %q has no text condition for text option %s, dropping",
				rule.Name, desc.Name)
			return triggerBinding{}, false
		}
		from, err := regexp.Compile(rule.Text.From)
		if err != nil {
			w.logger.WithError(err).Warnf("can't compile from-pattern %q of trigger rule %q",
				rule.Text.From, rule.Name)
			return triggerBinding{}, false
		}
		to, err := regexp.Compile(rule.Text.To)
		if err != nil {
			w.logger.WithError(err).Warnf("can't compile to-pattern %q of trigger rule %q",
				rule.Text.To, rule.Name)
			return triggerBinding{}, false
		}
		binding.text = &textCondition{from: from, to: to}
	}

	binding.last = w.sampleLocked(desc.Index)
	w.logger.WithOption(desc.Index).Infof("initial value of option %s is %s", desc.Name, binding.last)
	return binding, true
}

// installExportBinding resolves the slot for a matched export rule.
func (w *Worker) installExportBinding(rule config.ExportRule, desc hal.OptionDescriptor) {
	log := w.logger.WithOption(desc.Index)
	for n := range w.exports {
		if w.exports[n].option == desc.Index {
			log.Warnf("export rule %s overrides export of option %s", rule.Env, desc.Name)
			w.exports[n].env = rule.Env
			return
		}
	}
	if len(w.exports) >= cap(w.exports) {
		log.Warnf("can't add export rule %s for option %s: no capacity left", rule.Env, desc.Name)
		return
	}
	log.Infof("installing export of option %s as %s", desc.Name, rule.Env)
	w.exports = append(w.exports, exportBinding{option: desc.Index, env: rule.Env})
}

// sectionFilterMatches compiles a device section's filter and tests it
// against the device name. A non-compiling filter skips the section.
func (w *Worker) sectionFilterMatches(sec config.DeviceSection) bool {
	filter, err := regexp.Compile(sec.Filter)
	if err != nil {
		w.logger.WithError(err).Warnf("can't compile filter %q of device section %q",
			sec.Filter, sec.Name)
		return false
	}
	return filter.MatchString(w.info.Name)
}
