package engine

import (
	"regexp"

	"github.com/buttond/buttond/pkg/hal"
)

// numericCondition fires when the cached sample equals from and the
// fresh sample equals to.
type numericCondition struct {
	from uint64
	to   uint64
}

// textCondition fires when the cached sample matches from and the
// fresh sample matches to. The two patterns are independent.
type textCondition struct {
	from *regexp.Regexp
	to   *regexp.Regexp
}

// triggerBinding is a trigger rule resolved against a concrete option
// index on a concrete device. Exactly one of numeric/text is set.
type triggerBinding struct {
	// option is the bound option index, 1 <= option < optionCount.
	option int

	// name is the rule title, exported as the ACTION variable.
	name string

	// script is the handler path or the config.ScriptNone sentinel.
	script string

	numeric *numericCondition
	text    *textCondition

	// last is the value sampled in the previous polling pass. The
	// worker replaces it on every re-sample.
	last hal.Value
}

// matches reports whether prev->cur is the watched transition.
func (b *triggerBinding) matches(prev, cur hal.Value) bool {
	if b.numeric != nil {
		return b.numeric.from == prev.Num && b.numeric.to == cur.Num
	}
	if b.text != nil {
		return b.text.from.MatchString(prev.Str) && b.text.to.MatchString(cur.Str)
	}
	return false
}

// exportBinding is an export rule resolved against a concrete option
// index. At most one export binding exists per option index.
type exportBinding struct {
	// option is the bound option index.
	option int

	// env is the environment variable name the value is exported as.
	env string
}
