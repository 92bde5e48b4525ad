package model

import "strings"

// Intent is the closed set of intents the router dispatches on. Unknown wire
// values are normalised to IntentOther at parse time, so routing over this
// type never sees an unmapped tag.
type Intent string

const (
	IntentGreeting Intent = "greeting"
	IntentReadData Intent = "read-data"
	IntentOther    Intent = "other"
)

// ParseIntent normalises a wire-level intent tag into the closed Intent set.
func ParseIntent(s string) Intent {
	switch Intent(strings.ToLower(strings.TrimSpace(s))) {
	case IntentGreeting:
		return IntentGreeting
	case IntentReadData:
		return IntentReadData
	default:
		return IntentOther
	}
}

// Complexity tags how involved answering the input is expected to be.
type Complexity string

const (
	ComplexitySimple  Complexity = "simple"
	ComplexityComplex Complexity = "complex"
)

// ParseComplexity normalises a wire-level complexity tag.
func ParseComplexity(s string) Complexity {
	if Complexity(strings.ToLower(strings.TrimSpace(s))) == ComplexityComplex {
		return ComplexityComplex
	}
	return ComplexitySimple
}

// Classification is the structured result of intent detection for one input.
type Classification struct {
	Intent     Intent
	Complexity Complexity
	NeedsChart bool
	NeedsSQL   bool
}

// DefaultClassification is the degraded fallback used when classification
// fails terminally. It must not block the request: the input is treated as a
// simple conversational message.
func DefaultClassification() Classification {
	return Classification{
		Intent:     IntentOther,
		Complexity: ComplexitySimple,
		NeedsChart: false,
		NeedsSQL:   false,
	}
}
