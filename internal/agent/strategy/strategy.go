// Package strategy holds the mutually exclusive response-generation paths and
// the router that picks exactly one of them per classification.
package strategy

import (
	"context"

	"github.com/waellejmi/qwery-core-sub001/internal/agent/model"
)

// Strategy produces one streaming answer for a request.
type Strategy interface {
	Name() string
	Execute(ctx context.Context, req *model.Request, cls model.Classification) (*model.StreamResult, error)
}

// Set bundles the three built-in strategies for routing.
type Set struct {
	Greeting      Strategy
	Summarize     Strategy
	DataRetrieval Strategy
}

// Route selects exactly one strategy for the classification. The Intent type
// is a closed set (unknown wire tags are normalised to IntentOther at parse
// time), so this switch covers every value it can see; IntentOther doubles as
// the safe default.
func (s Set) Route(cls model.Classification) Strategy {
	switch cls.Intent {
	case model.IntentGreeting:
		return s.Greeting
	case model.IntentReadData:
		return s.DataRetrieval
	default:
		return s.Summarize
	}
}
