package orchestrator

import (
	"github.com/cloudwego/eino/schema"

	"github.com/waellejmi/qwery-core-sub001/internal/agent/model"
)

// State is the closed set of machine states for one conversation. Transitions
// happen only on the orchestrator's own event loop.
type State int32

const (
	// StateLoadContext hydrates prior message history during construction.
	StateLoadContext State = iota
	// StateIdle awaits input.
	StateIdle
	// StateClassifying through StateStreaming are the running sub-states.
	StateClassifying
	StateRouting
	StateExecuting
	StateStreaming
	// StateStopped is terminal; no further events are processed.
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateLoadContext:
		return "load_context"
	case StateIdle:
		return "idle"
	case StateClassifying:
		return "classifying"
	case StateRouting:
		return "routing"
	case StateExecuting:
		return "executing"
	case StateStreaming:
		return "streaming"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// event is the closed union of everything the machine reacts to. All
// implementations live in this file; the loop's type switch is exhaustive
// over them.
type event interface{ isEvent() }

// userInputEvent submits a new request, preempting any in-flight one.
type userInputEvent struct {
	req    *model.Request
	waiter chan outcome
}

// phaseEvent reports sub-state progress from the running sequence.
type phaseEvent struct {
	seq   uint64
	state State
	class *model.Classification
}

// resultEvent reports the terminal outcome of the running sequence.
type resultEvent struct {
	seq uint64
	res *model.StreamResult
	err error
}

// finishEvent reports that the delivered stream has been fully consumed.
type finishEvent struct {
	seq    uint64
	answer string
}

// stopEvent tears the conversation down.
type stopEvent struct {
	done chan struct{}
}

func (userInputEvent) isEvent() {}
func (phaseEvent) isEvent()     {}
func (resultEvent) isEvent()    {}
func (finishEvent) isEvent()    {}
func (stopEvent) isEvent()      {}

// outcome is what a waiting Handle call receives, exactly once.
type outcome struct {
	res *model.StreamResult
	err error
}

// convContext is the per-conversation mutable state, owned exclusively by the
// event loop. Strategies read a snapshot through the Request; they never
// mutate it directly.
type convContext struct {
	model      string
	input      string
	history    []*schema.Message
	lastClass  model.Classification
	result     *model.StreamResult
	err        error
	lastDetail string
}

func (c *convContext) reset(modelName, input string) {
	c.model = modelName
	c.input = input
	c.result = nil
	c.err = nil
	c.lastDetail = ""
}
