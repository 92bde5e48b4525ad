// Package orchestrator coordinates one conversation's request lifecycle:
// classify the input, route it to a response strategy, execute the strategy,
// and deliver the streaming result to the caller whose input is still
// current. A newer request on the same conversation preempts the one in
// flight; results produced for a superseded input are discarded, never
// delivered.
package orchestrator

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cloudwego/eino/schema"

	"github.com/waellejmi/qwery-core-sub001/internal/agent/model"
	"github.com/waellejmi/qwery-core-sub001/internal/agent/strategy"
	errx "github.com/waellejmi/qwery-core-sub001/internal/core/error"
	logx "github.com/waellejmi/qwery-core-sub001/pkg/logger"
)

// Classifier is the classification step as the machine sees it. The default
// implementation (classify.Service) degrades internally and never errors;
// custom classifiers that do error fail the request only, not the machine.
type Classifier interface {
	Classify(ctx context.Context, text string) (model.Classification, error)
}

type Config struct {
	// HandleTimeout is the global ceiling on one Handle call. Zero disables it.
	HandleTimeout time.Duration
}

// Orchestrator is the per-conversation state machine. It never runs two
// transitions concurrently: all mutation happens on the event loop goroutine.
type Orchestrator struct {
	conversationID string
	classifier     Classifier
	strategies     strategy.Set
	repo           model.ConversationRepository
	cfg            Config

	events   chan event
	stopped  chan struct{}
	stopOnce sync.Once

	// state and transitions are the observable snapshot for timeout
	// diagnostics; everything else is loop-owned.
	state       atomic.Int32
	transitions atomic.Uint64

	cc        convContext
	seq       uint64
	runCancel context.CancelFunc
	waiter    chan outcome
}

// New constructs the machine and hydrates prior history (loadContext), then
// starts the event loop in the idle state.
func New(ctx context.Context, conversationID string, classifier Classifier, strategies strategy.Set, repo model.ConversationRepository, cfg Config) (*Orchestrator, error) {
	o := &Orchestrator{
		conversationID: conversationID,
		classifier:     classifier,
		strategies:     strategies,
		repo:           repo,
		cfg:            cfg,
		events:         make(chan event, 16),
		stopped:        make(chan struct{}),
	}

	o.setState(StateLoadContext)
	if repo != nil {
		history, err := repo.LoadHistory(ctx, conversationID)
		if err != nil {
			return nil, errx.New(err, errx.KindUnavailable, "load prior messages")
		}
		o.cc.history = history.Messages
	}
	o.setState(StateIdle)

	go o.loop()
	return o, nil
}

func (o *Orchestrator) ConversationID() string {
	return o.conversationID
}

// State reports the last observed machine state.
func (o *Orchestrator) State() State {
	return State(o.state.Load())
}

// Transitions reports how many state transitions have happened so far.
func (o *Orchestrator) Transitions() uint64 {
	return o.transitions.Load()
}

// Handle submits the request and blocks until a result whose originating
// input matches this request is produced, an error is recorded, the request
// is preempted by newer input, or the global ceiling expires. It resolves
// exactly once.
func (o *Orchestrator) Handle(ctx context.Context, req *model.Request) (*model.StreamResult, error) {
	if o.isStopped() {
		return nil, errx.Stopped()
	}

	if o.cfg.HandleTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.HandleTimeout)
		defer cancel()
	}

	start := time.Now()
	waiter := make(chan outcome, 1)

	select {
	case o.events <- userInputEvent{req: req, waiter: waiter}:
	case <-o.stopped:
		return nil, errx.Stopped()
	case <-ctx.Done():
		return nil, o.ctxErr(ctx, start)
	}

	select {
	case out := <-waiter:
		return out.res, out.err
	case <-o.stopped:
		o.abandon(waiter)
		return nil, errx.Stopped()
	case <-ctx.Done():
		o.abandon(waiter)
		return nil, o.ctxErr(ctx, start)
	}
}

// abandon reclaims an outcome resolved after its caller stopped waiting.
// Closing the released stream unblocks the copier, which finishes the turn
// and returns the machine to idle.
func (o *Orchestrator) abandon(waiter chan outcome) {
	go func() {
		select {
		case out := <-waiter:
			if out.res != nil {
				out.res.Stream.Close()
			}
		case <-o.stopped:
		}
	}()
}

// Stop tears the conversation down. In-flight work is cancelled; a pending
// caller receives the stopped error. Idempotent.
func (o *Orchestrator) Stop() {
	o.stopOnce.Do(func() {
		done := make(chan struct{})
		o.events <- stopEvent{done: done}
		<-done
	})
}

func (o *Orchestrator) isStopped() bool {
	select {
	case <-o.stopped:
		return true
	default:
		return false
	}
}

func (o *Orchestrator) ctxErr(ctx context.Context, start time.Time) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return errx.Timeout("handle", o.State().String(), o.Transitions(), time.Since(start))
	}
	return ctx.Err()
}

func (o *Orchestrator) setState(s State) {
	o.state.Store(int32(s))
	o.transitions.Add(1)
}

// ===================== event loop =====================

func (o *Orchestrator) loop() {
	for ev := range o.events {
		switch ev := ev.(type) {
		case userInputEvent:
			o.onUserInput(ev)
		case phaseEvent:
			o.onPhase(ev)
		case resultEvent:
			o.onResult(ev)
		case finishEvent:
			o.onFinish(ev)
		case stopEvent:
			o.onStop(ev)
			return
		}
	}
}

// send posts loop-bound events from worker goroutines without leaking after
// teardown.
func (o *Orchestrator) send(ev event) {
	select {
	case o.events <- ev:
	case <-o.stopped:
	}
}

func (o *Orchestrator) onUserInput(ev userInputEvent) {
	// Preempt any in-flight request: cancel its work and tell its caller.
	if o.runCancel != nil {
		o.runCancel()
		o.runCancel = nil
	}
	if o.waiter != nil {
		o.waiter <- outcome{err: errx.Preempted()}
		o.waiter = nil
	}

	o.seq++
	o.cc.reset(ev.req.Model, ev.req.Input)
	o.waiter = ev.waiter

	userMsg := schema.UserMessage(ev.req.Input)
	o.cc.history = append(o.cc.history, userMsg)
	o.persist(userMsg)

	// The running request sees an immutable snapshot of the context.
	runReq := &model.Request{
		ID:             ev.req.ID,
		ConversationID: o.conversationID,
		Model:          o.cc.model,
		Input:          o.cc.input,
		History:        snapshot(o.cc.history),
	}

	runCtx, cancel := context.WithCancel(context.Background())
	o.runCancel = cancel
	o.setState(StateClassifying)

	logx.Debug().
		Str("conversation_id", o.conversationID).
		Str("request_id", runReq.ID).
		Uint64("seq", o.seq).
		Msg("request accepted")

	go o.run(runCtx, o.seq, runReq)
}

// run executes classify → route → execute off the loop, reporting progress
// and the terminal outcome back as events tagged with its sequence number.
func (o *Orchestrator) run(ctx context.Context, seq uint64, req *model.Request) {
	cls, err := o.classifier.Classify(ctx, req.Input)
	if err != nil {
		o.send(resultEvent{seq: seq, err: errx.RequestFatal(err, "classification failed")})
		return
	}
	o.send(phaseEvent{seq: seq, state: StateRouting, class: &cls})

	strat := o.strategies.Route(cls)
	o.send(phaseEvent{seq: seq, state: StateExecuting})

	logx.Debug().
		Str("conversation_id", req.ConversationID).
		Str("request_id", req.ID).
		Str("intent", string(cls.Intent)).
		Str("strategy", strat.Name()).
		Msg("strategy selected")

	res, err := strat.Execute(ctx, req, cls)
	o.send(resultEvent{seq: seq, res: res, err: err})
}

func (o *Orchestrator) onPhase(ev phaseEvent) {
	if ev.seq != o.seq {
		return // progress of a preempted run
	}
	if ev.class != nil {
		o.cc.lastClass = *ev.class
	}
	o.setState(ev.state)
}

func (o *Orchestrator) onResult(ev resultEvent) {
	if ev.seq != o.seq {
		// Outcome of a preempted run: discard, releasing any produced stream.
		if ev.res != nil {
			ev.res.Stream.Close()
		}
		return
	}

	if ev.err != nil {
		o.cc.err = ev.err
		o.cc.lastDetail = ev.err.Error()
		o.setState(StateIdle)
		o.resolve(outcome{err: ev.err})
		return
	}

	// Correlation guard: only a result whose originating input equals the
	// active input may be delivered.
	if ev.res == nil || ev.res.Input != o.cc.input {
		if ev.res != nil {
			ev.res.Stream.Close()
		}
		logx.Warn().
			Str("conversation_id", o.conversationID).
			Msg("discarding result for stale input")
		return
	}

	delivered := o.watchStream(ev.seq, ev.res)
	o.cc.result = delivered
	o.setState(StateStreaming)
	o.resolve(outcome{res: delivered})
}

func (o *Orchestrator) onFinish(ev finishEvent) {
	if ev.seq != o.seq {
		return
	}
	if ev.answer != "" {
		assistantMsg := schema.AssistantMessage(ev.answer, nil)
		o.cc.history = append(o.cc.history, assistantMsg)
		o.persist(assistantMsg)
	}
	o.cc.result = nil
	o.runCancel = nil
	o.setState(StateIdle)
}

func (o *Orchestrator) onStop(ev stopEvent) {
	if o.runCancel != nil {
		o.runCancel()
		o.runCancel = nil
	}
	if o.waiter != nil {
		o.waiter <- outcome{err: errx.Stopped()}
		o.waiter = nil
	}
	o.setState(StateStopped)
	close(o.stopped)
	close(ev.done)
}

// resolve hands the outcome to the pending caller, exactly once.
func (o *Orchestrator) resolve(out outcome) {
	if o.waiter == nil {
		return
	}
	o.waiter <- out
	o.waiter = nil
}

// watchStream re-streams the strategy output so the machine observes
// consumption: when the caller drains or closes the stream, the loop gets a
// finish event carrying the accumulated answer text.
func (o *Orchestrator) watchStream(seq uint64, res *model.StreamResult) *model.StreamResult {
	src := res.Stream
	sr, sw := schema.Pipe[*schema.Message](8)

	go func() {
		defer src.Close()
		defer sw.Close()

		var answer strings.Builder
		for {
			chunk, err := src.Recv()
			if err == io.EOF {
				break
			}
			if err != nil {
				sw.Send(nil, err)
				break
			}
			if chunk != nil {
				answer.WriteString(chunk.Content)
			}
			if closed := sw.Send(chunk, nil); closed {
				break
			}
		}
		o.send(finishEvent{seq: seq, answer: answer.String()})
	}()

	return &model.StreamResult{Input: res.Input, Stream: sr}
}

func (o *Orchestrator) persist(msg *schema.Message) {
	if o.repo == nil {
		return
	}
	if err := o.repo.AddMessage(context.Background(), o.conversationID, msg); err != nil {
		logx.Error().
			Str("conversation_id", o.conversationID).
			Err(err).
			Msg("failed to persist message")
	}
}

func snapshot(msgs []*schema.Message) []*schema.Message {
	out := make([]*schema.Message, len(msgs))
	copy(out, msgs)
	return out
}
