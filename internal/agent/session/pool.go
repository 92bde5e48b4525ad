// Package session owns the per-conversation binding of an orchestrator
// instance and its access metadata: single-flight construction, idle
// eviction by a periodic sweep, and explicit invalidation when a
// conversation's configuration changes.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/waellejmi/qwery-core-sub001/internal/agent/model"
	"github.com/waellejmi/qwery-core-sub001/internal/agent/orchestrator"
	errx "github.com/waellejmi/qwery-core-sub001/internal/core/error"
	logx "github.com/waellejmi/qwery-core-sub001/pkg/logger"
)

// Factory constructs a fresh orchestrator for a conversation, loading its
// prior context.
type Factory func(ctx context.Context, conversationID string) (*orchestrator.Orchestrator, error)

type entry struct {
	orch       *orchestrator.Orchestrator
	lastAccess time.Time
}

// Pool is the unit external callers invoke. It is safe for concurrent use;
// the entry map is the only state shared across conversations.
type Pool struct {
	factory Factory
	cfg     model.SessionConfig
	clock   func() time.Time
	log     zerolog.Logger

	mu      sync.Mutex
	entries map[string]*entry
	group   singleflight.Group

	stopOnce sync.Once
	done     chan struct{}
}

// Option adjusts pool construction.
type Option func(*Pool)

// WithClock injects the time source. Tests use it to drive eviction.
func WithClock(clock func() time.Time) Option {
	return func(p *Pool) { p.clock = clock }
}

func New(factory Factory, cfg model.SessionConfig, opts ...Option) *Pool {
	p := &Pool{
		factory: factory,
		cfg:     cfg,
		clock:   time.Now,
		log:     logx.With("session"),
		entries: make(map[string]*entry),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start launches the periodic sweep. Call Stop to end it.
func (p *Pool) Start() {
	if p.cfg.SweepInterval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(p.cfg.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				p.Sweep()
			case <-p.done:
				return
			}
		}
	}()
}

// GetOrCreate returns the live orchestrator for the conversation, updating
// its last-access timestamp, or constructs one. Concurrent first requests
// for the same id share a single construction.
func (p *Pool) GetOrCreate(ctx context.Context, conversationID string) (*orchestrator.Orchestrator, error) {
	if p.isDone() {
		return nil, errx.Stopped()
	}

	p.mu.Lock()
	if e, ok := p.entries[conversationID]; ok {
		e.lastAccess = p.clock()
		p.mu.Unlock()
		return e.orch, nil
	}
	p.mu.Unlock()

	v, err, _ := p.group.Do(conversationID, func() (any, error) {
		// Re-check under the lock: a previous flight may have registered the
		// entry between our miss and this call.
		p.mu.Lock()
		if e, ok := p.entries[conversationID]; ok {
			e.lastAccess = p.clock()
			p.mu.Unlock()
			return e.orch, nil
		}
		p.mu.Unlock()

		orch, err := p.factory(ctx, conversationID)
		if err != nil {
			return nil, err
		}

		p.mu.Lock()
		p.entries[conversationID] = &entry{orch: orch, lastAccess: p.clock()}
		p.mu.Unlock()

		p.log.Info().Str("conversation_id", conversationID).Msg("session created")
		return orch, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*orchestrator.Orchestrator), nil
}

// Handle is the single external entry point: resolve the conversation's
// orchestrator and submit the request. A sweep or invalidation can stop an
// orchestrator between lookup and submit; that narrow race is retried once
// on a fresh instance.
func (p *Pool) Handle(ctx context.Context, conversationID, modelName, input string) (*model.StreamResult, error) {
	res, err := p.handleOnce(ctx, conversationID, modelName, input)
	if err != nil && errx.KindOf(err) == errx.KindStopped && !p.isDone() {
		p.log.Debug().Str("conversation_id", conversationID).Msg("session stopped mid-request, retrying on a fresh instance")
		p.Invalidate(conversationID)
		res, err = p.handleOnce(ctx, conversationID, modelName, input)
	}
	return res, err
}

func (p *Pool) handleOnce(ctx context.Context, conversationID, modelName, input string) (*model.StreamResult, error) {
	orch, err := p.GetOrCreate(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	return orch.Handle(ctx, model.NewRequest(conversationID, modelName, input, nil))
}

func (p *Pool) isDone() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// Sweep stops and removes any orchestrator idle past the inactivity window.
func (p *Pool) Sweep() {
	cutoff := p.clock().Add(-p.cfg.IdleWindow)

	p.mu.Lock()
	var expired []*orchestrator.Orchestrator
	for id, e := range p.entries {
		if e.lastAccess.Before(cutoff) {
			expired = append(expired, e.orch)
			delete(p.entries, id)
		}
	}
	p.mu.Unlock()

	for _, orch := range expired {
		p.log.Info().Str("conversation_id", orch.ConversationID()).Msg("session evicted after inactivity")
		orch.Stop()
	}
}

// Invalidate stops and removes the conversation's orchestrator so the next
// request constructs a fresh one. Used when the conversation's configuration
// (e.g. its data-source list) changes.
func (p *Pool) Invalidate(conversationID string) {
	p.mu.Lock()
	e, ok := p.entries[conversationID]
	if ok {
		delete(p.entries, conversationID)
	}
	p.mu.Unlock()

	if ok {
		p.log.Info().Str("conversation_id", conversationID).Msg("session invalidated")
		e.orch.Stop()
	}
}

// Len reports the number of live sessions.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

// Stop ends the sweep and tears down every live session.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		close(p.done)

		p.mu.Lock()
		all := make([]*orchestrator.Orchestrator, 0, len(p.entries))
		for id, e := range p.entries {
			all = append(all, e.orch)
			delete(p.entries, id)
		}
		p.mu.Unlock()

		for _, orch := range all {
			orch.Stop()
		}
	})
}
