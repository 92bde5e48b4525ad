package session

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waellejmi/qwery-core-sub001/internal/agent/model"
	"github.com/waellejmi/qwery-core-sub001/internal/agent/orchestrator"
	"github.com/waellejmi/qwery-core-sub001/internal/agent/strategy"
	errx "github.com/waellejmi/qwery-core-sub001/internal/core/error"
)

type staticClassifier struct{}

func (staticClassifier) Classify(ctx context.Context, text string) (model.Classification, error) {
	if text == "hi" {
		return model.Classification{Intent: model.IntentGreeting}, nil
	}
	return model.DefaultClassification(), nil
}

type echoStrategy struct{ prefix string }

func (s *echoStrategy) Name() string { return s.prefix }
func (s *echoStrategy) Execute(ctx context.Context, req *model.Request, cls model.Classification) (*model.StreamResult, error) {
	return model.NewTextStream(req.Input, s.prefix, req.Input), nil
}

type countingFactory struct {
	constructions atomic.Int32
	delay         time.Duration
}

func (f *countingFactory) new(ctx context.Context, conversationID string) (*orchestrator.Orchestrator, error) {
	f.constructions.Add(1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return orchestrator.New(ctx, conversationID, staticClassifier{}, strategy.Set{
		Greeting:      &echoStrategy{prefix: "hello: "},
		Summarize:     &echoStrategy{prefix: "summary: "},
		DataRetrieval: &echoStrategy{prefix: "rows: "},
	}, nil, orchestrator.Config{HandleTimeout: time.Second})
}

func testPool(t *testing.T, factory *countingFactory, opts ...Option) *Pool {
	t.Helper()
	p := New(factory.new, model.SessionConfig{
		IdleWindow:    30 * time.Minute,
		SweepInterval: 0, // tests drive Sweep directly
		HandleTimeout: time.Second,
	}, opts...)
	t.Cleanup(p.Stop)
	return p
}

func TestGetOrCreate_SingleFlight(t *testing.T) {
	factory := &countingFactory{delay: 20 * time.Millisecond}
	p := testPool(t, factory)

	const callers = 16
	results := make([]*orchestrator.Orchestrator, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			orch, err := p.GetOrCreate(context.Background(), "conv-1")
			require.NoError(t, err)
			results[i] = orch
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), factory.constructions.Load(), "concurrent first requests must construct exactly one orchestrator")
	for _, orch := range results {
		assert.Same(t, results[0], orch, "all callers must receive the same instance")
	}
}

func TestGetOrCreate_ReusesLiveSession(t *testing.T) {
	factory := &countingFactory{}
	p := testPool(t, factory)

	first, err := p.GetOrCreate(context.Background(), "conv-1")
	require.NoError(t, err)
	second, err := p.GetOrCreate(context.Background(), "conv-1")
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, int32(1), factory.constructions.Load())
}

func TestSweep_EvictsIdleSessions(t *testing.T) {
	now := time.Now()
	var mu sync.Mutex
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	advance := func(d time.Duration) {
		mu.Lock()
		now = now.Add(d)
		mu.Unlock()
	}

	factory := &countingFactory{}
	p := testPool(t, factory, WithClock(clock))

	orch, err := p.GetOrCreate(context.Background(), "conv-1")
	require.NoError(t, err)
	require.Equal(t, 1, p.Len())

	// untouched within the window: kept
	advance(10 * time.Minute)
	p.Sweep()
	assert.Equal(t, 1, p.Len())

	// untouched past the window: stopped and removed
	advance(25 * time.Minute)
	p.Sweep()
	assert.Equal(t, 0, p.Len())
	assert.Equal(t, orchestrator.StateStopped, orch.State())

	// a subsequent request constructs a fresh instance
	replacement, err := p.GetOrCreate(context.Background(), "conv-1")
	require.NoError(t, err)
	assert.NotSame(t, orch, replacement)
	assert.Equal(t, int32(2), factory.constructions.Load())
}

func TestSweep_AccessRefreshesWindow(t *testing.T) {
	now := time.Now()
	var mu sync.Mutex
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}

	factory := &countingFactory{}
	p := testPool(t, factory, WithClock(clock))

	_, err := p.GetOrCreate(context.Background(), "conv-1")
	require.NoError(t, err)

	mu.Lock()
	now = now.Add(20 * time.Minute)
	mu.Unlock()
	_, err = p.GetOrCreate(context.Background(), "conv-1") // touch
	require.NoError(t, err)

	mu.Lock()
	now = now.Add(20 * time.Minute)
	mu.Unlock()
	p.Sweep()

	assert.Equal(t, 1, p.Len(), "a touched session is not idle-evicted")
	assert.Equal(t, int32(1), factory.constructions.Load())
}

func TestInvalidate_ForcesFreshConstruction(t *testing.T) {
	factory := &countingFactory{}
	p := testPool(t, factory)

	orig, err := p.GetOrCreate(context.Background(), "conv-1")
	require.NoError(t, err)

	p.Invalidate("conv-1")
	assert.Equal(t, orchestrator.StateStopped, orig.State())

	replacement, err := p.GetOrCreate(context.Background(), "conv-1")
	require.NoError(t, err)
	assert.NotSame(t, orig, replacement)
}

func TestHandle_EndToEnd(t *testing.T) {
	factory := &countingFactory{}
	p := testPool(t, factory)

	res, err := p.Handle(context.Background(), "conv-1", "gemini-2.5-flash", "hi")
	require.NoError(t, err)

	text, err := model.CollectText(context.Background(), res)
	require.NoError(t, err)
	assert.Equal(t, "hello: hi", text)
}

func TestHandle_RecoversFromEvictionRace(t *testing.T) {
	factory := &countingFactory{}
	p := testPool(t, factory)

	orch, err := p.GetOrCreate(context.Background(), "conv-1")
	require.NoError(t, err)

	// an eviction landing between the caller's lookup and its submit leaves
	// the caller holding a stopped instance
	orch.Stop()

	res, err := p.Handle(context.Background(), "conv-1", "gemini-2.5-flash", "hi")
	require.NoError(t, err, "a stopped session must be replaced, not surfaced to the caller")

	text, err := model.CollectText(context.Background(), res)
	require.NoError(t, err)
	assert.Equal(t, "hello: hi", text)
	assert.Equal(t, int32(2), factory.constructions.Load())
}

func TestHandle_NoRetryAfterPoolStop(t *testing.T) {
	factory := &countingFactory{}
	p := New(factory.new, model.SessionConfig{IdleWindow: time.Minute, HandleTimeout: time.Second})

	_, err := p.GetOrCreate(context.Background(), "conv-1")
	require.NoError(t, err)
	p.Stop()

	_, err = p.Handle(context.Background(), "conv-1", "m", "hi")
	require.Error(t, err)
	assert.Equal(t, errx.KindStopped, errx.KindOf(err))
	assert.Equal(t, int32(1), factory.constructions.Load(), "a stopped pool must not construct new sessions")
}

func TestStop_TearsDownSessions(t *testing.T) {
	factory := &countingFactory{}
	p := New(factory.new, model.SessionConfig{IdleWindow: time.Minute, SweepInterval: 0})

	orch, err := p.GetOrCreate(context.Background(), "conv-1")
	require.NoError(t, err)

	p.Stop()
	assert.Equal(t, 0, p.Len())

	_, err = orch.Handle(context.Background(), model.NewRequest("conv-1", "m", "hi", nil))
	require.Error(t, err)
	assert.Equal(t, errx.KindStopped, errx.KindOf(err))
}
