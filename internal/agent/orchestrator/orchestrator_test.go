package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waellejmi/qwery-core-sub001/internal/agent/model"
	"github.com/waellejmi/qwery-core-sub001/internal/agent/strategy"
	errx "github.com/waellejmi/qwery-core-sub001/internal/core/error"
)

type fixedClassifier struct {
	byInput map[string]model.Classification
}

func (c *fixedClassifier) Classify(ctx context.Context, text string) (model.Classification, error) {
	if cls, ok := c.byInput[text]; ok {
		return cls, nil
	}
	return model.DefaultClassification(), nil
}

// echoStrategy answers with a fixed prefix, optionally blocking until released.
type echoStrategy struct {
	name    string
	prefix  string
	chunks  []string      // overrides the prefix+input payload when set
	err     error
	started chan string   // receives input when Execute begins, if set
	release chan struct{} // Execute blocks on this until closed, if set
}

func (s *echoStrategy) Name() string { return s.name }

func (s *echoStrategy) Execute(ctx context.Context, req *model.Request, cls model.Classification) (*model.StreamResult, error) {
	if s.started != nil {
		s.started <- req.Input
	}
	if s.release != nil {
		select {
		case <-s.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	if len(s.chunks) > 0 {
		return model.NewTextStream(req.Input, s.chunks...), nil
	}
	return model.NewTextStream(req.Input, s.prefix, req.Input), nil
}

type memoryRepo struct {
	mu       sync.Mutex
	messages map[string][]*schema.Message
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{messages: make(map[string][]*schema.Message)}
}

func (r *memoryRepo) AddMessage(ctx context.Context, id string, msg *schema.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages[id] = append(r.messages[id], msg)
	return nil
}

func (r *memoryRepo) LoadHistory(ctx context.Context, id string) (*model.ConversationHistory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return &model.ConversationHistory{ConversationID: id, Messages: append([]*schema.Message(nil), r.messages[id]...)}, nil
}

func (r *memoryRepo) ClearHistory(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.messages, id)
	return nil
}

func (r *memoryRepo) GetMessageCount(ctx context.Context, id string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.messages[id]), nil
}

func defaultSet() strategy.Set {
	return strategy.Set{
		Greeting:      &echoStrategy{name: "greeting", prefix: "hello: "},
		Summarize:     &echoStrategy{name: "summarize", prefix: "summary: "},
		DataRetrieval: &echoStrategy{name: "data_retrieval", prefix: "rows: "},
	}
}

func newTestOrchestrator(t *testing.T, set strategy.Set, repo model.ConversationRepository, cfg Config) *Orchestrator {
	t.Helper()
	classifier := &fixedClassifier{byInput: map[string]model.Classification{
		"hi":                      {Intent: model.IntentGreeting, Complexity: model.ComplexitySimple},
		"show me sales by region": {Intent: model.IntentReadData, Complexity: model.ComplexityComplex, NeedsSQL: true},
	}}
	o, err := New(context.Background(), "conv-1", classifier, set, repo, cfg)
	require.NoError(t, err)
	t.Cleanup(o.Stop)
	return o
}

func TestHandle_GreetingScenario(t *testing.T) {
	repo := newMemoryRepo()
	o := newTestOrchestrator(t, defaultSet(), repo, Config{HandleTimeout: time.Second})

	req := model.NewRequest("conv-1", "gemini-2.5-flash", "hi", nil)
	res, err := o.Handle(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, "hi", res.Input)

	text, err := model.CollectText(context.Background(), res)
	require.NoError(t, err)
	assert.Equal(t, "hello: hi", text)

	// After the stream is drained the machine returns to idle and the
	// exchange is persisted.
	assert.Eventually(t, func() bool { return o.State() == StateIdle }, time.Second, 5*time.Millisecond)
	n, _ := repo.GetMessageCount(context.Background(), "conv-1")
	assert.Equal(t, 2, n)
}

func TestHandle_RoutesReadDataToRetrieval(t *testing.T) {
	o := newTestOrchestrator(t, defaultSet(), nil, Config{HandleTimeout: time.Second})

	res, err := o.Handle(context.Background(), model.NewRequest("conv-1", "m", "show me sales by region", nil))
	require.NoError(t, err)

	text, err := model.CollectText(context.Background(), res)
	require.NoError(t, err)
	assert.Equal(t, "rows: show me sales by region", text)
}

func TestHandle_PreemptionInvariant(t *testing.T) {
	set := defaultSet()
	blocking := &echoStrategy{
		name:    "summarize",
		prefix:  "answer: ",
		started: make(chan string, 2),
		release: make(chan struct{}),
	}
	set.Summarize = blocking
	o := newTestOrchestrator(t, set, nil, Config{HandleTimeout: 2 * time.Second})

	type handleOut struct {
		res *model.StreamResult
		err error
	}
	outA := make(chan handleOut, 1)
	go func() {
		res, err := o.Handle(context.Background(), model.NewRequest("conv-1", "m", "what is X", nil))
		outA <- handleOut{res, err}
	}()

	// wait until A's strategy is in flight, then submit B
	require.Equal(t, "what is X", <-blocking.started)

	outB := make(chan handleOut, 1)
	go func() {
		res, err := o.Handle(context.Background(), model.NewRequest("conv-1", "m", "what is Y", nil))
		outB <- handleOut{res, err}
	}()
	require.Equal(t, "what is Y", <-blocking.started)
	close(blocking.release)

	a := <-outA
	require.Error(t, a.err, "the caller awaiting X must never receive a result once Y is active")
	assert.Equal(t, errx.KindPreempted, errx.KindOf(a.err))
	assert.Nil(t, a.res)

	b := <-outB
	require.NoError(t, b.err)
	require.Equal(t, "what is Y", b.res.Input)
	text, err := model.CollectText(context.Background(), b.res)
	require.NoError(t, err)
	assert.Equal(t, "answer: what is Y", text)
}

func TestHandle_StrategyFailureRecovers(t *testing.T) {
	set := defaultSet()
	failing := &echoStrategy{name: "data_retrieval", err: errors.New("warehouse unreachable")}
	set.DataRetrieval = failing
	o := newTestOrchestrator(t, set, nil, Config{HandleTimeout: time.Second})

	_, err := o.Handle(context.Background(), model.NewRequest("conv-1", "m", "show me sales by region", nil))
	require.Error(t, err)

	assert.Eventually(t, func() bool { return o.State() == StateIdle }, time.Second, 5*time.Millisecond)

	// the conversation accepts the next request normally
	res, err := o.Handle(context.Background(), model.NewRequest("conv-1", "m", "hi", nil))
	require.NoError(t, err)
	text, err := model.CollectText(context.Background(), res)
	require.NoError(t, err)
	assert.Equal(t, "hello: hi", text)
}

func TestHandle_GlobalCeilingDiagnostics(t *testing.T) {
	set := defaultSet()
	set.Summarize = &echoStrategy{name: "summarize", release: make(chan struct{})} // never released
	o := newTestOrchestrator(t, set, nil, Config{HandleTimeout: 50 * time.Millisecond})

	_, err := o.Handle(context.Background(), model.NewRequest("conv-1", "m", "slow question", nil))
	require.Error(t, err)
	assert.Equal(t, errx.KindTimeout, errx.KindOf(err))

	var timeout *errx.TimeoutError
	require.ErrorAs(t, err, &timeout)
	assert.Equal(t, StateExecuting.String(), timeout.LastState)
	assert.NotZero(t, timeout.Transitions)
}

func TestHandle_CallerTimeoutReleasesLateResult(t *testing.T) {
	// a result large enough that the stream copier cannot finish on its own
	chunks := make([]string, 32)
	for i := range chunks {
		chunks[i] = "chunk "
	}
	set := defaultSet()
	slow := &echoStrategy{name: "summarize", chunks: chunks, release: make(chan struct{})}
	set.Summarize = slow
	o := newTestOrchestrator(t, set, nil, Config{HandleTimeout: 50 * time.Millisecond})

	_, err := o.Handle(context.Background(), model.NewRequest("conv-1", "m", "slow question", nil))
	require.Error(t, err)
	assert.Equal(t, errx.KindTimeout, errx.KindOf(err))

	// The strategy completes after the caller gave up. The unclaimed result
	// must be released so the machine finishes the turn instead of parking
	// in streaming on a stream nobody drains.
	close(slow.release)
	assert.Eventually(t, func() bool { return o.State() == StateIdle }, time.Second, 5*time.Millisecond)

	// and the conversation accepts the next request normally
	res, err := o.Handle(context.Background(), model.NewRequest("conv-1", "m", "hi", nil))
	require.NoError(t, err)
	text, err := model.CollectText(context.Background(), res)
	require.NoError(t, err)
	assert.Equal(t, "hello: hi", text)
}

func TestHandle_AfterStop(t *testing.T) {
	o := newTestOrchestrator(t, defaultSet(), nil, Config{HandleTimeout: time.Second})
	o.Stop()

	_, err := o.Handle(context.Background(), model.NewRequest("conv-1", "m", "hi", nil))
	require.Error(t, err)
	assert.Equal(t, errx.KindStopped, errx.KindOf(err))
	assert.Equal(t, StateStopped, o.State())
}

func TestNew_LoadsPriorHistory(t *testing.T) {
	repo := newMemoryRepo()
	require.NoError(t, repo.AddMessage(context.Background(), "conv-1", schema.UserMessage("earlier question")))
	require.NoError(t, repo.AddMessage(context.Background(), "conv-1", schema.AssistantMessage("earlier answer", nil)))

	set := defaultSet()
	seen := &echoStrategy{name: "summarize", prefix: "ok: ", started: make(chan string, 1)}
	set.Summarize = seen

	classifier := &fixedClassifier{byInput: map[string]model.Classification{}}
	o, err := New(context.Background(), "conv-1", classifier, set, repo, Config{HandleTimeout: time.Second})
	require.NoError(t, err)
	defer o.Stop()

	res, err := o.Handle(context.Background(), model.NewRequest("conv-1", "m", "and now?", nil))
	require.NoError(t, err)
	_, _ = model.CollectText(context.Background(), res)

	// history passed to the strategy includes hydrated prior messages plus
	// the current input
	<-seen.started
	n, _ := repo.GetMessageCount(context.Background(), "conv-1")
	assert.GreaterOrEqual(t, n, 3)
}
