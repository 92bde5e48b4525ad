package strategy

import (
	"context"
	"io"
	"time"

	"github.com/cloudwego/eino/schema"

	errx "github.com/waellejmi/qwery-core-sub001/internal/core/error"
	logx "github.com/waellejmi/qwery-core-sub001/pkg/logger"

	"github.com/waellejmi/qwery-core-sub001/internal/agent/model"
	"github.com/waellejmi/qwery-core-sub001/internal/agent/retry"
)

// DataRetrieval runs two concurrent branches: the retried, deadline-bounded
// retrieval call whose output becomes the answer, and a fire-and-forget
// context enrichment task that must never block, delay, or fail the primary.
type DataRetrieval struct {
	retriever model.DataRetriever
	enricher  model.ContextEnricher
	policy    retry.Policy
	timeout   time.Duration
}

func NewDataRetrieval(retriever model.DataRetriever, enricher model.ContextEnricher, cfg model.RetrievalConfig) *DataRetrieval {
	return &DataRetrieval{
		retriever: retriever,
		enricher:  enricher,
		policy: retry.Policy{
			MaxAttempts: cfg.MaxAttempts,
			BaseDelay:   cfg.BackoffBase,
		},
		timeout: cfg.Timeout,
	}
}

func (d *DataRetrieval) Name() string { return "data_retrieval" }

func (d *DataRetrieval) Execute(ctx context.Context, req *model.Request, cls model.Classification) (*model.StreamResult, error) {
	if d.enricher != nil {
		go d.enrich(ctx, req)
	}

	runCtx := ctx
	cancel := context.CancelFunc(func() {})
	if d.timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, d.timeout)
	}

	res, err := retry.Do(runCtx, d.policy, "retrieve_data", func(ctx context.Context) (*model.StreamResult, error) {
		return d.retriever.Retrieve(ctx, req, cls)
	})
	if err != nil {
		cancel()
		// No silent fallback: retrieval failure surfaces to the caller.
		if runCtx.Err() != nil && ctx.Err() == nil {
			return nil, errx.New(err, errx.KindTimeout, "data retrieval deadline exceeded")
		}
		return nil, errx.RequestFatal(err, "data retrieval failed")
	}
	// The deadline context stays alive until the stream is fully consumed;
	// cancelling on return would cut the model off mid-stream.
	res.Stream = releaseOnDrain(res.Stream, cancel)
	return res, nil
}

// releaseOnDrain re-streams src and calls release once the stream ends or the
// consumer closes it.
func releaseOnDrain(src *schema.StreamReader[*schema.Message], release context.CancelFunc) *schema.StreamReader[*schema.Message] {
	sr, sw := schema.Pipe[*schema.Message](8)
	go func() {
		defer release()
		defer src.Close()
		defer sw.Close()
		for {
			chunk, err := src.Recv()
			if err == io.EOF {
				return
			}
			if err != nil {
				sw.Send(nil, err)
				return
			}
			if closed := sw.Send(chunk, nil); closed {
				return
			}
		}
	}()
	return sr
}

// enrich runs the secondary branch. Its completion is never awaited and its
// failure is swallowed after logging.
func (d *DataRetrieval) enrich(ctx context.Context, req *model.Request) {
	defer func() {
		if r := recover(); r != nil {
			logx.Error().
				Str("conversation_id", req.ConversationID).
				Msgf("context enrichment panicked: %v", r)
		}
	}()

	if err := d.enricher.Enrich(ctx, req); err != nil {
		logx.Warn().
			Str("conversation_id", req.ConversationID).
			Str("request_id", req.ID).
			Err(err).
			Msg("context enrichment failed")
	}
}
