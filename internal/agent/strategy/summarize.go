package strategy

import (
	"context"

	errx "github.com/waellejmi/qwery-core-sub001/internal/core/error"

	"github.com/waellejmi/qwery-core-sub001/internal/agent/model"
)

// Summarize answers from classification plus message history in a single
// invocation. It is also the safe default for intents outside the routed set.
type Summarize struct {
	responder model.Responder
}

func NewSummarize(responder model.Responder) *Summarize {
	return &Summarize{responder: responder}
}

func (s *Summarize) Name() string { return "summarize" }

func (s *Summarize) Execute(ctx context.Context, req *model.Request, cls model.Classification) (*model.StreamResult, error) {
	res, err := s.responder.Summarize(ctx, req, cls)
	if err != nil {
		return nil, errx.RequestFatal(err, "summarize generation failed")
	}
	return res, nil
}
