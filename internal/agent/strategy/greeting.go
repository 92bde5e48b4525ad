package strategy

import (
	"context"

	errx "github.com/waellejmi/qwery-core-sub001/internal/core/error"

	"github.com/waellejmi/qwery-core-sub001/internal/agent/model"
)

// Greeting answers greetings with a single fast invocation. No retry: failure
// is terminal for the request.
type Greeting struct {
	responder model.Responder
}

func NewGreeting(responder model.Responder) *Greeting {
	return &Greeting{responder: responder}
}

func (g *Greeting) Name() string { return "greeting" }

func (g *Greeting) Execute(ctx context.Context, req *model.Request, _ model.Classification) (*model.StreamResult, error) {
	res, err := g.responder.Greet(ctx, req)
	if err != nil {
		return nil, errx.RequestFatal(err, "greeting generation failed")
	}
	return res, nil
}
