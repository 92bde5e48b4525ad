package model

import (
	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"
)

// Request is one immutable orchestrator invocation. A newer Request on the
// same conversation supersedes it; the Request itself is never mutated.
type Request struct {
	ID             string
	ConversationID string
	Model          string
	Input          string
	History        []*schema.Message
}

// NewRequest builds a Request with a fresh id for log correlation.
func NewRequest(conversationID, modelName, input string, history []*schema.Message) *Request {
	return &Request{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Model:          modelName,
		Input:          input,
		History:        history,
	}
}
