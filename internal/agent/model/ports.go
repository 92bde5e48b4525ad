package model

import "context"

// The orchestrator core treats everything it calls as an opaque collaborator
// behind one of these interfaces. Concrete adapters live in internal/agent/llm
// and internal/agent/repo.

// RemoteClassifier performs intent classification for one input text.
// Implementations may be slow and may fail; retry and caching policy is the
// caller's concern.
type RemoteClassifier interface {
	Classify(ctx context.Context, text string) (Classification, error)
}

// DataRetriever runs the data-retrieval step: schema lookup plus query/answer
// generation against the conversation's connected data sources.
type DataRetriever interface {
	Retrieve(ctx context.Context, req *Request, cls Classification) (*StreamResult, error)
}

// ContextEnricher refines background knowledge about a conversation's data
// (e.g. its business vocabulary). Best effort: failures are logged by the
// caller and never affect the request.
type ContextEnricher interface {
	Enrich(ctx context.Context, req *Request) error
}

// Responder produces the non-retrieval answers.
type Responder interface {
	// Greet produces a fast greeting reply.
	Greet(ctx context.Context, req *Request) (*StreamResult, error)
	// Summarize answers from classification plus message history alone.
	Summarize(ctx context.Context, req *Request, cls Classification) (*StreamResult, error)
}

// SchemaProvider describes the structure of a conversation's connected data
// sources for prompt construction.
type SchemaProvider interface {
	DescribeSchema(ctx context.Context, conversationID string) (string, error)
}

// VocabularyStore persists the business vocabulary the enricher refines.
type VocabularyStore interface {
	PutTerms(ctx context.Context, conversationID string, terms map[string]string) error
	GetTerms(ctx context.Context, conversationID string) (map[string]string, error)
}
