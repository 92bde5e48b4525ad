package model

import (
	"context"
	"io"
	"strings"

	"github.com/cloudwego/eino/schema"
)

// StreamResult is an in-progress, incrementally delivered answer tied to the
// input text that produced it. A StreamResult is only deliverable while its
// Input equals the conversation's currently active request input; results
// produced for a superseded request are discarded, never delivered.
type StreamResult struct {
	// Input is the originating user input text, used for result correlation.
	Input string
	// Stream yields answer chunks until io.EOF.
	Stream *schema.StreamReader[*schema.Message]
}

// NewTextStream wraps pre-rendered text chunks as a StreamResult. Used by
// lightweight producers (greetings) and tests.
func NewTextStream(input string, chunks ...string) *StreamResult {
	msgs := make([]*schema.Message, 0, len(chunks))
	for _, c := range chunks {
		msgs = append(msgs, schema.AssistantMessage(c, nil))
	}
	return &StreamResult{
		Input:  input,
		Stream: schema.StreamReaderFromArray(msgs),
	}
}

// CollectText drains the stream and concatenates the chunk contents. The
// stream is closed before returning. Cancelling ctx abandons the drain.
func CollectText(ctx context.Context, res *StreamResult) (string, error) {
	defer res.Stream.Close()

	var b strings.Builder
	for {
		select {
		case <-ctx.Done():
			return b.String(), ctx.Err()
		default:
		}

		chunk, err := res.Stream.Recv()
		if err == io.EOF {
			return b.String(), nil
		}
		if err != nil {
			return b.String(), err
		}
		if chunk != nil {
			b.WriteString(chunk.Content)
		}
	}
}
