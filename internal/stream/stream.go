// Package stream folds a streamed backend response into one answer string
// while relaying reasoning fragments to an observer as they arrive.
package stream

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/seenimoa/finboard/internal/extract"
	"github.com/seenimoa/finboard/internal/llm"
)

// Accumulate drains chunks in arrival order. Thought fragments are passed to
// onReasoning immediately and verbatim; answer fragments are concatenated and
// returned once the channel closes. A chunk carrying Err aborts the read, as
// does ctx being done. onReasoning may be nil.
func Accumulate(ctx context.Context, chunks <-chan llm.StreamChunk, onReasoning func(string)) (string, error) {
	var answer strings.Builder
	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case chunk, ok := <-chunks:
			if !ok {
				return answer.String(), nil
			}
			if chunk.Err != nil {
				return "", chunk.Err
			}
			if chunk.Thought != "" && onReasoning != nil {
				onReasoning(chunk.Thought)
			}
			answer.WriteString(chunk.Content)
		}
	}
}

// Collect accumulates the stream and extracts the JSON value from the
// complete answer.
func Collect(ctx context.Context, chunks <-chan llm.StreamChunk, onReasoning func(string)) (json.RawMessage, error) {
	answer, err := Accumulate(ctx, chunks, onReasoning)
	if err != nil {
		return nil, err
	}
	return extract.Extract(answer)
}
