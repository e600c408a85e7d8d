package stream

import (
	"context"
	"strings"
	"time"

	"inquest/internal/models"
)

const DefaultChunkWords = 5

// Dispatcher converts one completed QueryResult into the chunk, sources and
// suggestions portion of the turn's event sequence. Pace of zero disables
// inter-chunk delays; pacing is presentation only.
type Dispatcher struct {
	ChunkWords int
	Pace       time.Duration
}

func NewDispatcher(chunkWords int, pace time.Duration) *Dispatcher {
	if chunkWords <= 0 {
		chunkWords = DefaultChunkWords
	}
	return &Dispatcher{ChunkWords: chunkWords, Pace: pace}
}

// StreamResult emits all chunks of the answer, then sources iff non-empty,
// then suggestions iff non-empty. It stops on the first emit failure or
// context cancellation; the caller owns the terminal done/error event.
func (d *Dispatcher) StreamResult(ctx context.Context, result *models.QueryResult, emit EmitFunc) error {
	chunks := SplitChunks(result.Answer, d.ChunkWords)
	for i, chunk := range chunks {
		if err := emit(Chunk(chunk)); err != nil {
			return err
		}
		if d.Pace > 0 && i < len(chunks)-1 {
			select {
			case <-time.After(d.Pace):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	if len(result.Sources) > 0 {
		if err := emit(Sources(result.Sources)); err != nil {
			return err
		}
	}
	if len(result.SuggestedQueries) > 0 {
		if err := emit(Suggestions(result.SuggestedQueries)); err != nil {
			return err
		}
	}
	return nil
}

// SplitChunks splits text into fixed-size word groups. Every chunk except
// the last carries a trailing space so concatenation reproduces the answer
// with single-space word separation.
func SplitChunks(text string, words int) []string {
	if words <= 0 {
		words = DefaultChunkWords
	}
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return nil
	}

	var chunks []string
	for i := 0; i < len(fields); i += words {
		end := i + words
		if end > len(fields) {
			end = len(fields)
		}
		chunk := strings.Join(fields[i:end], " ")
		if end < len(fields) {
			chunk += " "
		}
		chunks = append(chunks, chunk)
	}
	return chunks
}
