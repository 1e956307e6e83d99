// Package dispatch splits long replies into message-sized chunks and sends them in order.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// DefaultChunkSize is the Discord message length limit in characters.
const DefaultChunkSize = 2000

var ErrTransport = errors.New("chunk delivery failed")

type Sender interface {
	SendMessage(ctx context.Context, channelID, text string) error
}

type ChunkResult struct {
	Index int
	Err   error
	// Skipped marks a blank chunk that was never handed to the sender.
	Skipped bool
}

type Report struct {
	Chunks []ChunkResult
	// Total is the number of chunks the text was split into, sent or not.
	Total int
}

func (r Report) Sent() int {
	sent := 0
	for _, chunk := range r.Chunks {
		if chunk.Err == nil && !chunk.Skipped {
			sent++
		}
	}
	return sent
}

func (r Report) Err() error {
	var errs []error
	for _, chunk := range r.Chunks {
		if chunk.Err != nil {
			errs = append(errs, fmt.Errorf("%w: chunk %d: %w", ErrTransport, chunk.Index, chunk.Err))
		}
	}
	return errors.Join(errs...)
}

// Chunk cuts text into pieces of at most size characters. Concatenating the
// pieces gives back text.
func Chunk(text string, size int) []string {
	if size < 1 {
		size = DefaultChunkSize
	}
	if text == "" {
		return nil
	}
	runes := []rune(text)
	if len(runes) <= size {
		return []string{text}
	}
	chunks := make([]string, 0, (len(runes)+size-1)/size)
	for start := 0; start < len(runes); start += size {
		end := min(start+size, len(runes))
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}

// Deliver sends the chunks of text one after the other and stops at the first failure.
// Whitespace-only chunks are skipped since chat platforms reject empty messages.
func Deliver(ctx context.Context, sender Sender, channelID, text string, size int) Report {
	chunks := Chunk(text, size)
	report := Report{Total: len(chunks), Chunks: make([]ChunkResult, 0, len(chunks))}
	for index, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			report.Chunks = append(report.Chunks, ChunkResult{Index: index, Err: err})
			break
		}
		if strings.TrimSpace(chunk) == "" {
			report.Chunks = append(report.Chunks, ChunkResult{Index: index, Skipped: true})
			continue
		}
		err := sender.SendMessage(ctx, channelID, chunk)
		report.Chunks = append(report.Chunks, ChunkResult{Index: index, Err: err})
		if err != nil {
			break
		}
	}
	return report
}
