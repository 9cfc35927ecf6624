package tts

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
)

// StubEngine is an Engine producing a deterministic payload, for wiring
// the FileSynthesizer in development and tests.
type StubEngine struct {
	// Err, when set, is returned for every render call.
	Err error
}

// Render returns a marker payload naming the voice and text.
func (e *StubEngine) Render(ctx context.Context, text, voice string) ([]byte, error) {
	if e.Err != nil {
		return nil, e.Err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return []byte("stub-audio:" + voice + ":" + text), nil
}

// StubSynthesizer returns predictable references without touching disk.
type StubSynthesizer struct {
	// Err, when set, is returned for every call.
	Err error

	calls atomic.Int64
}

// Synthesize returns a counted reference like "/static/audio/stub-1.mp3".
func (s *StubSynthesizer) Synthesize(ctx context.Context, text, lang string) (string, error) {
	if s.Err != nil {
		return "", s.Err
	}
	if strings.TrimSpace(text) == "" {
		return "", nil
	}
	n := s.calls.Add(1)
	return fmt.Sprintf("/static/audio/stub-%d.mp3", n), nil
}

// Calls reports how many non-empty synthesis requests were made.
func (s *StubSynthesizer) Calls() int64 {
	return s.calls.Load()
}
