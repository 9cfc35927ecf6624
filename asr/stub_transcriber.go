package asr

import (
	"context"
	"sync"
	"time"

	"github.com/Aakashchoure4/SpeakFluent-Ai/audio"
)

// StubTranscriberConfig configures the stub transcriber behavior.
type StubTranscriberConfig struct {
	// ProcessingDelay simulates recognition time per segment.
	ProcessingDelay time.Duration
	// DefaultLanguage is reported when a scripted result carries none.
	DefaultLanguage string
	// Script holds predetermined results consumed in order. When the
	// script is exhausted the stub echoes a generic result.
	Script []Transcription
	// Err, when set, is returned for every call.
	Err error
}

// DefaultStubTranscriberConfig returns sensible defaults for testing.
func DefaultStubTranscriberConfig() *StubTranscriberConfig {
	return &StubTranscriberConfig{
		DefaultLanguage: "hi",
		Script: []Transcription{
			{Text: "नमस्ते", Language: "hi", Confidence: 0.9},
			{Text: "आप कैसे हैं", Language: "hi", Confidence: 0.88},
			{Text: "hello everyone", Language: "en", Confidence: 0.92},
		},
	}
}

// StubTranscriber is a deterministic Transcriber for development and tests.
type StubTranscriber struct {
	config *StubTranscriberConfig

	mu   sync.Mutex
	next int
}

// NewStubTranscriber creates a stub transcriber with the given config.
func NewStubTranscriber(config *StubTranscriberConfig) *StubTranscriber {
	if config == nil {
		config = DefaultStubTranscriberConfig()
	}
	return &StubTranscriber{config: config}
}

// Transcribe returns the next scripted result, honouring context
// cancellation during the simulated processing delay.
func (s *StubTranscriber) Transcribe(ctx context.Context, segment audio.Segment, sourceLang string) (Transcription, error) {
	if s.config.Err != nil {
		return Transcription{}, s.config.Err
	}

	if s.config.ProcessingDelay > 0 {
		select {
		case <-time.After(s.config.ProcessingDelay):
		case <-ctx.Done():
			return Transcription{}, ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.next < len(s.config.Script) {
		result := s.config.Script[s.next]
		s.next++
		if result.Language == "" {
			result.Language = s.config.DefaultLanguage
		}
		return result, nil
	}

	lang := sourceLang
	if lang == "" {
		lang = s.config.DefaultLanguage
	}
	return Transcription{Text: "segment transcribed", Language: lang, Confidence: 0.8}, nil
}
