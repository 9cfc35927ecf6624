// Package tts defines the voice synthesis capability boundary and a
// file-backed synthesizer that serves generated audio over HTTP.
package tts

import "context"

// Synthesizer converts translated text into playable audio and returns a
// reference (URL path) every room participant can resolve. An empty
// reference means no audio was produced.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, lang string) (string, error)
}

// Engine renders encoded audio bytes for text in a named voice. It is the
// boundary to the actual synthesis backend.
type Engine interface {
	Render(ctx context.Context, text, voice string) ([]byte, error)
}
