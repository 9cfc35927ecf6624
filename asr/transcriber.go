// Package asr defines the speech-to-text capability boundary.
package asr

import (
	"context"

	"github.com/Aakashchoure4/SpeakFluent-Ai/audio"
)

// Transcription is the result of recognizing one audio segment.
type Transcription struct {
	// Text is the recognized text, empty when the segment carried no speech.
	Text string `json:"text"`
	// Language is the detected source language (ISO 639-1 code).
	Language string `json:"language"`
	// Confidence is the recognition confidence score (0.0 - 1.0).
	Confidence float64 `json:"confidence"`
}

// Transcriber converts decoded audio segments to text. Implementations
// wrap an external speech recognition engine; hints carry the speaker's
// configured source language, which engines may use or override through
// their own detection.
type Transcriber interface {
	Transcribe(ctx context.Context, segment audio.Segment, sourceLang string) (Transcription, error)
}
