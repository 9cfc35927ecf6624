package pipeline

import (
	"github.com/Aakashchoure4/SpeakFluent-Ai/asr"
	"github.com/Aakashchoure4/SpeakFluent-Ai/translation"
	"github.com/Aakashchoure4/SpeakFluent-Ai/tts"
)

// Capabilities holds the external adapter implementations the pipeline
// drives. It enables dependency injection for both production and test
// environments.
type Capabilities struct {
	Transcriber asr.Transcriber
	Translator  translation.Translator
	Synthesizer tts.Synthesizer
}

// CapabilitiesOption configures a Capabilities during construction.
type CapabilitiesOption func(*Capabilities)

// WithTranscriber sets the speech recognition implementation.
func WithTranscriber(t asr.Transcriber) CapabilitiesOption {
	return func(c *Capabilities) { c.Transcriber = t }
}

// WithTranslator sets the translation implementation.
func WithTranslator(t translation.Translator) CapabilitiesOption {
	return func(c *Capabilities) { c.Translator = t }
}

// WithSynthesizer sets the voice synthesis implementation.
func WithSynthesizer(s tts.Synthesizer) CapabilitiesOption {
	return func(c *Capabilities) { c.Synthesizer = s }
}

// NewCapabilities creates a container with the given options.
func NewCapabilities(opts ...CapabilitiesOption) *Capabilities {
	c := &Capabilities{}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewStubCapabilities creates a container wired with stub adapters for
// testing without external engines.
func NewStubCapabilities() *Capabilities {
	return &Capabilities{
		Transcriber: asr.NewStubTranscriber(nil),
		Translator:  translation.NewStubTranslator(nil),
		Synthesizer: &tts.StubSynthesizer{},
	}
}
