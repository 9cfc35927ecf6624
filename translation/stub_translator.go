package translation

import (
	"context"
	"fmt"
	"strings"
)

// StubTranslatorConfig configures the stub translator behavior.
type StubTranslatorConfig struct {
	// Lexicon maps known source phrases to their translations, keyed by
	// "source->target" pair then lowercased phrase.
	Lexicon map[string]map[string]string
	// Err, when set, is returned for every call.
	Err error
}

// DefaultStubTranslatorConfig returns a small bilingual lexicon covering
// the phrases used across the test suite.
func DefaultStubTranslatorConfig() *StubTranslatorConfig {
	return &StubTranslatorConfig{
		Lexicon: map[string]map[string]string{
			"hi->en": {
				"नमस्ते":      "Hello",
				"धन्यवाद":     "Thank you",
				"आप कैसे हैं": "How are you",
			},
			"en->hi": {
				"hello":     "नमस्ते",
				"thank you": "धन्यवाद",
			},
		},
	}
}

// StubTranslator is a deterministic Translator for development and tests.
// Phrases outside the lexicon are echoed with a language tag so output
// remains traceable to its input.
type StubTranslator struct {
	config *StubTranslatorConfig
}

// NewStubTranslator creates a stub translator with the given config.
func NewStubTranslator(config *StubTranslatorConfig) *StubTranslator {
	if config == nil {
		config = DefaultStubTranslatorConfig()
	}
	return &StubTranslator{config: config}
}

// Translate looks the text up in the lexicon for the requested pair.
func (s *StubTranslator) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	if s.config.Err != nil {
		return "", s.config.Err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	pair := sourceLang + "->" + targetLang
	if phrases, ok := s.config.Lexicon[pair]; ok {
		if translated, ok := phrases[strings.ToLower(strings.TrimSpace(text))]; ok {
			return translated, nil
		}
		if translated, ok := phrases[strings.TrimSpace(text)]; ok {
			return translated, nil
		}
	}
	return fmt.Sprintf("[%s] %s", targetLang, text), nil
}

// SupportedLanguages reports the bilingual pairs the stub handles.
func (s *StubTranslator) SupportedLanguages() []LanguagePair {
	return []LanguagePair{
		{Source: "hi", Target: "en"},
		{Source: "en", Target: "hi"},
	}
}
