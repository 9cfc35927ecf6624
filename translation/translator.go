// Package translation defines the text translation capability boundary.
package translation

import "context"

// LanguagePair represents a supported source-target language combination.
type LanguagePair struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// Translator converts text between the supported languages.
type Translator interface {
	// Translate converts text from sourceLang to targetLang.
	Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error)

	// SupportedLanguages returns available language pairs.
	SupportedLanguages() []LanguagePair
}
