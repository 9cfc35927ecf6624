package tts

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Default voice per target language.
var defaultVoices = map[string]string{
	"en": "en-US-AriaNeural",
	"hi": "hi-IN-SwaraNeural",
}

// FileSynthesizer renders audio through an Engine, writes the result under
// a static directory, and returns the public URL path for the file.
type FileSynthesizer struct {
	engine    Engine
	dir       string
	urlPrefix string
	voices    map[string]string
}

// NewFileSynthesizer creates a synthesizer writing files into dir and
// returning references under urlPrefix. The directory is created if
// missing.
func NewFileSynthesizer(engine Engine, dir, urlPrefix string) (*FileSynthesizer, error) {
	if engine == nil {
		return nil, fmt.Errorf("synthesis engine required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create audio dir: %w", err)
	}
	return &FileSynthesizer{
		engine:    engine,
		dir:       dir,
		urlPrefix: urlPrefix,
		voices:    defaultVoices,
	}, nil
}

// Synthesize renders text in the voice mapped to lang and stores the
// audio as an mp3 file. Empty text yields an empty reference.
func (s *FileSynthesizer) Synthesize(ctx context.Context, text, lang string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", nil
	}

	voice, ok := s.voices[lang]
	if !ok {
		voice = s.voices["en"]
	}

	data, err := s.engine.Render(ctx, text, voice)
	if err != nil {
		return "", fmt.Errorf("render speech: %w", err)
	}

	name := strings.ReplaceAll(uuid.NewString(), "-", "") + ".mp3"
	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("write audio file: %w", err)
	}
	return path.Join(s.urlPrefix, name), nil
}
