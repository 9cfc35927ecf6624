// Package pipeline sequences transcription, translation, and synthesis
// for each audio chunk and enforces the per-session ordering contract.
package pipeline

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/Aakashchoure4/SpeakFluent-Ai/audio"
	"github.com/Aakashchoure4/SpeakFluent-Ai/metrics"
)

// Result is one pipeline output, broadcast to every open session in the
// originating room. Immutable once produced.
type Result struct {
	UserID         int64   `json:"user_id"`
	Username       string  `json:"username"`
	OriginalText   string  `json:"original_text"`
	TranslatedText string  `json:"translated_text"`
	SourceLanguage string  `json:"source_language"`
	TargetLanguage string  `json:"target_language"`
	AudioURL       string  `json:"audio_url"`
	Confidence     float64 `json:"confidence"`
	// Degraded marks a result whose translation stage failed and echoed
	// the original text instead.
	Degraded bool `json:"degraded,omitempty"`

	CreatedAt time.Time `json:"-"`
	Sequence  uint64    `json:"-"`
}

// Job carries one decoded chunk plus its session context through the
// pipeline.
type Job struct {
	Sequence   uint64
	Segment    audio.Segment
	UserID     int64
	Username   string
	SourceLang string
	TargetLang string
}

// detectionThreshold is the confidence above which the transcriber's
// detected language overrides the session's configured source language.
const detectionThreshold = 0.5

// Config tunes the orchestrator.
type Config struct {
	// MinConfidence drops transcriptions below this score.
	MinConfidence float64
	// MaxConcurrentTranscriptions bounds in-flight transcription calls
	// across all sessions.
	MaxConcurrentTranscriptions int
}

// Orchestrator drives one chunk through the three adapter stages. Chunks
// from different sessions run fully concurrently; transcription capacity
// is bounded by a shared weighted limiter.
type Orchestrator struct {
	caps    *Capabilities
	sem     *semaphore.Weighted
	minConf float64
	logger  *zap.SugaredLogger
	metrics *metrics.Set
}

// NewOrchestrator creates an orchestrator over the given capabilities.
func NewOrchestrator(caps *Capabilities, cfg Config, logger *zap.SugaredLogger, m *metrics.Set) *Orchestrator {
	limit := cfg.MaxConcurrentTranscriptions
	if limit < 1 {
		limit = 1
	}
	return &Orchestrator{
		caps:    caps,
		sem:     semaphore.NewWeighted(int64(limit)),
		minConf: cfg.MinConfidence,
		logger:  logger,
		metrics: m,
	}
}

// Process runs one chunk through all stages. The boolean is false when
// the chunk was dropped: silence, low confidence, cancellation. Stage
// failures past transcription degrade the result instead of dropping it.
func (o *Orchestrator) Process(ctx context.Context, job Job) (Result, bool) {
	// Stage 1: transcription, bounded by the shared limiter.
	if err := o.sem.Acquire(ctx, 1); err != nil {
		o.metrics.ChunksDropped.WithLabelValues(metrics.DropCancelled).Inc()
		return Result{}, false
	}
	start := time.Now()
	tr, err := o.caps.Transcriber.Transcribe(ctx, job.Segment, job.SourceLang)
	o.sem.Release(1)
	o.metrics.StageDuration.WithLabelValues("transcribe").Observe(time.Since(start).Seconds())

	if err != nil {
		if ctx.Err() != nil {
			o.metrics.ChunksDropped.WithLabelValues(metrics.DropCancelled).Inc()
		} else {
			o.logger.Warnw("transcription failed", "error", err, "user", job.UserID, "seq", job.Sequence)
			o.metrics.ChunksDropped.WithLabelValues(metrics.DropTranscribeError).Inc()
		}
		return Result{}, false
	}
	if strings.TrimSpace(tr.Text) == "" || tr.Confidence < o.minConf {
		o.metrics.ChunksDropped.WithLabelValues(metrics.DropLowConfidence).Inc()
		return Result{}, false
	}

	src, tgt := job.SourceLang, job.TargetLang
	if tr.Confidence > detectionThreshold && supportedLang(tr.Language) && tr.Language != src {
		src = tr.Language
		tgt = oppositeLang(src)
	}

	// Stage 2: translation. Failure echoes the original text with a
	// degradation marker rather than dropping the chunk.
	start = time.Now()
	translated, err := o.caps.Translator.Translate(ctx, tr.Text, src, tgt)
	o.metrics.StageDuration.WithLabelValues("translate").Observe(time.Since(start).Seconds())
	degraded := false
	if err != nil {
		if ctx.Err() != nil {
			o.metrics.ChunksDropped.WithLabelValues(metrics.DropCancelled).Inc()
			return Result{}, false
		}
		o.logger.Warnw("translation failed, echoing original", "error", err, "user", job.UserID, "seq", job.Sequence)
		translated = tr.Text
		degraded = true
	}

	// Stage 3: synthesis. Failure yields a text-only result.
	audioURL := ""
	if !degraded {
		start = time.Now()
		audioURL, err = o.caps.Synthesizer.Synthesize(ctx, translated, tgt)
		o.metrics.StageDuration.WithLabelValues("synthesize").Observe(time.Since(start).Seconds())
		if err != nil {
			if ctx.Err() != nil {
				o.metrics.ChunksDropped.WithLabelValues(metrics.DropCancelled).Inc()
				return Result{}, false
			}
			o.logger.Warnw("synthesis failed, emitting text-only result", "error", err, "user", job.UserID, "seq", job.Sequence)
			audioURL = ""
		}
	}

	return Result{
		UserID:         job.UserID,
		Username:       job.Username,
		OriginalText:   tr.Text,
		TranslatedText: translated,
		SourceLanguage: src,
		TargetLanguage: tgt,
		AudioURL:       audioURL,
		Confidence:     tr.Confidence,
		Degraded:       degraded,
		CreatedAt:      time.Now().UTC(),
		Sequence:       job.Sequence,
	}, true
}

func supportedLang(lang string) bool {
	return lang == "hi" || lang == "en"
}

func oppositeLang(lang string) string {
	if lang == "hi" {
		return "en"
	}
	return "hi"
}
