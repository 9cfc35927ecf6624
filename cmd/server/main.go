// Package main contains the SpeakFluent server entry point.
package main

import (
	"bufio"
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Aakashchoure4/SpeakFluent-Ai/asr"
	"github.com/Aakashchoure4/SpeakFluent-Ai/audio"
	"github.com/Aakashchoure4/SpeakFluent-Ai/auth"
	"github.com/Aakashchoure4/SpeakFluent-Ai/config"
	"github.com/Aakashchoure4/SpeakFluent-Ai/history"
	"github.com/Aakashchoure4/SpeakFluent-Ai/hub"
	"github.com/Aakashchoure4/SpeakFluent-Ai/logging"
	"github.com/Aakashchoure4/SpeakFluent-Ai/metrics"
	"github.com/Aakashchoure4/SpeakFluent-Ai/pipeline"
	"github.com/Aakashchoure4/SpeakFluent-Ai/rooms"
	"github.com/Aakashchoure4/SpeakFluent-Ai/translation"
	"github.com/Aakashchoure4/SpeakFluent-Ai/tts"
	"github.com/Aakashchoure4/SpeakFluent-Ai/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := logging.New(cfg.LogLevel)
	defer func() { _ = logger.Sync() }()

	m := metrics.New()

	directory, logStore := buildStores(cfg, logger)

	caps := pipeline.NewCapabilities(
		pipeline.WithTranscriber(asr.NewStubTranscriber(nil)),
		pipeline.WithTranslator(translation.NewStubTranslator(nil)),
		pipeline.WithSynthesizer(buildSynthesizer(cfg, logger)),
	)
	orch := pipeline.NewOrchestrator(caps, pipeline.Config{
		MinConfidence:               cfg.MinConfidence,
		MaxConcurrentTranscriptions: cfg.MaxConcurrentTranscriptions,
	}, logger, m)

	sessionHub := hub.New(cfg.OutboundQueueSize, logger, m)
	validator := auth.NewJWTValidator(cfg.JWTSecret)
	decoder := audio.Decoder{MinBytes: cfg.MinChunkBytes}

	wsHandler := ws.NewHandler(sessionHub, validator, directory, orch, decoder, logStore, ws.Config{
		IdleTimeout:    cfg.IdleTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		ChunkQueueSize: cfg.ChunkQueueSize,
	}, logger, m)

	api := &roomAPI{
		directory: directory,
		hub:       sessionHub,
		log:       logStore,
		validator: validator,
		capacity:  cfg.DefaultRoomCapacity,
		logger:    logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", healthHandler(sessionHub))
	mux.Handle("GET /metrics", m.Handler())
	mux.Handle("GET /ws/{room_code}", wsHandler)
	mux.Handle("GET "+cfg.AudioURLPrefix+"/",
		http.StripPrefix(cfg.AudioURLPrefix+"/", http.FileServer(http.Dir(cfg.AudioDir))))
	api.register(mux)

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           loggingMiddleware(logger, mux),
		ReadHeaderTimeout: 5 * time.Second,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Infow("server listening", "addr", cfg.ListenAddr)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalw("server failed", "error", err)
		}
	}()

	<-shutdown
	logger.Infow("shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Errorw("graceful shutdown failed", "error", err)
		if closeErr := server.Close(); closeErr != nil {
			logger.Errorw("forced close failed", "error", closeErr)
		}
	}
}

// buildStores selects redis-backed stores when a redis address is
// configured and in-memory ones otherwise.
func buildStores(cfg *config.Config, logger *zap.SugaredLogger) (rooms.Directory, history.Store) {
	if cfg.RedisAddr == "" {
		logger.Infow("using in-memory stores")
		return rooms.NewMemoryDirectory(), history.NewMemoryStore(cfg.HistoryLimit)
	}

	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Fatalw("redis unreachable", "error", err, "addr", cfg.RedisAddr)
	}
	logger.Infow("using redis stores", "addr", cfg.RedisAddr)
	return rooms.NewRedisDirectory(client), history.NewRedisStore(client, cfg.HistoryLimit)
}

// buildSynthesizer wires the file-backed synthesizer with the stub
// engine. A real synthesis backend plugs in through tts.Engine.
func buildSynthesizer(cfg *config.Config, logger *zap.SugaredLogger) tts.Synthesizer {
	synth, err := tts.NewFileSynthesizer(&tts.StubEngine{}, cfg.AudioDir, cfg.AudioURLPrefix)
	if err != nil {
		logger.Fatalw("failed to prepare audio directory", "error", err, "dir", cfg.AudioDir)
	}
	return synth
}

func healthHandler(sessionHub *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomCount, sessionCount := sessionHub.Counts()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		writeJSON(w, map[string]any{
			"status":             "healthy",
			"active_rooms":       roomCount,
			"active_connections": sessionCount,
		})
	}
}

func loggingMiddleware(logger *zap.SugaredLogger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(lrw, r)
		logger.Infow("request",
			"method", r.Method, "path", r.URL.Path, "status", lrw.statusCode, "duration", time.Since(start))
	})
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(statusCode int) {
	lrw.statusCode = statusCode
	lrw.ResponseWriter.WriteHeader(statusCode)
}

// Hijack lets the websocket upgrader take over the connection through
// the logging wrapper.
func (lrw *loggingResponseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := lrw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	return hj.Hijack()
}
