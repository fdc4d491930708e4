package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	openai "github.com/sashabaranov/go-openai"

	"github.com/dgallion1/readaloud/internal/api"
	"github.com/dgallion1/readaloud/internal/config"
	"github.com/dgallion1/readaloud/internal/extract"
	"github.com/dgallion1/readaloud/internal/ocr/tesseract"
	"github.com/dgallion1/readaloud/internal/reader"
	"github.com/dgallion1/readaloud/internal/speech"
	"github.com/dgallion1/readaloud/internal/stats"
)

func main() {
	// A missing .env is fine; the environment wins over the file.
	envErr := godotenv.Load()

	cfg := config.Load()
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	if envErr != nil && !errors.Is(envErr, os.ErrNotExist) {
		log.Warn("could not read .env", "error", envErr)
	}

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Extraction strategies.
	extractStats := stats.NewSet(time.Hour)
	dispatcher := &extract.Dispatcher{
		PDF: &extract.PDFExtractor{FallbackPdftotext: cfg.PDFFallbackPdftotext},
		Image: &extract.ImageExtractor{
			Engine:   tesseract.NewEngine(cfg.OCRLanguage, cfg.OCRPageSegMode),
			Language: cfg.OCRLanguage,
			Log:      log,
		},
		Text:  extract.TextExtractor{},
		Stats: extractStats,
	}

	// Speech output.
	var audio *speech.AudioStore
	var sink speech.Sink
	switch cfg.SpeechSink {
	case config.SinkCommand:
		cmd, err := speech.NewCommandSink(cfg.SpeechCommand)
		if err != nil {
			log.Error("speech command unavailable", "error", err)
			os.Exit(1)
		}
		sink = cmd
	case config.SinkOpenAI:
		audio = speech.NewAudioStore(cfg.AudioTTL)
		sink = speech.NewOpenAISink(openai.NewClient(cfg.OpenAIAPIKey), cfg.OpenAITTSModel, cfg.OpenAITTSVoice, audio)
	default:
		sink = &speech.LogSink{Log: log}
	}

	queue := speech.NewQueue(sink, log, speech.QueueConfig{
		Size:         cfg.SpeechQueueSize,
		Policy:       speech.Policy(cfg.SpeechPolicy),
		SegmentChars: cfg.SpeechSegmentChars,
	})
	queue.Start(ctx)

	// Sessions.
	sessions := reader.NewStore(cfg.SessionTTL, dispatcher, queue, log)
	if audio != nil {
		sessions.OnEvict = audio.DeleteSession
		go func() {
			ticker := time.NewTicker(5 * time.Minute)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					audio.Cleanup()
				}
			}
		}()
	}
	go sessions.Run(ctx, 5*time.Minute)

	// Initialize HTTP server.
	srv := api.NewServer(sessions, queue, audio, extractStats, log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)

		queue.Stop()
		cancel()
	}()

	log.Info("starting readaloud",
		"port", cfg.Port,
		"speech_sink", sink.Name(),
		"speech_policy", cfg.SpeechPolicy,
		"ocr_language", cfg.OCRLanguage,
	)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
