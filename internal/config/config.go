package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Speech sink kinds.
const (
	SinkLog     = "log"
	SinkCommand = "command"
	SinkOpenAI  = "openai"
)

// Speech queue policies.
const (
	PolicyQueue     = "queue"
	PolicyInterrupt = "interrupt"
)

type Config struct {
	Port string

	// Auth (optional; empty disables bearer auth on /api)
	APIKey string

	LogLevel string

	// Upload limits
	MaxUploadBytes int64

	// Session state
	SessionTTL time.Duration

	// PDF
	PDFFallbackPdftotext bool

	// OCR
	OCRLanguage    string
	OCRPageSegMode int

	// Speech output
	SpeechSink         string
	SpeechCommand      string
	SpeechPolicy       string
	SpeechQueueSize    int
	SpeechSegmentChars int

	// OpenAI speech sink
	OpenAIAPIKey   string
	OpenAITTSModel string
	OpenAITTSVoice string
	AudioTTL       time.Duration
}

func Load() Config {
	cfg := Config{
		Port: envOr("PORT", "8090"),

		APIKey: os.Getenv("API_KEY"),

		LogLevel: envOr("LOG_LEVEL", "info"),

		MaxUploadBytes: envInt64("MAX_UPLOAD_BYTES", 26214400), // 25MB

		SessionTTL: envDuration("SESSION_TTL", 1*time.Hour),

		PDFFallbackPdftotext: envBool("PDF_FALLBACK_PDFTOTEXT", true),

		OCRLanguage:    envOr("OCR_LANGUAGE", "eng"),
		OCRPageSegMode: envInt("OCR_PAGE_SEG_MODE", 0),

		SpeechSink:         strings.ToLower(envOr("SPEECH_SINK", SinkLog)),
		SpeechCommand:      envOr("SPEECH_COMMAND", "espeak --stdin"),
		SpeechPolicy:       strings.ToLower(envOr("SPEECH_POLICY", PolicyQueue)),
		SpeechQueueSize:    envInt("SPEECH_QUEUE_SIZE", 32),
		SpeechSegmentChars: envInt("SPEECH_SEGMENT_CHARS", 4000),

		OpenAIAPIKey:   os.Getenv("OPENAI_API_KEY"),
		OpenAITTSModel: envOr("OPENAI_TTS_MODEL", "tts-1"),
		OpenAITTSVoice: envOr("OPENAI_TTS_VOICE", "alloy"),
		AudioTTL:       envDuration("AUDIO_TTL", 30*time.Minute),
	}

	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 26214400
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 1 * time.Hour
	}
	if cfg.OCRLanguage == "" {
		cfg.OCRLanguage = "eng"
	}
	if cfg.OCRPageSegMode < 0 {
		cfg.OCRPageSegMode = 0
	}
	if cfg.SpeechQueueSize <= 0 {
		cfg.SpeechQueueSize = 32
	}
	if cfg.SpeechSegmentChars <= 0 {
		cfg.SpeechSegmentChars = 4000
	}
	if cfg.AudioTTL <= 0 {
		cfg.AudioTTL = 30 * time.Minute
	}

	return cfg
}

func (c Config) Validate() error {
	switch c.SpeechSink {
	case SinkLog:
	case SinkCommand:
		if c.SpeechCommand == "" {
			return fmt.Errorf("SPEECH_COMMAND is required when SPEECH_SINK=command")
		}
	case SinkOpenAI:
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required when SPEECH_SINK=openai")
		}
	default:
		return fmt.Errorf("unknown SPEECH_SINK %q (want log, command or openai)", c.SpeechSink)
	}
	if c.SpeechPolicy != PolicyQueue && c.SpeechPolicy != PolicyInterrupt {
		return fmt.Errorf("unknown SPEECH_POLICY %q (want queue or interrupt)", c.SpeechPolicy)
	}
	if c.OCRPageSegMode > 13 {
		return fmt.Errorf("OCR_PAGE_SEG_MODE must be between 0 and 13, got %d", c.OCRPageSegMode)
	}
	return nil
}

// SlogLevel maps LOG_LEVEL onto a slog level; unknown values mean info.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
