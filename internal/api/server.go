package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/dgallion1/readaloud/internal/config"
	"github.com/dgallion1/readaloud/internal/reader"
	"github.com/dgallion1/readaloud/internal/speech"
	"github.com/dgallion1/readaloud/internal/stats"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// SpeechControl is the part of the speech queue the API drives directly.
type SpeechControl interface {
	Pending() int
	Cancel()
}

// Server is the HTTP API server for readaloud.
type Server struct {
	router   chi.Router
	sessions *reader.Store
	speech   SpeechControl
	audio    *speech.AudioStore
	stats    *stats.Set
	log      *slog.Logger
	cfg      config.Config
}

// NewServer creates and configures the HTTP server. audio and st may be nil
// when the speech sink keeps no clips or stats are not collected.
func NewServer(sessions *reader.Store, sc SpeechControl, audio *speech.AudioStore, st *stats.Set, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		sessions: sessions,
		speech:   sc,
		audio:    audio,
		stats:    st,
		log:      log,
		cfg:      cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(s.requestLogging)

	// Public endpoints.
	r.Get("/", s.handleIndex)
	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		if s.cfg.APIKey != "" {
			r.Use(s.requireAPIKey)
		}

		r.Post("/sessions", s.handleCreateSession)
		r.Route("/sessions/{sessionID}", func(r chi.Router) {
			r.Get("/", s.handleGetSession)
			r.Delete("/", s.handleDeleteSession)
			r.Put("/file", s.handleSelectFile)
			r.Post("/extract", s.handleExtract)
			r.Post("/speak", s.handleSpeak)
			r.Put("/selection", s.handleCaptureSelection)
			r.Post("/selection/read", s.handleReadSelection)
			r.Get("/utterances", s.handleListUtterances)
		})
		r.Delete("/speech", s.handleStopSpeech)
		r.Get("/utterances/{utteranceID}/audio", s.handleUtteranceAudio)
		r.Get("/stats/extract", s.handleExtractStats)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":         "ok",
		"sessions":       s.sessions.Len(),
		"speech_pending": s.speech.Pending(),
	})
}
