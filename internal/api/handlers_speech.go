package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/dgallion1/readaloud/internal/reader"
	"github.com/dgallion1/readaloud/internal/speech"
	"github.com/go-chi/chi/v5"
)

type speakRequest struct {
	Text string `json:"text"`
}

// handleSpeak speaks the given text, or the session's extracted text when
// the body has none.
func (s *Server) handleSpeak(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}

	var req speakRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	text := req.Text
	if text == "" {
		text = sess.Text()
	}

	u, ok := sess.Speak(text)
	writeQueued(w, u, ok)
}

type selectionRequest struct {
	Text  *string `json:"text"`
	Start *int    `json:"start"`
	End   *int    `json:"end"`
}

// handleCaptureSelection records the user's selection, either as the
// selected string or as rune offsets into the extracted text.
func (s *Server) handleCaptureSelection(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}

	var req selectionRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	var selection string
	switch {
	case req.Start != nil && req.End != nil:
		selection = sess.SelectRange(*req.Start, *req.End)
	case req.Text != nil:
		selection = *req.Text
		sess.CaptureSelection(selection)
	default:
		jsonError(w, "text or start and end are required", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"session_id": sess.ID,
		"selection":  selection,
	})
}

func (s *Server) handleReadSelection(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}

	u, err := sess.ReadSelection()
	if errors.Is(err, reader.ErrNoSelection) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(map[string]string{
			"error":  err.Error(),
			"notice": reader.NoSelectionNotice,
		})
		return
	}
	writeQueued(w, u, u.ID != "")
}

func (s *Server) handleListUtterances(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}
	clips := []speech.ClipInfo{}
	if s.audio != nil {
		clips = s.audio.List(sess.ID)
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"session_id": sess.ID,
		"utterances": clips,
	})
}

func (s *Server) handleUtteranceAudio(w http.ResponseWriter, r *http.Request) {
	if s.audio == nil {
		jsonError(w, "audio not available for this speech sink", http.StatusNotFound)
		return
	}
	clip := s.audio.Get(chi.URLParam(r, "utteranceID"))
	if clip == nil {
		jsonError(w, "utterance not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", clip.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(clip.Data)))
	w.Header().Set("Cache-Control", "no-store")
	w.Write(clip.Data)
}

// handleStopSpeech silences the utterance being spoken and drops the queued
// ones for every session.
func (s *Server) handleStopSpeech(w http.ResponseWriter, r *http.Request) {
	dropped := s.speech.Pending()
	s.speech.Cancel()
	s.logFor(r).Info("speech stopped", "dropped", dropped)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"stopped": true,
		"dropped": dropped,
	})
}

// writeQueued answers 202 when speech was queued and 200 with queued=false
// when there was nothing to say or the queue was full.
func writeQueued(w http.ResponseWriter, u speech.Utterance, ok bool) {
	w.Header().Set("Content-Type", "application/json")
	if !ok {
		json.NewEncoder(w).Encode(map[string]any{"queued": false})
		return
	}
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]any{
		"queued":       true,
		"utterance_id": u.ID,
		"source":       u.Source,
		"text":         u.Text,
	})
}
