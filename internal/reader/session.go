// Package reader holds per-user reading sessions: the selected file, the text
// extracted from it, the current text selection, and the hand-off to speech.
package reader

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/dgallion1/readaloud/internal/extract"
	"github.com/dgallion1/readaloud/internal/speech"
)

// Texts stored as the extraction result when no text could be produced.
const (
	UnsupportedText = "Unsupported file type."
	ErrorText       = "Error processing file."
)

// NoSelectionNotice is shown to the user when they ask to hear a selection
// without having selected anything.
const NoSelectionNotice = "Please select some text first!"

var (
	ErrNoFile      = errors.New("no file selected")
	ErrBusy        = errors.New("extraction already in progress")
	ErrNoSelection = errors.New("no text selected")
)

// Extractor runs the strategy matching a declared MIME type.
type Extractor interface {
	Extract(ctx context.Context, declaredType string, data []byte) (extract.Result, error)
}

// Speaker accepts text to vocalise and returns without waiting for it.
type Speaker interface {
	Enqueue(sessionID, text string, src speech.Source) (speech.Utterance, bool)
}

// File is a user-selected file. It is replaced wholesale on every selection
// and never mutated.
type File struct {
	Name       string
	Type       string
	Data       []byte
	SelectedAt time.Time
}

func NewFile(name, declaredType string, data []byte) *File {
	return &File{Name: name, Type: declaredType, Data: data, SelectedAt: time.Now()}
}

// OutcomeKind classifies the last completed extraction attempt.
type OutcomeKind string

const (
	OutcomeNone        OutcomeKind = "none"
	OutcomeSuccess     OutcomeKind = "success"
	OutcomeUnsupported OutcomeKind = "unsupported"
	OutcomeError       OutcomeKind = "error"
)

// Outcome describes the last completed extraction attempt.
type Outcome struct {
	Kind        OutcomeKind `json:"kind"`
	Strategy    string      `json:"strategy,omitempty"`
	DurationMS  int64       `json:"duration_ms"`
	CompletedAt time.Time   `json:"completed_at,omitzero"`
	UtteranceID string      `json:"utterance_id,omitempty"`
}

// Session is one reader: a file, its extracted text and a text selection.
// All state lives behind mu; the lock is never held while a strategy runs.
type Session struct {
	ID string

	mu         sync.Mutex
	file       *File
	text       string
	processing bool
	fragment   string
	outcome    Outcome
	createdAt  time.Time
	lastActive time.Time

	extractor Extractor
	speaker   Speaker
	log       *slog.Logger
}

func NewSession(id string, x Extractor, sp Speaker, log *slog.Logger) *Session {
	now := time.Now()
	return &Session{
		ID:         id,
		outcome:    Outcome{Kind: OutcomeNone},
		createdAt:  now,
		lastActive: now,
		extractor:  x,
		speaker:    sp,
		log:        log.With("session_id", id),
	}
}

// SelectFile replaces the selected file. The previously extracted text is
// left in place until the next extraction completes.
func (s *Session) SelectFile(f *File) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.file = f
	s.lastActive = time.Now()
	s.log.Info("file selected", "filename", f.Name, "type", f.Type, "bytes", len(f.Data))
}

// Extract turns the selected file into text, stores it and speaks it.
// Unsupported types and strategy failures are not errors: they produce
// UnsupportedText or ErrorText. The only errors are ErrNoFile and ErrBusy, in
// which case nothing changes.
func (s *Session) Extract(ctx context.Context) (string, Outcome, error) {
	s.mu.Lock()
	if s.file == nil {
		s.mu.Unlock()
		return "", Outcome{}, ErrNoFile
	}
	if s.processing {
		s.mu.Unlock()
		return "", Outcome{}, ErrBusy
	}
	s.processing = true
	f := s.file
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.processing = false
		s.lastActive = time.Now()
		s.mu.Unlock()
	}()

	log := s.log.With("filename", f.Name, "type", f.Type)
	res, err := s.extractor.Extract(ctx, f.Type, f.Data)

	out := Outcome{
		Strategy:    res.Strategy,
		DurationMS:  res.Duration.Milliseconds(),
		CompletedAt: time.Now(),
	}
	var text string
	switch {
	case err == nil:
		out.Kind = OutcomeSuccess
		text = res.Text
		log.Info("extraction complete", "strategy", res.Strategy,
			"chars", utf8.RuneCountInString(text), "duration_ms", out.DurationMS)
	case errors.Is(err, extract.ErrUnsupportedType):
		out.Kind = OutcomeUnsupported
		text = UnsupportedText
		log.Info("unsupported file type")
	default:
		out.Kind = OutcomeError
		text = ErrorText
		log.Error("extraction failed", "strategy", res.Strategy, "error", err)
	}

	s.mu.Lock()
	s.text = text
	s.mu.Unlock()

	if out.Kind != OutcomeError {
		if u, ok := s.speak(text, speech.SourceExtract); ok {
			out.UtteranceID = u.ID
		}
	}

	s.mu.Lock()
	s.outcome = out
	s.mu.Unlock()
	return text, out, nil
}

// Speak queues text for vocalisation. It never waits for the speech itself.
func (s *Session) Speak(text string) (speech.Utterance, bool) {
	return s.speak(text, speech.SourceManual)
}

func (s *Session) speak(text string, src speech.Source) (speech.Utterance, bool) {
	u, ok := s.speaker.Enqueue(s.ID, text, src)
	if ok {
		s.log.Debug("speech queued", "utterance_id", u.ID, "source", src)
	}
	return u, ok
}

// CaptureSelection records the text currently selected by the user.
func (s *Session) CaptureSelection(fragment string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fragment = fragment
	s.lastActive = time.Now()
}

// SelectRange selects the runes [start, end) of the extracted text and
// returns the captured fragment. Offsets are clamped to the text; reversed
// offsets are swapped.
func (s *Session) SelectRange(start, end int) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	runes := []rune(s.text)
	start = clamp(start, 0, len(runes))
	end = clamp(end, 0, len(runes))
	if start > end {
		start, end = end, start
	}
	s.fragment = string(runes[start:end])
	s.lastActive = time.Now()
	return s.fragment
}

// ReadSelection speaks the captured selection, or returns ErrNoSelection
// when there is none.
func (s *Session) ReadSelection() (speech.Utterance, error) {
	s.mu.Lock()
	fragment := s.fragment
	s.lastActive = time.Now()
	s.mu.Unlock()

	if fragment == "" {
		return speech.Utterance{}, ErrNoSelection
	}
	u, _ := s.speak(fragment, speech.SourceSelection)
	return u, nil
}

// Text returns the current extracted text.
func (s *Session) Text() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.text
}

// Processing reports whether an extraction is in flight.
func (s *Session) Processing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.processing
}

// FileInfo is the JSON-safe description of the selected file.
type FileInfo struct {
	Name       string    `json:"name"`
	Type       string    `json:"type"`
	Size       int       `json:"size"`
	SelectedAt time.Time `json:"selected_at"`
}

// Snapshot is a read-only, JSON-safe copy of session state.
type Snapshot struct {
	ID         string    `json:"session_id"`
	File       *FileInfo `json:"file"`
	Text       string    `json:"text"`
	Processing bool      `json:"processing"`
	Selection  string    `json:"selection"`
	Outcome    Outcome   `json:"last_outcome"`
	CreatedAt  time.Time `json:"created_at"`
	LastActive time.Time `json:"last_active"`
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		ID:         s.ID,
		Text:       s.text,
		Processing: s.processing,
		Selection:  s.fragment,
		Outcome:    s.outcome,
		CreatedAt:  s.createdAt,
		LastActive: s.lastActive,
	}
	if s.file != nil {
		snap.File = &FileInfo{
			Name:       s.file.Name,
			Type:       s.file.Type,
			Size:       len(s.file.Data),
			SelectedAt: s.file.SelectedAt,
		}
	}
	return snap
}

func (s *Session) touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActive = time.Now()
}

// idleSince reports when the session was last used, and whether it is busy.
func (s *Session) idleSince() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive, s.processing
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
