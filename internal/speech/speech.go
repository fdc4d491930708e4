// Package speech turns text into audible utterances. A Queue accepts text
// without blocking the caller and feeds it, segment by segment, to a Sink:
// a local TTS binary, a hosted synthesis API, or just the log.
package speech

import (
	"context"
	"log/slog"
	"time"
)

// Source records why an utterance was requested.
type Source string

const (
	SourceExtract   Source = "extract"
	SourceSelection Source = "selection"
	SourceManual    Source = "manual"
)

// Utterance is one request to vocalise a string.
type Utterance struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Text      string    `json:"text"`
	Source    Source    `json:"source"`
	Part      int       `json:"part"`  // 1-based segment index
	Parts     int       `json:"parts"` // total segments of the full text
	CreatedAt time.Time `json:"created_at"`
}

// Sink vocalises a single utterance. Speak blocks until the sink is done with
// it or ctx is canceled.
type Sink interface {
	Name() string
	Speak(ctx context.Context, u Utterance) error
}

// LogSink writes utterances to the log instead of a speaker. It is the
// default on headless hosts.
type LogSink struct {
	Log *slog.Logger
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Speak(_ context.Context, u Utterance) error {
	s.Log.Info("utterance",
		"utterance_id", u.ID,
		"session_id", u.SessionID,
		"source", u.Source,
		"part", u.Part,
		"parts", u.Parts,
		"chars", len([]rune(u.Text)),
		"preview", preview(u.Text, 80),
	)
	return nil
}

func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
