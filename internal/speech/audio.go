package speech

import (
	"sort"
	"sync"
	"time"
)

// Clip is synthesised audio for one utterance segment.
type Clip struct {
	UtteranceID string
	SessionID   string
	ContentType string
	Data        []byte
	Text        string
	Part        int
	Parts       int
	CreatedAt   time.Time
}

// ClipInfo is the JSON-safe listing form of a Clip.
type ClipInfo struct {
	UtteranceID string    `json:"utterance_id"`
	ContentType string    `json:"content_type"`
	Bytes       int       `json:"bytes"`
	Text        string    `json:"text"`
	Part        int       `json:"part"`
	Parts       int       `json:"parts"`
	CreatedAt   time.Time `json:"created_at"`
}

// AudioStore keeps synthesised clips in memory so the browser can fetch and
// play them. Clips expire after a TTL.
type AudioStore struct {
	mu    sync.Mutex
	clips map[string]*Clip
	ttl   time.Duration
}

func NewAudioStore(ttl time.Duration) *AudioStore {
	return &AudioStore{
		clips: make(map[string]*Clip),
		ttl:   ttl,
	}
}

func (s *AudioStore) Put(c *Clip) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clips[c.UtteranceID] = c
}

func (s *AudioStore) Get(utteranceID string) *Clip {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clips[utteranceID]
}

// List returns a session's clips, oldest first.
func (s *AudioStore) List(sessionID string) []ClipInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []ClipInfo{}
	for _, c := range s.clips {
		if c.SessionID != sessionID {
			continue
		}
		out = append(out, ClipInfo{
			UtteranceID: c.UtteranceID,
			ContentType: c.ContentType,
			Bytes:       len(c.Data),
			Text:        preview(c.Text, 120),
			Part:        c.Part,
			Parts:       c.Parts,
			CreatedAt:   c.CreatedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].UtteranceID < out[j].UtteranceID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// DeleteSession drops every clip belonging to a session.
func (s *AudioStore) DeleteSession(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, c := range s.clips {
		if c.SessionID == sessionID {
			delete(s.clips, id)
		}
	}
}

// Cleanup removes expired clips.
func (s *AudioStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, c := range s.clips {
		if now.Sub(c.CreatedAt) > s.ttl {
			delete(s.clips, id)
		}
	}
}
