package api

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dgallion1/readaloud/internal/config"
	"github.com/dgallion1/readaloud/internal/extract"
	"github.com/dgallion1/readaloud/internal/reader"
)

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
		ok     bool
	}{
		{"Bearer secret", "secret", true},
		{"bearer secret", "secret", true},
		{"Bearer  secret ", "secret", true},
		{"Bearer ", "", false},
		{"Basic c2VjcmV0", "", false},
		{"secret", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/api/sessions", nil)
		if tt.header != "" {
			req.Header.Set("Authorization", tt.header)
		}
		got, ok := bearerToken(req)
		if got != tt.want || ok != tt.ok {
			t.Errorf("header %q: expected (%q, %v), got (%q, %v)", tt.header, tt.want, tt.ok, got, ok)
		}
	}
}

func logLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var lines []map[string]any
	dec := json.NewDecoder(buf)
	for dec.More() {
		var line map[string]any
		if err := dec.Decode(&line); err != nil {
			t.Fatalf("decode log line: %v", err)
		}
		lines = append(lines, line)
	}
	return lines
}

func TestRequestLoggingTagsRequestID(t *testing.T) {
	var logBuf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&logBuf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	store := reader.NewStore(time.Hour, &extract.Dispatcher{Text: extract.TextExtractor{}}, &recordingSpeaker{}, log)
	srv := NewServer(store, &fakeSpeechControl{}, nil, nil, log, config.Config{})

	req := httptest.NewRequest(http.MethodDelete, "/api/speech", nil)
	req.Header.Set("X-Request-Id", "req-42")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	lines := logLines(t, &logBuf)
	if len(lines) != 2 {
		t.Fatalf("expected handler and request log lines, got %v", lines)
	}
	if lines[0]["msg"] != "speech stopped" || lines[1]["msg"] != "request" {
		t.Fatalf("unexpected log order: %v", lines)
	}
	for _, line := range lines {
		if line["request_id"] != "req-42" {
			t.Errorf("expected request id on %q, got %v", line["msg"], line["request_id"])
		}
	}
	if lines[1]["status"] != float64(200) || lines[1]["level"] != "INFO" {
		t.Errorf("unexpected request line: %v", lines[1])
	}
	if n, _ := lines[1]["bytes"].(float64); n == 0 {
		t.Errorf("expected response size in request line, got %v", lines[1]["bytes"])
	}
}

func TestRequestLoggingLevels(t *testing.T) {
	var logBuf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&logBuf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	store := reader.NewStore(time.Hour, &extract.Dispatcher{}, &recordingSpeaker{}, log)
	srv := NewServer(store, &fakeSpeechControl{}, nil, nil, log, config.Config{})

	srv.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	srv.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/stats/extract", nil))

	lines := logLines(t, &logBuf)
	if len(lines) != 2 {
		t.Fatalf("expected two request lines, got %v", lines)
	}
	if lines[0]["level"] != "DEBUG" {
		t.Errorf("expected health at debug, got %v", lines[0]["level"])
	}
	if lines[1]["status"] != float64(http.StatusServiceUnavailable) || lines[1]["level"] != "WARN" {
		t.Errorf("expected 503 at warn, got %v", lines[1])
	}
}
