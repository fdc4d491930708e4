package reader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/dgallion1/readaloud/internal/extract"
	"github.com/dgallion1/readaloud/internal/ocr"
	"github.com/dgallion1/readaloud/internal/speech"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type spoken struct {
	text string
	src  speech.Source
}

type recordingSpeaker struct {
	mu    sync.Mutex
	calls []spoken
}

func (r *recordingSpeaker) Enqueue(sessionID, text string, src speech.Source) (speech.Utterance, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, spoken{text: text, src: src})
	return speech.Utterance{ID: fmt.Sprintf("u%d", len(r.calls)), SessionID: sessionID, Text: text, Source: src}, true
}

func (r *recordingSpeaker) Calls() []spoken {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]spoken(nil), r.calls...)
}

// countingExtractor is a strategy that counts invocations.
type countingExtractor struct {
	name  string
	text  string
	err   error
	calls int
}

func (c *countingExtractor) Name() string { return c.name }

func (c *countingExtractor) Extract(context.Context, []byte, map[string]string) (string, error) {
	c.calls++
	return c.text, c.err
}

type fakePages struct{ pages [][]string }

func (f *fakePages) NumPages() int { return len(f.pages) }
func (f *fakePages) PageFragments(_ context.Context, n int) ([]string, error) {
	return f.pages[n-1], nil
}
func (f *fakePages) Close() error { return nil }

type fakeEngine struct {
	text string
	err  error
	got  ocr.Input
}

func (e *fakeEngine) Name() string { return "fake" }
func (e *fakeEngine) Recognize(_ context.Context, in ocr.Input) (ocr.Result, error) {
	e.got = in
	return ocr.Result{PlainText: e.text}, e.err
}

func newTestSession(d *extract.Dispatcher) (*Session, *recordingSpeaker) {
	sp := &recordingSpeaker{}
	return NewSession("s1", d, sp, discardLogger()), sp
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 4, 4))
	img.SetGray(1, 1, color.Gray{Y: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestExtract_PlainTextVerbatim(t *testing.T) {
	content := "  line one\r\n\tline two\n\nÜnïcödé ✓  "
	s, sp := newTestSession(&extract.Dispatcher{Text: extract.TextExtractor{}})
	s.SelectFile(NewFile("a.txt", "text/plain", []byte(content)))

	text, out, err := s.Extract(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != content || s.Text() != content {
		t.Errorf("expected text to match file byte for byte, got %q", text)
	}
	if out.Kind != OutcomeSuccess || out.Strategy != "text" {
		t.Errorf("unexpected outcome: %+v", out)
	}
	calls := sp.Calls()
	if len(calls) != 1 || calls[0].text != content || calls[0].src != speech.SourceExtract {
		t.Errorf("expected one speech call with the text, got %+v", calls)
	}
	if out.UtteranceID != "u1" {
		t.Errorf("expected utterance id on outcome, got %q", out.UtteranceID)
	}
}

func TestExtract_NotesHelloWorld(t *testing.T) {
	s, sp := newTestSession(&extract.Dispatcher{Text: extract.TextExtractor{}})
	s.SelectFile(NewFile("notes.txt", "text/plain", []byte("Hello\nWorld")))

	if _, _, err := s.Extract(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Text() != "Hello\nWorld" {
		t.Errorf("expected %q, got %q", "Hello\nWorld", s.Text())
	}
	calls := sp.Calls()
	if len(calls) != 1 || calls[0].text != "Hello\nWorld" {
		t.Errorf("expected speech call with %q, got %+v", "Hello\nWorld", calls)
	}
}

func TestExtract_PDFPagesInOrder(t *testing.T) {
	pdf := &extract.PDFExtractor{Open: func(context.Context, []byte) (extract.PageSource, error) {
		return &fakePages{pages: [][]string{{"Page", "one"}, {"Two"}, {}, {"Last", "page", "here"}}}, nil
	}}
	s, _ := newTestSession(&extract.Dispatcher{PDF: pdf})
	s.SelectFile(NewFile("doc.pdf", "application/pdf", []byte("%PDF-fake")))

	text, out, err := s.Extract(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "Page one\nTwo\n\nLast page here\n"
	if text != want {
		t.Errorf("expected %q, got %q", want, text)
	}
	if out.Strategy != "pdf" {
		t.Errorf("expected pdf strategy, got %q", out.Strategy)
	}
}

func TestExtract_ImageUsesEngineText(t *testing.T) {
	eng := &fakeEngine{text: "scanned words"}
	img := &extract.ImageExtractor{Engine: eng, Log: discardLogger()}
	s, sp := newTestSession(&extract.Dispatcher{Image: img})
	s.SelectFile(NewFile("scan.png", "image/png", pngBytes(t)))

	text, _, err := s.Extract(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "scanned words" {
		t.Errorf("expected engine text, got %q", text)
	}
	if len(eng.got.Languages) != 1 || eng.got.Languages[0] != "eng" {
		t.Errorf("expected language eng, got %v", eng.got.Languages)
	}
	if len(sp.Calls()) != 1 {
		t.Errorf("expected one speech call, got %d", len(sp.Calls()))
	}
}

func TestExtract_UnsupportedTypeTouchesNoEngine(t *testing.T) {
	pdf := &countingExtractor{name: "pdf"}
	img := &countingExtractor{name: "ocr"}
	txt := &countingExtractor{name: "text"}
	s, sp := newTestSession(&extract.Dispatcher{PDF: pdf, Image: img, Text: txt})

	for _, typ := range []string{
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		"text/markdown",
		"text/html",
		"",
	} {
		s.SelectFile(NewFile("file", typ, []byte("data")))
		text, out, err := s.Extract(context.Background())
		if err != nil {
			t.Fatalf("%q: unexpected error: %v", typ, err)
		}
		if text != UnsupportedText {
			t.Errorf("%q: expected %q, got %q", typ, UnsupportedText, text)
		}
		if out.Kind != OutcomeUnsupported {
			t.Errorf("%q: expected unsupported outcome, got %s", typ, out.Kind)
		}
	}
	if pdf.calls+img.calls+txt.calls != 0 {
		t.Errorf("expected no engine calls, got pdf=%d ocr=%d text=%d", pdf.calls, img.calls, txt.calls)
	}
	if calls := sp.Calls(); len(calls) != 4 || calls[0].text != UnsupportedText {
		t.Errorf("expected unsupported notice to be spoken each time, got %+v", calls)
	}
}

func TestExtract_EngineFailure(t *testing.T) {
	eng := &fakeEngine{err: errors.New("tesseract crashed")}
	img := &extract.ImageExtractor{Engine: eng, Log: discardLogger()}
	txt := &countingExtractor{name: "text", text: "recovered"}
	s, sp := newTestSession(&extract.Dispatcher{Image: img, Text: txt})

	s.SelectFile(NewFile("scan.png", "image/png", pngBytes(t)))
	text, out, err := s.Extract(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != ErrorText || s.Text() != ErrorText {
		t.Errorf("expected %q, got %q", ErrorText, text)
	}
	if out.Kind != OutcomeError {
		t.Errorf("expected error outcome, got %s", out.Kind)
	}
	if s.Processing() {
		t.Error("expected processing flag to be cleared")
	}
	if len(sp.Calls()) != 0 {
		t.Errorf("expected no speech for a failed extraction, got %+v", sp.Calls())
	}

	// The next attempt is independent of the failure.
	s.SelectFile(NewFile("ok.txt", "text/plain", nil))
	text, out, err = s.Extract(context.Background())
	if err != nil || text != "recovered" || out.Kind != OutcomeSuccess {
		t.Errorf("expected independent success, got %q %+v %v", text, out, err)
	}
}

func TestExtract_UndecodableImageIsProcessingFailure(t *testing.T) {
	eng := &fakeEngine{text: "never"}
	img := &extract.ImageExtractor{Engine: eng, Log: discardLogger()}
	s, _ := newTestSession(&extract.Dispatcher{Image: img})
	s.SelectFile(NewFile("broken.jpg", "image/jpeg", []byte("not an image")))

	text, _, err := s.Extract(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != ErrorText {
		t.Errorf("expected %q, got %q", ErrorText, text)
	}
}

func TestExtract_NoFile(t *testing.T) {
	s, sp := newTestSession(&extract.Dispatcher{})
	if _, _, err := s.Extract(context.Background()); !errors.Is(err, ErrNoFile) {
		t.Errorf("expected ErrNoFile, got %v", err)
	}
	if s.Processing() || len(sp.Calls()) != 0 {
		t.Error("expected no side effects")
	}
}

// blockingExtractor holds the strategy until release is closed.
type blockingExtractor struct {
	started chan struct{}
	release chan struct{}
}

func (b *blockingExtractor) Name() string { return "text" }

func (b *blockingExtractor) Extract(ctx context.Context, _ []byte, _ map[string]string) (string, error) {
	close(b.started)
	select {
	case <-b.release:
		return "done", nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func TestExtract_SingleFlight(t *testing.T) {
	bx := &blockingExtractor{started: make(chan struct{}), release: make(chan struct{})}
	s, sp := newTestSession(&extract.Dispatcher{Text: bx})
	s.SelectFile(NewFile("a.txt", "text/plain", []byte("x")))

	done := make(chan error, 1)
	go func() {
		_, _, err := s.Extract(context.Background())
		done <- err
	}()

	select {
	case <-bx.started:
	case <-time.After(2 * time.Second):
		t.Fatal("extraction never started")
	}
	if !s.Processing() {
		t.Error("expected processing flag while extraction runs")
	}
	if !s.Snapshot().Processing {
		t.Error("expected snapshot to report processing")
	}
	if _, _, err := s.Extract(context.Background()); !errors.Is(err, ErrBusy) {
		t.Errorf("expected ErrBusy, got %v", err)
	}

	close(bx.release)
	if err := <-done; err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Processing() {
		t.Error("expected processing flag to be cleared")
	}
	if s.Text() != "done" || len(sp.Calls()) != 1 {
		t.Errorf("expected one completed extraction, got %q and %d speech calls", s.Text(), len(sp.Calls()))
	}
}

func TestExtract_CanceledContextIsProcessingFailure(t *testing.T) {
	bx := &blockingExtractor{started: make(chan struct{}), release: make(chan struct{})}
	s, _ := newTestSession(&extract.Dispatcher{Text: bx})
	s.SelectFile(NewFile("a.txt", "text/plain", nil))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	text, out, err := s.Extract(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != ErrorText || out.Kind != OutcomeError {
		t.Errorf("expected error outcome, got %q %s", text, out.Kind)
	}
	if s.Processing() {
		t.Error("expected processing flag to be cleared")
	}
}

func TestSelectFile_KeepsPreviousText(t *testing.T) {
	s, _ := newTestSession(&extract.Dispatcher{Text: extract.TextExtractor{}})
	s.SelectFile(NewFile("a.txt", "text/plain", []byte("first")))
	if _, _, err := s.Extract(context.Background()); err != nil {
		t.Fatal(err)
	}
	s.SelectFile(NewFile("b.txt", "text/plain", []byte("second")))
	if s.Text() != "first" {
		t.Errorf("expected text to survive a new selection, got %q", s.Text())
	}
	if snap := s.Snapshot(); snap.File == nil || snap.File.Name != "b.txt" || snap.File.Size != 6 {
		t.Errorf("unexpected file in snapshot: %+v", snap.File)
	}
}

func TestReadSelection(t *testing.T) {
	s, sp := newTestSession(&extract.Dispatcher{})
	s.CaptureSelection("quick brown")

	u, err := s.ReadSelection()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	calls := sp.Calls()
	if len(calls) != 1 || calls[0].text != "quick brown" || calls[0].src != speech.SourceSelection {
		t.Errorf("expected exactly one speech call with the fragment, got %+v", calls)
	}
	if u.Text != "quick brown" {
		t.Errorf("unexpected utterance: %+v", u)
	}
}

func TestReadSelection_Empty(t *testing.T) {
	s, sp := newTestSession(&extract.Dispatcher{})
	if _, err := s.ReadSelection(); !errors.Is(err, ErrNoSelection) {
		t.Errorf("expected ErrNoSelection, got %v", err)
	}

	s.CaptureSelection("something")
	s.CaptureSelection("")
	if _, err := s.ReadSelection(); !errors.Is(err, ErrNoSelection) {
		t.Errorf("expected ErrNoSelection after clearing, got %v", err)
	}
	if len(sp.Calls()) != 0 {
		t.Errorf("expected no speech calls, got %+v", sp.Calls())
	}
}

func TestSelectRange(t *testing.T) {
	s, _ := newTestSession(&extract.Dispatcher{Text: extract.TextExtractor{}})
	s.SelectFile(NewFile("a.txt", "text/plain", []byte("héllo wörld")))
	if _, _, err := s.Extract(context.Background()); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		start, end int
		want       string
	}{
		{0, 5, "héllo"},
		{6, 11, "wörld"},
		{6, 100, "wörld"},
		{-3, 1, "h"},
		{5, 0, "héllo"},
		{4, 4, ""},
	}
	for _, tt := range tests {
		if got := s.SelectRange(tt.start, tt.end); got != tt.want {
			t.Errorf("SelectRange(%d, %d) = %q, want %q", tt.start, tt.end, got, tt.want)
		}
	}
	if snap := s.Snapshot(); snap.Selection != "" {
		t.Errorf("expected last selection to be empty, got %q", snap.Selection)
	}
}

func TestSpeak_Manual(t *testing.T) {
	s, sp := newTestSession(&extract.Dispatcher{})
	if _, ok := s.Speak("read this"); !ok {
		t.Fatal("expected text to be queued")
	}
	if calls := sp.Calls(); len(calls) != 1 || calls[0].src != speech.SourceManual {
		t.Errorf("unexpected speech calls: %+v", calls)
	}
}

func TestSnapshot_Initial(t *testing.T) {
	s, _ := newTestSession(&extract.Dispatcher{})
	snap := s.Snapshot()
	if snap.ID != "s1" || snap.File != nil || snap.Text != "" || snap.Processing {
		t.Errorf("unexpected initial snapshot: %+v", snap)
	}
	if snap.Outcome.Kind != OutcomeNone {
		t.Errorf("expected outcome none, got %s", snap.Outcome.Kind)
	}
}
