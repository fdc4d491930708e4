package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	pdflib "github.com/ledongthuc/pdf"
)

// PageSource is an opened document that yields text page by page.
type PageSource interface {
	NumPages() int
	// PageFragments returns the text fragments of page n (1-based) in
	// reading order. A page without text yields no fragments.
	PageFragments(ctx context.Context, n int) ([]string, error)
	Close() error
}

// Opener opens a document held in memory.
type Opener func(ctx context.Context, data []byte) (PageSource, error)

// PDFExtractor handles application/pdf. It tries the Go library first, then
// falls back to pdftotext when enabled and the library cannot open the file.
type PDFExtractor struct {
	Open              Opener // nil means OpenPDF
	FallbackPdftotext bool
	PdftotextPath     string // empty means "pdftotext" on PATH
}

func (p *PDFExtractor) Name() string { return "pdf" }

// Extract concatenates the pages in ascending order. A page's fragments are
// joined with a space and every page, including the last, ends with "\n".
func (p *PDFExtractor) Extract(ctx context.Context, data []byte, _ map[string]string) (string, error) {
	open := p.Open
	if open == nil {
		open = OpenPDF
	}

	src, err := open(ctx, data)
	if err != nil && p.FallbackPdftotext {
		var fbErr error
		src, fbErr = p.openPdftotext(ctx, data)
		if fbErr != nil {
			return "", fmt.Errorf("open pdf: %w", errors.Join(err, fbErr))
		}
		err = nil
	}
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer src.Close()

	var buf strings.Builder
	for i := 1; i <= src.NumPages(); i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		frags, err := src.PageFragments(ctx, i)
		if err != nil {
			return "", fmt.Errorf("page %d: %w", i, err)
		}
		buf.WriteString(strings.Join(frags, " "))
		buf.WriteString("\n")
	}
	return buf.String(), nil
}

// OpenPDF opens a document with github.com/ledongthuc/pdf directly from
// memory.
func OpenPDF(_ context.Context, data []byte) (PageSource, error) {
	r, err := newPDFReader(data)
	if err != nil {
		return nil, err
	}
	return &libSource{r: r}, nil
}

func newPDFReader(data []byte) (r *pdflib.Reader, err error) {
	// The library panics on some malformed cross-reference tables.
	defer func() {
		if v := recover(); v != nil {
			r, err = nil, fmt.Errorf("malformed pdf: %v", v)
		}
	}()
	return pdflib.NewReader(bytes.NewReader(data), int64(len(data)))
}

type libSource struct {
	r *pdflib.Reader
}

func (s *libSource) NumPages() int { return s.r.NumPage() }

func (s *libSource) PageFragments(_ context.Context, n int) (frags []string, err error) {
	defer func() {
		if v := recover(); v != nil {
			frags, err = nil, fmt.Errorf("malformed page: %v", v)
		}
	}()
	page := s.r.Page(n)
	if page.V.IsNull() {
		return nil, nil
	}
	text, err := page.GetPlainText(nil)
	if err != nil {
		return nil, err
	}
	return textRuns(text), nil
}

// textRuns splits page text into trimmed, non-empty runs. The library starts
// every text object and every text line on a new line, and pdftotext ends
// each layout line with one.
func textRuns(text string) []string {
	var runs []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			runs = append(runs, line)
		}
	}
	return runs
}

func (s *libSource) Close() error { return nil }

func (p *PDFExtractor) openPdftotext(ctx context.Context, data []byte) (PageSource, error) {
	bin := p.PdftotextPath
	if bin == "" {
		bin = "pdftotext"
	}

	// pdftotext reads from a path, so spill to a temp file.
	tmp, err := os.CreateTemp("", "readaloud-pdf-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	tmp.Close()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, "-layout", tmpPath, "-")
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("pdftotext: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return newTextPages(stdout.String()), nil
}

// textPages is a PageSource over form-feed separated text, the layout
// pdftotext writes.
type textPages struct {
	pages []string
}

func newTextPages(text string) *textPages {
	pages := strings.Split(text, "\f")
	// pdftotext terminates every page with a form feed.
	if n := len(pages); n > 0 && strings.TrimSpace(pages[n-1]) == "" {
		pages = pages[:n-1]
	}
	return &textPages{pages: pages}
}

func (t *textPages) NumPages() int { return len(t.pages) }

func (t *textPages) PageFragments(_ context.Context, n int) ([]string, error) {
	if n < 1 || n > len(t.pages) {
		return nil, fmt.Errorf("page %d out of range", n)
	}
	return textRuns(t.pages[n-1]), nil
}

func (t *textPages) Close() error { return nil }
