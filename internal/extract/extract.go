package extract

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"strings"
	"time"

	"github.com/dgallion1/readaloud/internal/stats"
)

// ErrUnsupportedType is returned when no strategy handles the declared type.
var ErrUnsupportedType = errors.New("unsupported file type")

// Extractor turns the raw bytes of one file into text.
type Extractor interface {
	Name() string
	// Extract receives the media type parameters (e.g. charset) of the
	// declared type; most strategies ignore them.
	Extract(ctx context.Context, data []byte, params map[string]string) (string, error)
}

// AcceptTypes is the file-picker filter matching the strategies below.
const AcceptTypes = "image/*,application/pdf,text/plain"

// Dispatcher picks a strategy by declared MIME type.
type Dispatcher struct {
	PDF   Extractor
	Image Extractor
	Text  Extractor

	// Stats, if set, receives one latency sample per strategy run.
	Stats *stats.Set
}

// Result is the outcome of a successful extraction.
type Result struct {
	Text     string
	Strategy string
	Duration time.Duration
}

// ForType returns the strategy for a declared MIME type along with its
// parameters. Matching ignores case and parameters.
func (d *Dispatcher) ForType(declared string) (Extractor, map[string]string, error) {
	mediaType, params, err := mime.ParseMediaType(strings.TrimSpace(declared))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %q", ErrUnsupportedType, declared)
	}
	var x Extractor
	switch {
	case mediaType == "application/pdf":
		x = d.PDF
	case strings.HasPrefix(mediaType, "image/"):
		x = d.Image
	case mediaType == "text/plain":
		x = d.Text
	}
	if x == nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnsupportedType, mediaType)
	}
	return x, params, nil
}

// Extract dispatches and runs the matching strategy. Unsupported types return
// ErrUnsupportedType without touching any engine.
func (d *Dispatcher) Extract(ctx context.Context, declared string, data []byte) (Result, error) {
	x, params, err := d.ForType(declared)
	if err != nil {
		return Result{}, err
	}

	start := time.Now()
	text, err := x.Extract(ctx, data, params)
	elapsed := time.Since(start)
	if d.Stats != nil {
		d.Stats.Record(x.Name(), elapsed, err != nil)
	}
	if err != nil {
		return Result{Strategy: x.Name(), Duration: elapsed}, fmt.Errorf("%s: %w", x.Name(), err)
	}
	return Result{Text: text, Strategy: x.Name(), Duration: elapsed}, nil
}
