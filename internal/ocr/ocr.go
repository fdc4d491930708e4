// Package ocr defines the contract between the image extraction strategy and
// the recognition engine behind it. Engines may wrap a native library, a local
// binary or a remote service; callers only see Input and Result.
package ocr

import "context"

// ImageFormat identifies the content type of an OCR input image. Normalize
// always produces PNG.
type ImageFormat string

const ImageFormatPNG ImageFormat = "image/png"

// Progress is a single status report from an engine while it works.
type Progress struct {
	Stage    string  // e.g. "initializing", "recognizing", "done"
	Fraction float64 // 0..1, best effort
}

// ProgressFunc receives engine progress. It must not block.
type ProgressFunc func(Progress)

// Input is a single image submitted for recognition.
type Input struct {
	// Image is the encoded image payload in the format given by Format.
	Image  []byte
	Format ImageFormat
	// Languages are trained-data identifiers such as "eng" or "deu".
	Languages []string
	// Progress, if set, is called as recognition advances.
	Progress ProgressFunc
}

// Result is the engine's best-effort reading of an image.
type Result struct {
	// PlainText is empty when nothing was recognised.
	PlainText  string
	Language   string
	Confidence float64 // 0..1, zero when unknown
}

// Engine turns one image into text.
type Engine interface {
	Name() string
	Recognize(ctx context.Context, in Input) (Result, error)
}

// Report calls in.Progress when one is set.
func (in Input) Report(stage string, fraction float64) {
	if in.Progress != nil {
		in.Progress(Progress{Stage: stage, Fraction: fraction})
	}
}
