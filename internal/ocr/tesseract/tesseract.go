// Package tesseract provides an ocr.Engine backed by the Tesseract library
// through gosseract. Tesseract and its trained data must be installed on the
// host (apt-get install tesseract-ocr tesseract-ocr-eng).
package tesseract

import (
	"context"
	"fmt"
	"strings"

	"github.com/dgallion1/readaloud/internal/ocr"
	"github.com/otiai10/gosseract/v2"
)

// Engine creates one gosseract client per recognition, so concurrent
// sessions never share Tesseract state.
type Engine struct {
	clientFactory func() *gosseract.Client
	defaultLangs  []string
	pageSegMode   int
}

// NewEngine constructs a Tesseract engine. pageSegMode 0 keeps Tesseract's
// own default; defaultLang applies when an input carries no language hint.
func NewEngine(defaultLang string, pageSegMode int) *Engine {
	var langs []string
	if defaultLang != "" {
		langs = strings.Split(defaultLang, "+")
	}
	return &Engine{
		clientFactory: gosseract.NewClient,
		defaultLangs:  langs,
		pageSegMode:   pageSegMode,
	}
}

func (e *Engine) Name() string { return "tesseract" }

// Recognize runs OCR on one image.
func (e *Engine) Recognize(ctx context.Context, in ocr.Input) (ocr.Result, error) {
	if err := ctx.Err(); err != nil {
		return ocr.Result{}, err
	}
	in.Report("initializing", 0)

	c := e.clientFactory()
	defer c.Close()

	langs := in.Languages
	if len(langs) == 0 {
		langs = e.defaultLangs
	}
	if len(langs) > 0 {
		if err := c.SetLanguage(langs...); err != nil {
			return ocr.Result{}, fmt.Errorf("set languages: %w", err)
		}
	}
	if e.pageSegMode > 0 {
		if err := c.SetPageSegMode(gosseract.PageSegMode(e.pageSegMode)); err != nil {
			return ocr.Result{}, fmt.Errorf("set page seg mode: %w", err)
		}
	}
	if err := c.SetImageFromBytes(in.Image); err != nil {
		return ocr.Result{}, fmt.Errorf("set image: %w", err)
	}

	in.Report("recognizing", 0.1)
	text, err := c.Text()
	if err != nil {
		return ocr.Result{}, fmt.Errorf("recognize text: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return ocr.Result{}, err
	}
	in.Report("done", 1)

	return ocr.Result{
		PlainText:  text,
		Language:   firstLanguage(langs),
		Confidence: wordConfidence(c),
	}, nil
}

func wordConfidence(c *gosseract.Client) float64 {
	boxes, err := c.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil || len(boxes) == 0 {
		return 0
	}
	var sum float64
	for _, b := range boxes {
		sum += b.Confidence / 100.0
	}
	return sum / float64(len(boxes))
}

func firstLanguage(langs []string) string {
	if len(langs) == 0 {
		return ""
	}
	return langs[0]
}
