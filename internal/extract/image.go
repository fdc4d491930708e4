package extract

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dgallion1/readaloud/internal/ocr"
)

// ImageExtractor handles image/* through an OCR engine.
type ImageExtractor struct {
	Engine   ocr.Engine
	Language string // trained-data id, "eng" when empty
	Log      *slog.Logger
}

func (x *ImageExtractor) Name() string { return "ocr" }

func (x *ImageExtractor) Extract(ctx context.Context, data []byte, _ map[string]string) (string, error) {
	if x.Engine == nil {
		return "", fmt.Errorf("no ocr engine configured")
	}
	img, format, err := ocr.Normalize(data)
	if err != nil {
		return "", err
	}

	lang := x.Language
	if lang == "" {
		lang = "eng"
	}
	log := x.Log
	if log == nil {
		log = slog.Default()
	}
	log = log.With("engine", x.Engine.Name(), "source_format", format)

	res, err := x.Engine.Recognize(ctx, ocr.Input{
		Image:     img,
		Format:    ocr.ImageFormatPNG,
		Languages: []string{lang},
		Progress: func(p ocr.Progress) {
			log.Debug("ocr progress", "stage", p.Stage, "fraction", p.Fraction)
		},
	})
	if err != nil {
		return "", fmt.Errorf("recognize: %w", err)
	}
	log.Info("ocr complete",
		"language", res.Language,
		"confidence", res.Confidence,
		"chars", len(res.PlainText),
	)
	return res.PlainText, nil
}
