package extract

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/net/html/charset"
)

// TextExtractor handles text/plain. Content is returned byte-for-byte unless
// the declared type names a non-UTF-8 charset, in which case it is decoded.
type TextExtractor struct{}

func (TextExtractor) Name() string { return "text" }

func (TextExtractor) Extract(ctx context.Context, data []byte, params map[string]string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	label := strings.TrimSpace(params["charset"])
	if label == "" {
		return string(data), nil
	}
	enc, name := charset.Lookup(label)
	if enc == nil || name == "utf-8" {
		// Unknown labels read as UTF-8, like a browser's readAsText.
		return string(data), nil
	}
	out, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", name, err)
	}
	return string(out), nil
}
