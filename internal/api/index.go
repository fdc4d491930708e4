package api

import (
	_ "embed"
	"html/template"
	"net/http"

	"github.com/dgallion1/readaloud/internal/config"
	"github.com/dgallion1/readaloud/internal/extract"
	"github.com/dgallion1/readaloud/internal/reader"
)

//go:embed web/index.html
var indexHTML string

var indexTmpl = template.Must(template.New("index").Parse(indexHTML))

type indexData struct {
	Accept string
	Notice string
	// BrowserSpeech makes the page voice text itself with speechSynthesis,
	// for sinks that produce no audio the browser can fetch.
	BrowserSpeech bool
	ServerAudio   bool
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	err := indexTmpl.Execute(w, indexData{
		Accept:        extract.AcceptTypes,
		Notice:        reader.NoSelectionNotice,
		BrowserSpeech: s.cfg.SpeechSink == config.SinkLog,
		ServerAudio:   s.cfg.SpeechSink == config.SinkOpenAI,
	})
	if err != nil {
		s.logFor(r).Error("render index", "error", err)
	}
}
