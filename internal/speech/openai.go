package speech

import (
	"context"
	"fmt"
	"io"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// maxClipBytes bounds a single synthesised response.
const maxClipBytes = 32 << 20

// OpenAISink synthesises speech with the OpenAI audio API and keeps the
// resulting MP3 in an AudioStore for the browser to play.
type OpenAISink struct {
	client    *openai.Client
	model     openai.SpeechModel
	voice     openai.SpeechVoice
	store     *AudioStore
	retryBase time.Duration
}

func NewOpenAISink(client *openai.Client, model, voice string, store *AudioStore) *OpenAISink {
	if model == "" {
		model = string(openai.TTSModel1)
	}
	if voice == "" {
		voice = string(openai.VoiceAlloy)
	}
	return &OpenAISink{
		client:    client,
		model:     openai.SpeechModel(model),
		voice:     openai.SpeechVoice(voice),
		store:     store,
		retryBase: time.Second,
	}
}

func (s *OpenAISink) Name() string { return "openai" }

func (s *OpenAISink) Speak(ctx context.Context, u Utterance) error {
	var data []byte
	var err error
	for attempt := 0; attempt < maxSynthesisAttempts; attempt++ {
		data, err = s.synthesize(ctx, u.Text)
		if err == nil || !isRetryable(err) || attempt == maxSynthesisAttempts-1 {
			break
		}
		select {
		case <-time.After(backoff(s.retryBase, attempt)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err != nil {
		return err
	}

	s.store.Put(&Clip{
		UtteranceID: u.ID,
		SessionID:   u.SessionID,
		ContentType: "audio/mpeg",
		Data:        data,
		Text:        u.Text,
		Part:        u.Part,
		Parts:       u.Parts,
		CreatedAt:   time.Now(),
	})
	return nil
}

func (s *OpenAISink) synthesize(ctx context.Context, text string) ([]byte, error) {
	resp, err := s.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          s.model,
		Input:          text,
		Voice:          s.voice,
		ResponseFormat: openai.SpeechResponseFormatMp3,
	})
	if err != nil {
		return nil, fmt.Errorf("create speech: %w", err)
	}
	defer resp.Close()

	data, err := io.ReadAll(io.LimitReader(resp, maxClipBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read speech: %w", err)
	}
	if len(data) > maxClipBytes {
		return nil, fmt.Errorf("speech response exceeds %d bytes", maxClipBytes)
	}
	return data, nil
}
