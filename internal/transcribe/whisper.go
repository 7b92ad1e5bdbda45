package transcribe

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// WhisperTranscriber transcribes audio with the OpenAI transcription API
type WhisperTranscriber struct {
	client *openai.Client
	model  string
}

// NewWhisperTranscriber creates a transcriber; an empty apiKey falls back to OPENAI_API_KEY
func NewWhisperTranscriber(apiKey, baseURL, model string) (*WhisperTranscriber, error) {
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required for transcription")
	}
	clientConfig := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		clientConfig.BaseURL = baseURL
	}
	if model == "" {
		model = openai.Whisper1
	}
	return &WhisperTranscriber{
		client: openai.NewClientWithConfig(clientConfig),
		model:  model,
	}, nil
}

// Transcribe uploads the audio and returns the recognised text and language
func (w *WhisperTranscriber) Transcribe(ctx context.Context, audio []byte, filename string) (Transcript, error) {
	if filename == "" {
		filename = "audio.wav"
	}
	resp, err := w.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    w.model,
		FilePath: filename,
		Reader:   bytes.NewReader(audio),
		Format:   openai.AudioResponseFormatVerboseJSON,
	})
	if err != nil {
		return Transcript{}, fmt.Errorf("transcription failed: %w", err)
	}
	return Transcript{
		Text:     strings.TrimSpace(resp.Text),
		Language: resp.Language,
	}, nil
}
