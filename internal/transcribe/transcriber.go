// Package transcribe turns uploaded audio into text.
package transcribe

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/danieldevos90/brutally-honest-ai/internal/model"
)

// ErrNotConfigured is returned when audio arrives but no speech-to-text engine is set up
var ErrNotConfigured = errors.New("speech-to-text is not configured")

// Transcript is the text and detected language of one recording
type Transcript struct {
	Text     string
	Language string
}

// Empty reports whether no speech was recognised
func (t Transcript) Empty() bool {
	return strings.TrimSpace(t.Text) == ""
}

// Transcriber converts audio to text. Silence is an empty transcript, not an error.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, filename string) (Transcript, error)
}

// New builds the configured transcriber wrapped in a silence gate.
// Provider "none" or "" returns a transcriber that always fails with ErrNotConfigured.
func New(cfg model.TranscriptionConfig) (Transcriber, error) {
	var engine Transcriber
	switch strings.ToLower(cfg.Provider) {
	case "openai", "whisper":
		w, err := NewWhisperTranscriber(cfg.APIKey, cfg.BaseURL, cfg.Model)
		if err != nil {
			return nil, err
		}
		engine = w
	case "", "none":
		engine = unavailable{}
	default:
		return nil, fmt.Errorf("unknown transcription provider: %s", cfg.Provider)
	}
	return NewSilenceGate(engine, cfg.SilenceThreshold), nil
}

type unavailable struct{}

func (unavailable) Transcribe(ctx context.Context, audio []byte, filename string) (Transcript, error) {
	return Transcript{}, ErrNotConfigured
}
