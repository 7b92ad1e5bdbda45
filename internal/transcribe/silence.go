package transcribe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/go-audio/wav"
)

// DefaultSilenceThreshold is the normalised RMS below which a recording is silent
const DefaultSilenceThreshold = 0.005

// SilenceGate skips the engine for silent WAV recordings. Other formats
// pass straight through.
type SilenceGate struct {
	next      Transcriber
	threshold float64
}

// NewSilenceGate wraps next; threshold <= 0 uses DefaultSilenceThreshold
func NewSilenceGate(next Transcriber, threshold float64) *SilenceGate {
	if threshold <= 0 {
		threshold = DefaultSilenceThreshold
	}
	return &SilenceGate{next: next, threshold: threshold}
}

// Transcribe returns an empty transcript for silent audio without calling the engine
func (g *SilenceGate) Transcribe(ctx context.Context, audio []byte, filename string) (Transcript, error) {
	level, err := RMS(audio)
	if err == nil && level < g.threshold {
		return Transcript{}, nil
	}
	return g.next.Transcribe(ctx, audio, filename)
}

// errNotWAV is returned by RMS for non-WAV input
var errNotWAV = errors.New("not a valid WAV file")

// RMS returns the root mean square amplitude of a WAV recording, normalised to [0,1]
func RMS(audio []byte) (float64, error) {
	decoder := wav.NewDecoder(bytes.NewReader(audio))
	decoder.ReadInfo()
	if !decoder.IsValidFile() {
		return 0, errNotWAV
	}

	divisor, err := fullScale(int(decoder.BitDepth))
	if err != nil {
		return 0, err
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return 0, fmt.Errorf("decode pcm: %w", err)
	}
	if len(buf.Data) == 0 {
		return 0, nil
	}

	var sum float64
	for _, sample := range buf.Data {
		v := float64(sample) / divisor
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(buf.Data))), nil
}

func fullScale(bitDepth int) (float64, error) {
	switch bitDepth {
	case 16:
		return 32768.0, nil
	case 24:
		return 8388608.0, nil
	case 32:
		return 2147483648.0, nil
	default:
		return 0, fmt.Errorf("unsupported bit depth: %d", bitDepth)
	}
}
