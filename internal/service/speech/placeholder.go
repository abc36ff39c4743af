package speech

import (
	"context"
	"strings"
)

// PlaceholderTranscriber never recognises anything.
type PlaceholderTranscriber struct{}

// Transcribe implements Transcriber.
func (PlaceholderTranscriber) Transcribe(ctx context.Context, _ []byte) (string, error) {
	return "", ctx.Err()
}

// PlaceholderSynthesizer answers every non-empty text with a short silent WAV.
type PlaceholderSynthesizer struct{}

// Synthesize implements Synthesizer.
func (PlaceholderSynthesizer) Synthesize(ctx context.Context, text, _ string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	return Silence(PlaceholderSampleRate, PlaceholderDuration), nil
}
