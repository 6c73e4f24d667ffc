package playback

import (
	"context"
	"errors"
	"fmt"

	"github.com/fluentia/fluentia/pkg/provider/tts"
)

// AudioSink consumes raw audio chunks. Implementations wrap the platform
// audio output; tests substitute an in-memory sink.
type AudioSink interface {
	// Write plays one chunk, blocking until it is handed to the device.
	Write(ctx context.Context, chunk []byte) error
}

// StreamSpeaker implements [Speaker] on top of a streaming TTS provider:
// the utterance text is fed to the provider and the synthesized audio is
// drained into the sink as it arrives, so playback starts before synthesis
// finishes.
type StreamSpeaker struct {
	provider tts.Provider
	voice    tts.VoiceProfile
	sink     AudioSink
}

// Compile-time interface assertion.
var _ Speaker = (*StreamSpeaker)(nil)

// NewStreamSpeaker returns a StreamSpeaker using the given voice.
func NewStreamSpeaker(provider tts.Provider, voice tts.VoiceProfile, sink AudioSink) *StreamSpeaker {
	return &StreamSpeaker{provider: provider, voice: voice, sink: sink}
}

// Speak synthesizes text and plays it chunk by chunk. It returns when the
// audio channel closes, the sink fails, or ctx is cancelled.
func (sp *StreamSpeaker) Speak(ctx context.Context, text string) error {
	if text == "" {
		return errors.New("playback: empty utterance")
	}

	textCh := make(chan string, 1)
	textCh <- text
	close(textCh)

	audioCh, err := sp.provider.SynthesizeStream(ctx, textCh, sp.voice)
	if err != nil {
		return fmt.Errorf("playback: start synthesis: %w", err)
	}

	for {
		select {
		case chunk, ok := <-audioCh:
			if !ok {
				return nil
			}
			if err := sp.sink.Write(ctx, chunk); err != nil {
				// Drain the rest so the synthesis goroutine can exit.
				for range audioCh {
				}
				return fmt.Errorf("playback: sink: %w", err)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
