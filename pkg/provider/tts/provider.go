// Package tts defines the Provider interface for premium text-to-speech
// backends.
//
// A TTS provider wraps a speech-synthesis service (e.g., ElevenLabs) and
// exposes both a one-shot synthesis call returning an encoded audio clip —
// what the /text-to-speech endpoint streams back to the app — and a
// low-latency streaming-input path for interactive playback. When no premium
// provider is configured the serving layer tells the client to fall back to
// its platform speech engine instead; that path never reaches this package.
//
// Implementations must be safe for concurrent use.
package tts

import "context"

// Provider is the abstraction over any premium TTS backend.
type Provider interface {
	// Synthesize renders text with the given voice and returns the encoded
	// audio clip together with its MIME content type (e.g., "audio/mpeg").
	//
	// Returns an error if the backend rejects the request or ctx is
	// cancelled; it never returns an empty clip with a nil error.
	Synthesize(ctx context.Context, text string, voice VoiceProfile) ([]byte, string, error)

	// SynthesizeStream consumes text fragments from the text channel and
	// returns a channel emitting raw PCM audio chunks as they are
	// synthesised, so playback can begin before the full reply text is
	// known. The audio channel is closed when all text has been synthesised
	// or ctx is cancelled; callers must drain it.
	//
	// Returns a non-nil error only if the stream cannot be started.
	SynthesizeStream(ctx context.Context, text <-chan string, voice VoiceProfile) (<-chan []byte, error)

	// ListVoices returns the provider's current voice catalogue.
	ListVoices(ctx context.Context) ([]VoiceProfile, error)
}
