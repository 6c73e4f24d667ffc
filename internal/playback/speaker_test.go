package playback

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/fluentia/fluentia/pkg/provider/tts"
	ttsmock "github.com/fluentia/fluentia/pkg/provider/tts/mock"
)

// memorySink collects written chunks.
type memorySink struct {
	mu     sync.Mutex
	chunks [][]byte
	err    error
}

func (m *memorySink) Write(_ context.Context, chunk []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.chunks = append(m.chunks, chunk)
	return nil
}

func TestStreamSpeaker_PlaysAllChunks(t *testing.T) {
	t.Parallel()

	provider := &ttsmock.Provider{
		SynthesizeChunks: [][]byte{[]byte("a"), []byte("b"), []byte("c")},
	}
	sink := &memorySink{}
	sp := NewStreamSpeaker(provider, tts.VoiceProfile{ID: "v1"}, sink)

	if err := sp.Speak(context.Background(), "hola"); err != nil {
		t.Fatalf("Speak: %v", err)
	}
	if len(sink.chunks) != 3 {
		t.Errorf("expected 3 chunks, got %d", len(sink.chunks))
	}
	if len(provider.SynthesizeStreamCalls) != 1 {
		t.Fatalf("expected 1 stream call, got %d", len(provider.SynthesizeStreamCalls))
	}
	if provider.SynthesizeStreamCalls[0].Voice.ID != "v1" {
		t.Errorf("unexpected voice %+v", provider.SynthesizeStreamCalls[0].Voice)
	}
}

func TestStreamSpeaker_EmptyText(t *testing.T) {
	t.Parallel()

	sp := NewStreamSpeaker(&ttsmock.Provider{}, tts.VoiceProfile{ID: "v1"}, &memorySink{})
	if err := sp.Speak(context.Background(), ""); err == nil {
		t.Error("expected error for empty utterance")
	}
}

func TestStreamSpeaker_ProviderStartFailure(t *testing.T) {
	t.Parallel()

	provider := &ttsmock.Provider{SynthesizeErr: errors.New("dial failed")}
	sp := NewStreamSpeaker(provider, tts.VoiceProfile{ID: "v1"}, &memorySink{})

	if err := sp.Speak(context.Background(), "hola"); err == nil {
		t.Error("expected error when the stream cannot start")
	}
}

func TestStreamSpeaker_SinkFailure(t *testing.T) {
	t.Parallel()

	provider := &ttsmock.Provider{
		SynthesizeChunks: [][]byte{[]byte("a"), []byte("b")},
	}
	sink := &memorySink{err: errors.New("device gone")}
	sp := NewStreamSpeaker(provider, tts.VoiceProfile{ID: "v1"}, sink)

	if err := sp.Speak(context.Background(), "hola"); err == nil {
		t.Error("expected sink failure to surface")
	}
}

func TestStreamSpeaker_ContextCancellation(t *testing.T) {
	t.Parallel()

	provider := &ttsmock.Provider{}
	sp := NewStreamSpeaker(provider, tts.VoiceProfile{ID: "v1"}, &memorySink{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := sp.Speak(ctx, "hola")
	if err != nil && !errors.Is(err, context.Canceled) {
		t.Errorf("expected nil or context.Canceled, got %v", err)
	}
}
