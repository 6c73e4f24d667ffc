package tts

// VoiceProfile identifies a synthesis voice at a specific provider.
type VoiceProfile struct {
	// ID is the provider-specific voice identifier.
	ID string

	// Name is the human-readable voice name.
	Name string

	// Provider names the backend this profile belongs to (e.g., "elevenlabs").
	Provider string

	// Metadata carries provider-specific labels (accent, gender, category).
	Metadata map[string]string
}
