package config

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// SpeechChanged is true when the speech toggle or any voice mapping
	// changed. Voice lookups read the current config per request, so these
	// apply without rebuilding providers.
	SpeechChanged bool
	VoiceChanges  []VoiceDiff
}

// VoiceDiff describes what changed for a single voice mapping between two
// configs.
type VoiceDiff struct {
	// Key is the voice-map key, a language or "Language-Dialect".
	Key     string
	OldID   string
	NewID   string
	Added   bool
	Removed bool
}

// Diff compares old and new configs and returns what changed.
// Only tracks changes that are safe to apply without restart; provider
// credential or model changes require one.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	// Log level
	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	// Speech toggle
	if old.Speech.Enabled != new.Speech.Enabled {
		d.SpeechChanged = true
	}

	// Detect modified and removed voice mappings.
	for key, oldID := range old.Speech.Voices {
		newID, exists := new.Speech.Voices[key]
		if !exists {
			d.VoiceChanges = append(d.VoiceChanges, VoiceDiff{
				Key:     key,
				OldID:   oldID,
				Removed: true,
			})
			d.SpeechChanged = true
			continue
		}
		if newID != oldID {
			d.VoiceChanges = append(d.VoiceChanges, VoiceDiff{
				Key:   key,
				OldID: oldID,
				NewID: newID,
			})
			d.SpeechChanged = true
		}
	}

	// Detect added voice mappings.
	for key, newID := range new.Speech.Voices {
		if _, exists := old.Speech.Voices[key]; !exists {
			d.VoiceChanges = append(d.VoiceChanges, VoiceDiff{
				Key:   key,
				NewID: newID,
				Added: true,
			})
			d.SpeechChanged = true
		}
	}

	return d
}
