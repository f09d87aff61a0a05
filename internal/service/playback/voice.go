package playback

// LocalVoice parameterizes the on-device fallback synthesizer.
type LocalVoice struct {
	Language string
	Pitch    float32
	Rate     float32
}

// CalmVoice returns the fallback voice tuned for an emergency caller: a
// lower pitch and slightly slower rate than the platform default.
func CalmVoice() LocalVoice {
	return LocalVoice{
		Language: "en-US",
		Pitch:    0.8,
		Rate:     0.9,
	}
}
