package speech

import "time"

// ASRResponse is the transcription result for one recording artifact.
type ASRResponse struct {
	CallID    string    `json:"callId"`
	Text      string    `json:"text"`
	RequestID string    `json:"requestId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// TTSResponse is the synthesized audio for one reply.
type TTSResponse struct {
	CallID    string    `json:"callId"`
	AudioData []byte    `json:"-"`
	Format    string    `json:"format"`
	RequestID string    `json:"requestId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}
