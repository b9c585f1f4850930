package stt

import "context"

// TranscriptionResult is the outcome of transcribing one uploaded clip.
type TranscriptionResult struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// Transcriber converts a complete audio clip to text. The model behind
// it is an opaque external collaborator.
type Transcriber interface {
	Transcribe(ctx context.Context, pcm []byte, sampleRate int) (*TranscriptionResult, error)
}
