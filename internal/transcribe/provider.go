package transcribe

import "context"

// Provider is the interface for speech-to-text backends.
type Provider interface {
	Transcribe(ctx context.Context, audioPath string, opts TranscribeOpts) (*Response, error)
	Name() string  // "whisper"
	Model() string // model identifier for logs and artifacts
}

// Response is the common transcription result from any provider.
type Response struct {
	Text     string
	Language string
	Duration float64   // audio duration in seconds
	Segments []Segment // timed utterances in transcript order
}

// Segment is a timed utterance from the provider, not yet attributed to a
// speaker.
type Segment struct {
	Start float64
	End   float64
	Text  string
}
