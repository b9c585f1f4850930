package engine

import "context"

// Request contains parameters for one synthesis run.
type Request struct {
	Text     string
	Language string
	Speaker  string
	Instruct string
}

// Chunk is one block of generated audio. Samples are floats in
// [-1.0, 1.0]; the sample rate is constant across a single run.
type Chunk struct {
	Samples    []float32
	SampleRate int
}

// Synthesizer is the contract for producing audio. Implementations
// yield a finite, ordered, single-pass sequence of chunks and may fail
// at any point, after having already yielded zero or more chunks. The
// chunk channel is closed when the run ends; a failure is delivered on
// the error channel.
type Synthesizer interface {
	Synthesize(ctx context.Context, req Request) (<-chan Chunk, <-chan error)
}
