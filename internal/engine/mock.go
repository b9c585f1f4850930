package engine

import (
	"context"
	"fmt"
	"math"
)

// MockSynthesizer generates a deterministic tone without any model
// backend. Used in tests and as the default engine when ENGINE_URL is
// unset, so the delivery pipeline can run on machines without GPUs.
type MockSynthesizer struct {
	SampleRate   int
	ChunkSamples int     // samples per yielded chunk
	NumChunks    int     // chunks per run
	Freq         float64 // tone frequency in Hz
	FailAfter    int     // fail after this many chunks; <0 disables
}

// NewMockSynthesizer returns a mock producing ten 100ms chunks of a
// 440Hz tone at the given rate.
func NewMockSynthesizer(sampleRate int) *MockSynthesizer {
	return &MockSynthesizer{
		SampleRate:   sampleRate,
		ChunkSamples: sampleRate / 10,
		NumChunks:    10,
		Freq:         440,
		FailAfter:    -1,
	}
}

// Synthesize yields the configured chunk sequence.
func (m *MockSynthesizer) Synthesize(ctx context.Context, req Request) (<-chan Chunk, <-chan error) {
	chunks := make(chan Chunk)
	errs := make(chan error, 1)

	go func() {
		defer close(chunks)
		defer close(errs)

		phase := 0.0
		step := 2 * math.Pi * m.Freq / float64(m.SampleRate)

		for i := 0; i < m.NumChunks; i++ {
			if m.FailAfter >= 0 && i == m.FailAfter {
				errs <- fmt.Errorf("mock engine failure after %d chunks", i)
				return
			}

			samples := make([]float32, m.ChunkSamples)
			for j := range samples {
				samples[j] = float32(0.2 * math.Sin(phase))
				phase += step
			}

			select {
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			case chunks <- Chunk{Samples: samples, SampleRate: m.SampleRate}:
			}
		}
	}()

	return chunks, errs
}
