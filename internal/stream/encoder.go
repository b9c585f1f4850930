// Package stream turns a lazy sequence of generated audio chunks into
// a chunked HTTP body: an open-ended WAV container followed by raw PCM
// and a terminal in-band marker. Finished results are stored in the
// result cache under a fresh job id.
package stream

import (
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jrtorrez31337/pyvs/internal/engine"
	"github.com/jrtorrez31337/pyvs/internal/jobcache"
	"github.com/jrtorrez31337/pyvs/internal/observability"
	"github.com/jrtorrez31337/pyvs/internal/wav"
)

// Encoder serializes chunk sequences into streaming responses.
type Encoder struct {
	cache         *jobcache.Cache
	numChannels   int
	bitsPerSample int
	log           zerolog.Logger
	newJobID      func() string // injectable for tests
}

// NewEncoder creates an encoder writing mono 16-bit streams backed by
// the given result cache.
func NewEncoder(cache *jobcache.Cache, numChannels, bitsPerSample int, log zerolog.Logger) *Encoder {
	return &Encoder{
		cache:         cache,
		numChannels:   numChannels,
		bitsPerSample: bitsPerSample,
		log:           log,
		newJobID:      uuid.NewString,
	}
}

// Stream consumes the chunk sequence and writes the wire format to w,
// flushing after every write so bytes reach the client before the
// generation finishes. The header goes out when the first chunk
// reveals the sample rate; every converted chunk is accumulated for
// the cache. On success the accumulated result is cached and a job-id
// marker is appended; on failure an error marker is appended instead
// (also when the failure precedes the header, so the client can probe
// for it). Returns the job id, empty on failure or an empty stream.
func (e *Encoder) Stream(w io.Writer, chunks <-chan engine.Chunk, errs <-chan error) (string, error) {
	headerSent := false
	sampleRate := 0
	var accumulated []int16

	for chunk := range chunks {
		if !headerSent {
			sampleRate = chunk.SampleRate
			if err := e.writeAndFlush(w, wav.StreamHeader(sampleRate, e.numChannels, e.bitsPerSample)); err != nil {
				return "", fmt.Errorf("failed to write stream header: %w", err)
			}
			headerSent = true
		}

		pcm := wav.FloatToPCM(chunk.Samples)
		accumulated = append(accumulated, pcm...)

		data := wav.PCMToBytes(pcm)
		if err := e.writeAndFlush(w, data); err != nil {
			return "", fmt.Errorf("failed to write PCM chunk: %w", err)
		}
		observability.RecordStreamedBytes(len(data))
	}

	if genErr := <-errs; genErr != nil {
		// Headers are already committed, so there is no status code to
		// signal with; the in-band marker is the only channel left.
		e.log.Error().Err(genErr).Msg("Generation failed mid-stream")
		if err := e.writeAndFlush(w, ErrorMarker(genErr.Error())); err != nil {
			e.log.Warn().Err(err).Msg("Failed to write error marker")
		}
		return "", genErr
	}

	if len(accumulated) == 0 {
		return "", nil
	}

	jobID := e.newJobID()
	e.cache.Put(jobID, accumulated, sampleRate)
	if err := e.writeAndFlush(w, JobIDMarker(jobID)); err != nil {
		return jobID, fmt.Errorf("failed to write job id marker: %w", err)
	}

	e.log.Info().
		Str("job_id", jobID).
		Int("samples", len(accumulated)).
		Int("sample_rate", sampleRate).
		Msg("Stream complete")
	return jobID, nil
}

func (e *Encoder) writeAndFlush(w io.Writer, b []byte) error {
	if _, err := w.Write(b); err != nil {
		return err
	}
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	return nil
}
