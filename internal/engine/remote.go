package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/jrtorrez31337/pyvs/internal/config"
	"github.com/jrtorrez31337/pyvs/internal/resilience"
	"github.com/jrtorrez31337/pyvs/internal/wav"
)

// RemoteSynthesizer runs synthesis on an HTTP inference backend that
// answers with a raw little-endian int16 PCM body. The body is read
// incrementally and handed out as float chunks, so delivery starts
// before the backend finishes generating.
type RemoteSynthesizer struct {
	url        string
	sampleRate int
	chunkBytes int
	retry      *resilience.RetryConfig
	httpClient *http.Client
	log        zerolog.Logger
}

type remoteRequest struct {
	Text       string `json:"text"`
	Language   string `json:"language,omitempty"`
	Speaker    string `json:"speaker,omitempty"`
	Instruct   string `json:"instruct,omitempty"`
	SampleRate int    `json:"sample_rate"`
}

// NewRemoteSynthesizer creates a client for the engine at cfg.EngineURL.
func NewRemoteSynthesizer(cfg *config.Config, log zerolog.Logger) *RemoteSynthesizer {
	return &RemoteSynthesizer{
		url:        cfg.EngineURL,
		sampleRate: cfg.SampleRate,
		chunkBytes: cfg.ChunkBytes,
		retry: &resilience.RetryConfig{
			MaxAttempts:       cfg.EngineRetryAttempts,
			InitialBackoff:    time.Duration(cfg.EngineRetryBackoffMs) * time.Millisecond,
			MaxBackoff:        5 * time.Second,
			BackoffMultiplier: 2.0,
		},
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.EngineTimeout) * time.Second,
		},
		log: log,
	}
}

// Synthesize posts the request and streams the PCM response back as
// float chunks. Connection establishment is retried; once the body is
// open, a mid-stream failure is reported on the error channel after
// whatever chunks already arrived.
func (s *RemoteSynthesizer) Synthesize(ctx context.Context, req Request) (<-chan Chunk, <-chan error) {
	chunks := make(chan Chunk)
	errs := make(chan error, 1)

	go func() {
		defer close(chunks)
		defer close(errs)

		payload, err := json.Marshal(remoteRequest{
			Text:       req.Text,
			Language:   req.Language,
			Speaker:    req.Speaker,
			Instruct:   req.Instruct,
			SampleRate: s.sampleRate,
		})
		if err != nil {
			errs <- fmt.Errorf("failed to marshal engine request: %w", err)
			return
		}

		var resp *http.Response
		err = resilience.Retry(ctx, func() error {
			httpReq, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
			if reqErr != nil {
				return reqErr
			}
			httpReq.Header.Set("Content-Type", "application/json")

			r, doErr := s.httpClient.Do(httpReq)
			if doErr != nil {
				return doErr
			}
			if r.StatusCode != http.StatusOK {
				body, _ := io.ReadAll(io.LimitReader(r.Body, 512))
				r.Body.Close()
				return fmt.Errorf("engine returned status %d: %s", r.StatusCode, bytes.TrimSpace(body))
			}
			resp = r
			return nil
		}, s.retry, resilience.IsRetryableNetworkError)
		if err != nil {
			errs <- fmt.Errorf("engine request failed: %w", err)
			return
		}
		defer resp.Body.Close()

		buf := make([]byte, s.chunkBytes)
		filled := 0
		for {
			n, readErr := resp.Body.Read(buf[filled:])
			filled += n

			if filled == len(buf) || (readErr != nil && filled >= 2) {
				// Hold back a trailing odd byte for the next chunk.
				usable := filled &^ 1
				samples := wav.PCMToFloat(wav.BytesToPCM(buf[:usable]))
				select {
				case <-ctx.Done():
					errs <- ctx.Err()
					return
				case chunks <- Chunk{Samples: samples, SampleRate: s.sampleRate}:
				}
				copy(buf, buf[usable:filled])
				filled -= usable
			}

			if readErr != nil {
				if readErr != io.EOF {
					errs <- fmt.Errorf("engine stream read failed: %w", readErr)
				}
				return
			}
		}
	}()

	return chunks, errs
}

// Ping checks that the engine endpoint is reachable.
func (s *RemoteSynthesizer) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, s.url, nil)
	if err != nil {
		return err
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("engine unreachable: %w", err)
	}
	resp.Body.Close()
	return nil
}
