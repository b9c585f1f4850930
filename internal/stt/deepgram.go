package stt

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	websocketv1api "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket"
	msginterfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket/interfaces"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	listenClient "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"
	"github.com/rs/zerolog"

	"github.com/jrtorrez31337/pyvs/internal/config"
)

const sendChunkBytes = 8192

// messageCallbackHandler implements the LiveMessageCallback interface.
// It embeds the default handler and overrides only the methods we need.
type messageCallbackHandler struct {
	*websocketv1api.DefaultCallbackHandler

	mu         sync.Mutex
	finals     []string
	confidence float64
	closed     chan struct{}
	closeOnce  sync.Once
}

// Message collects final transcription alternatives.
func (m *messageCallbackHandler) Message(msg *msginterfaces.MessageResponse) error {
	if msg == nil || !msg.IsFinal || len(msg.Channel.Alternatives) == 0 {
		return nil
	}
	alt := msg.Channel.Alternatives[0]
	if alt.Transcript == "" {
		return nil
	}

	m.mu.Lock()
	m.finals = append(m.finals, alt.Transcript)
	if alt.Confidence > m.confidence {
		m.confidence = alt.Confidence
	}
	m.mu.Unlock()
	return nil
}

// Close signals that the session delivered everything it will.
func (m *messageCallbackHandler) Close(cr *msginterfaces.CloseResponse) error {
	m.closeOnce.Do(func() { close(m.closed) })
	return nil
}

// Error also unblocks the waiter; the collected finals still count.
func (m *messageCallbackHandler) Error(er *msginterfaces.ErrorResponse) error {
	m.closeOnce.Do(func() { close(m.closed) })
	return nil
}

func (m *messageCallbackHandler) result() *TranscriptionResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	return &TranscriptionResult{
		Text:       strings.Join(m.finals, " "),
		Confidence: m.confidence,
	}
}

// DeepgramTranscriber implements Transcriber against Deepgram's
// streaming API: the uploaded clip's PCM is written through a live
// session and the final results are collected when the session closes.
type DeepgramTranscriber struct {
	apiKey   string
	model    string
	language string
	log      zerolog.Logger
}

// NewDeepgramTranscriber creates a transcriber from configuration.
func NewDeepgramTranscriber(cfg *config.Config, log zerolog.Logger) *DeepgramTranscriber {
	return &DeepgramTranscriber{
		apiKey:   cfg.DeepgramAPIKey,
		model:    cfg.DeepgramModel,
		language: cfg.DeepgramLanguage,
		log:      log,
	}
}

// Transcribe runs one complete clip of little-endian int16 PCM through
// a Deepgram session and returns the joined final transcript.
func (d *DeepgramTranscriber) Transcribe(ctx context.Context, pcm []byte, sampleRate int) (*TranscriptionResult, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	tOptions := &interfaces.LiveTranscriptionOptions{
		Model:      d.model,
		Language:   d.language,
		Punctuate:  true,
		Encoding:   "linear16",
		Channels:   1,
		SampleRate: sampleRate,
	}

	callback := &messageCallbackHandler{
		DefaultCallbackHandler: websocketv1api.NewDefaultCallbackHandler(),
		closed:                 make(chan struct{}),
	}

	client, err := listenClient.NewWSUsingCallback(ctx, d.apiKey, nil, tOptions, callback)
	if err != nil {
		return nil, fmt.Errorf("failed to create transcription session: %w", err)
	}

	for off := 0; off < len(pcm); off += sendChunkBytes {
		end := off + sendChunkBytes
		if end > len(pcm) {
			end = len(pcm)
		}
		if _, err := client.Write(pcm[off:end]); err != nil {
			return nil, fmt.Errorf("failed to send audio: %w", err)
		}
	}
	client.Finish()

	select {
	case <-callback.closed:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(30 * time.Second):
		d.log.Warn().Msg("Transcription session did not close; returning collected finals")
	}

	return callback.result(), nil
}
