// Package player consumes the server's streamed byte format
// incrementally: it parses the open-ended WAV container as bytes
// arrive, schedules gapless playback through an injected sink, and
// reconstructs a complete, length-correct artifact once the stream
// terminates.
package player

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/jrtorrez31337/pyvs/internal/stream"
	"github.com/jrtorrez31337/pyvs/internal/wav"
)

const (
	// preHeaderProbeWindow bounds how far into a header-less stream the
	// consumer looks for an early error marker.
	preHeaderProbeWindow = 256

	// Sample rates outside these bounds are treated as stream corruption.
	minSampleRate = 8000
	maxSampleRate = 192000
)

// Sink receives decoded audio for playback. Implementations wrap the
// host audio API; tests inject a recording fake.
type Sink interface {
	// PlayAt schedules samples to begin playing at start.
	PlayAt(samples []float32, sampleRate int, start time.Time)
	// DiscardPending drops scheduled-but-not-yet-played buffers.
	DiscardPending()
}

// State is the consumer's decode phase.
type State int

const (
	StateAwaitingHeader State = iota
	StateStreaming
	StateTerminated
)

// Result is the outcome of a completed stream.
type Result struct {
	JobID      string // empty when the stream carried no job id marker
	SampleRate int
	Artifact   []byte // complete length-correct WAV file
}

// StreamError is a failure the server reported in-band via an error
// marker. Audio may already have played before it was observed; the
// operation still counts as failed and no artifact is produced.
type StreamError struct {
	Message string
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("generation failed: %s", e.Message)
}

// ProtocolError is a stream that does not match the expected container
// format. Fatal, no partial playback.
type ProtocolError struct {
	Reason string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("malformed audio stream: %s", e.Reason)
}

// Consumer decodes one streamed response. Feed it bytes as they arrive
// from the network, then call Finish at stream end. Not safe for
// concurrent use; the read loop is single-threaded.
type Consumer struct {
	chunkBytes int
	sink       Sink
	sched      *Scheduler

	state      State
	buf        []byte // received, not yet consumed
	pcm        []byte // every PCM byte accepted, for the artifact
	sampleRate int

	mu        sync.Mutex
	abandoned bool

	termErr error
}

// Feed appends newly received bytes and advances the decode state
// machine as far as the buffered data allows. Returns a terminal error
// as soon as one is detectable; later feeds after termination are
// drained and ignored.
func (c *Consumer) Feed(p []byte) error {
	c.mu.Lock()
	if c.abandoned {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	if c.state == StateTerminated {
		return c.termErr
	}

	c.buf = append(c.buf, p...)

	if c.state == StateAwaitingHeader {
		if err := c.tryConsumeHeader(); err != nil {
			return err
		}
	}

	if c.state == StateStreaming {
		c.deliverReady()
	}

	return nil
}

// tryConsumeHeader probes for a pre-header error marker, then parses
// and discards the container header once enough bytes are buffered.
func (c *Consumer) tryConsumeHeader() error {
	window := c.buf
	if len(window) > preHeaderProbeWindow {
		window = window[:preHeaderProbeWindow]
	}
	if m := stream.ScanMarker(window); m.Kind == stream.MarkerError {
		return c.terminate(&StreamError{Message: m.Value})
	}

	if len(c.buf) < wav.HeaderSize {
		return nil
	}

	sr, err := wav.ParseHeader(c.buf)
	if err != nil {
		return c.terminate(&ProtocolError{Reason: err.Error()})
	}
	if sr < minSampleRate || sr > maxSampleRate {
		return c.terminate(&ProtocolError{Reason: fmt.Sprintf("implausible sample rate %d", sr)})
	}

	c.sampleRate = sr
	c.buf = append([]byte(nil), c.buf[wav.HeaderSize:]...)
	c.state = StateStreaming
	return nil
}

// deliverReady schedules buffered PCM whenever the chunk threshold is
// reached, slicing off the largest even-sample-aligned prefix.
func (c *Consumer) deliverReady() {
	for len(c.buf) >= c.chunkBytes {
		take := len(c.buf) &^ 1
		c.schedule(c.buf[:take])
		c.buf = append([]byte(nil), c.buf[take:]...)
	}
}

// Finish handles stream end: the remaining tail is scanned as text for
// a terminal marker, any PCM before the marker is scheduled as the
// final chunk, and the complete artifact is assembled.
func (c *Consumer) Finish() (*Result, error) {
	c.mu.Lock()
	if c.abandoned {
		c.mu.Unlock()
		return nil, fmt.Errorf("stream abandoned")
	}
	c.mu.Unlock()

	switch c.state {
	case StateTerminated:
		return nil, c.termErr

	case StateAwaitingHeader:
		if m := stream.ScanMarker(c.buf); m.Kind == stream.MarkerError {
			return nil, c.terminate(&StreamError{Message: m.Value})
		}
		return nil, c.terminate(&ProtocolError{Reason: fmt.Sprintf("stream ended after %d bytes, before a complete header", len(c.buf))})
	}

	jobID := ""
	tail := c.buf
	if m := stream.ScanMarker(tail); m.Kind != stream.MarkerNone {
		if m.Kind == stream.MarkerError {
			return nil, c.terminate(&StreamError{Message: m.Value})
		}
		jobID = m.Value
		tail = tail[:m.Start]
	}

	if final := len(tail) &^ 1; final > 0 {
		c.schedule(tail[:final])
	}
	c.buf = nil
	c.state = StateTerminated

	return &Result{
		JobID:      jobID,
		SampleRate: c.sampleRate,
		Artifact:   wav.Encode(wav.BytesToPCM(c.pcm), c.sampleRate),
	}, nil
}

// Consume drives the consumer from a reader until EOF, then finishes.
func (c *Consumer) Consume(r io.Reader) (*Result, error) {
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			if feedErr := c.Feed(buf[:n]); feedErr != nil {
				// Drain whatever is still arriving for the dead stream.
				io.Copy(io.Discard, r)
				return nil, feedErr
			}
		}
		if err == io.EOF {
			return c.Finish()
		}
		if err != nil {
			return nil, fmt.Errorf("stream read failed: %w", err)
		}
	}
}

func (c *Consumer) schedule(pcmBytes []byte) {
	samples := wav.PCMToFloat(wav.BytesToPCM(pcmBytes))
	c.pcm = append(c.pcm, pcmBytes[:len(samples)*2]...)

	d := time.Duration(float64(len(samples)) / float64(c.sampleRate) * float64(time.Second))
	start := c.sched.ScheduleNext(d)
	c.sink.PlayAt(samples, c.sampleRate, start)
}

func (c *Consumer) terminate(err error) error {
	c.state = StateTerminated
	c.termErr = err
	c.buf = nil
	return err
}

// State returns the consumer's current decode phase.
func (c *Consumer) State() State {
	return c.state
}

func (c *Consumer) abandon() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.abandoned = true
}

// Player owns the playback sink and hands out one consumer per
// generation request. Starting a new stream discards everything
// scheduled but not yet played and resets the gapless cursor; the
// previous stream's network read keeps draining but its bytes are
// ignored.
type Player struct {
	sink       Sink
	chunkBytes int
	now        func() time.Time

	mu      sync.Mutex
	current *Consumer
}

// NewPlayer creates a player delivering to sink, scheduling chunks of
// chunkBytes (sized to roughly 100ms of audio at the configured rate).
func NewPlayer(sink Sink, chunkBytes int) *Player {
	return &Player{
		sink:       sink,
		chunkBytes: chunkBytes,
		now:        time.Now,
	}
}

// SetClock replaces the scheduler clock. Test hook.
func (p *Player) SetClock(now func() time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.now = now
}

// StartStream abandons any in-flight stream and returns a fresh
// consumer for the next response body.
func (p *Player) StartStream() *Consumer {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current != nil {
		p.current.abandon()
	}
	p.sink.DiscardPending()

	c := &Consumer{
		chunkBytes: p.chunkBytes,
		sink:       p.sink,
		sched:      NewScheduler(p.now),
		state:      StateAwaitingHeader,
	}
	p.current = c
	return c
}
