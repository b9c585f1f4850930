package player

import (
	"errors"
	"testing"
	"time"

	"github.com/jrtorrez31337/pyvs/internal/stream"
	"github.com/jrtorrez31337/pyvs/internal/wav"
)

type playedBuffer struct {
	samples    []float32
	sampleRate int
	start      time.Time
}

type fakeSink struct {
	played    []playedBuffer
	discarded int
}

func (f *fakeSink) PlayAt(samples []float32, sampleRate int, start time.Time) {
	f.played = append(f.played, playedBuffer{samples: samples, sampleRate: sampleRate, start: start})
}

func (f *fakeSink) DiscardPending() {
	f.discarded++
}

func newTestPlayer(chunkBytes int) (*Player, *fakeSink, *time.Time) {
	sink := &fakeSink{}
	p := NewPlayer(sink, chunkBytes)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	p.SetClock(func() time.Time { return now })
	return p, sink, &now
}

func pcmBytes(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i % 251)
	}
	return b
}

func TestConsumer_FullStream(t *testing.T) {
	p, sink, _ := newTestPlayer(4800)
	c := p.StartStream()

	// [header][chunk A: 4800 bytes][chunk B: 1200 bytes][job id marker]
	if err := c.Feed(wav.StreamHeader(24000, 1, 16)); err != nil {
		t.Fatalf("Feed header failed: %v", err)
	}
	if err := c.Feed(pcmBytes(4800)); err != nil {
		t.Fatalf("Feed chunk A failed: %v", err)
	}
	if err := c.Feed(pcmBytes(1200)); err != nil {
		t.Fatalf("Feed chunk B failed: %v", err)
	}
	if err := c.Feed(stream.JobIDMarker("abc123")); err != nil {
		t.Fatalf("Feed marker failed: %v", err)
	}

	res, err := c.Finish()
	if err != nil {
		t.Fatalf("Finish failed: %v", err)
	}

	if len(sink.played) != 2 {
		t.Fatalf("Expected 2 playback calls, got %d", len(sink.played))
	}
	if len(sink.played[0].samples) != 2400 {
		t.Errorf("Expected first chunk of 2400 samples, got %d", len(sink.played[0].samples))
	}
	if len(sink.played[1].samples) != 600 {
		t.Errorf("Expected final chunk of 600 samples, got %d", len(sink.played[1].samples))
	}

	if res.JobID != "abc123" {
		t.Errorf("Expected job id 'abc123', got '%s'", res.JobID)
	}
	if res.SampleRate != 24000 {
		t.Errorf("Expected sample rate 24000, got %d", res.SampleRate)
	}

	// Artifact: fresh 44-byte header plus exactly 6000 PCM bytes.
	if len(res.Artifact) != wav.HeaderSize+6000 {
		t.Fatalf("Expected artifact of %d bytes, got %d", wav.HeaderSize+6000, len(res.Artifact))
	}
	sr, err := wav.ParseHeader(res.Artifact)
	if err != nil {
		t.Fatalf("Artifact header invalid: %v", err)
	}
	if sr != 24000 {
		t.Errorf("Expected artifact sample rate 24000, got %d", sr)
	}
}

func TestConsumer_ErrorMarkerBeforeHeader(t *testing.T) {
	p, sink, _ := newTestPlayer(4800)
	c := p.StartStream()

	err := c.Feed(stream.ErrorMarker("model not loaded"))
	if err == nil {
		t.Fatal("Expected terminal error from pre-header error marker")
	}

	var streamErr *StreamError
	if !errors.As(err, &streamErr) {
		t.Fatalf("Expected StreamError, got %T: %v", err, err)
	}
	if streamErr.Message != "model not loaded" {
		t.Errorf("Expected embedded message 'model not loaded', got '%s'", streamErr.Message)
	}

	if len(sink.played) != 0 {
		t.Errorf("Expected zero playback buffers, got %d", len(sink.played))
	}
	if c.State() != StateTerminated {
		t.Errorf("Expected Terminated state, got %d", c.State())
	}
}

func TestConsumer_ErrorMarkerSplitAcrossReads(t *testing.T) {
	p, sink, _ := newTestPlayer(4800)
	c := p.StartStream()

	marker := stream.ErrorMarker("oom")
	if err := c.Feed(marker[:5]); err != nil {
		t.Fatalf("Partial marker should not fail yet: %v", err)
	}
	err := c.Feed(marker[5:])
	if err == nil {
		t.Fatal("Expected error once the marker completed")
	}
	if len(sink.played) != 0 {
		t.Errorf("Expected zero playback buffers, got %d", len(sink.played))
	}
}

func TestConsumer_ErrorMarkerAfterAudio(t *testing.T) {
	p, sink, _ := newTestPlayer(4800)
	c := p.StartStream()

	c.Feed(wav.StreamHeader(24000, 1, 16))
	c.Feed(pcmBytes(4800))
	c.Feed(stream.ErrorMarker("decoder crashed"))

	res, err := c.Finish()
	if err == nil {
		t.Fatal("Expected failure even though audio already played")
	}
	if res != nil {
		t.Error("Failed stream must not yield an artifact")
	}

	// Chunk A was already audible before the marker arrived.
	if len(sink.played) != 1 {
		t.Errorf("Expected 1 playback call before failure, got %d", len(sink.played))
	}
}

func TestConsumer_BadMagic(t *testing.T) {
	p, sink, _ := newTestPlayer(4800)
	c := p.StartStream()

	bad := wav.StreamHeader(24000, 1, 16)
	copy(bad[0:4], "OGGS")

	err := c.Feed(bad)
	var protoErr *ProtocolError
	if !errors.As(err, &protoErr) {
		t.Fatalf("Expected ProtocolError, got %T: %v", err, err)
	}
	if len(sink.played) != 0 {
		t.Errorf("Expected no playback on protocol violation, got %d", len(sink.played))
	}
}

func TestConsumer_ImplausibleSampleRate(t *testing.T) {
	p, _, _ := newTestPlayer(4800)
	c := p.StartStream()

	err := c.Feed(wav.StreamHeader(2, 1, 16))
	var protoErr *ProtocolError
	if !errors.As(err, &protoErr) {
		t.Fatalf("Expected ProtocolError for sample rate 2, got %T: %v", err, err)
	}
}

func TestConsumer_EndBeforeHeader(t *testing.T) {
	p, _, _ := newTestPlayer(4800)
	c := p.StartStream()

	c.Feed([]byte{1, 2, 3})
	_, err := c.Finish()
	var protoErr *ProtocolError
	if !errors.As(err, &protoErr) {
		t.Fatalf("Expected ProtocolError for truncated stream, got %T: %v", err, err)
	}
}

func TestConsumer_GaplessScheduling(t *testing.T) {
	p, sink, now := newTestPlayer(4800)
	c := p.StartStream()

	c.Feed(wav.StreamHeader(24000, 1, 16))
	c.Feed(pcmBytes(4800)) // 2400 samples = 100ms
	c.Feed(pcmBytes(4800))
	c.Feed(pcmBytes(4800))

	if len(sink.played) != 3 {
		t.Fatalf("Expected 3 scheduled buffers, got %d", len(sink.played))
	}

	// All scheduled while the clock stood still: each buffer starts
	// exactly when the previous ends.
	base := *now
	for i, pb := range sink.played {
		want := base.Add(time.Duration(i) * 100 * time.Millisecond)
		if !pb.start.Equal(want) {
			t.Errorf("Buffer %d: expected start %v, got %v", i, want, pb.start)
		}
	}
}

func TestScheduler_CatchesUpToClock(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s := NewScheduler(func() time.Time { return now })

	first := s.ScheduleNext(100 * time.Millisecond)
	if !first.Equal(now) {
		t.Errorf("Expected first buffer to start now, got %v", first)
	}

	// Clock jumps past the cursor; the next buffer starts at the
	// clock, not in the past.
	now = now.Add(time.Second)
	second := s.ScheduleNext(100 * time.Millisecond)
	if !second.Equal(now) {
		t.Errorf("Expected start at current time after underrun, got %v", second)
	}
}

func TestPlayer_NewStreamCancelsPrevious(t *testing.T) {
	p, sink, _ := newTestPlayer(4800)

	old := p.StartStream()
	old.Feed(wav.StreamHeader(24000, 1, 16))
	old.Feed(pcmBytes(4800))

	fresh := p.StartStream()

	if sink.discarded != 2 { // once per StartStream
		t.Errorf("Expected pending buffers discarded on each start, got %d calls", sink.discarded)
	}

	// Bytes still arriving for the abandoned stream are drained and ignored.
	before := len(sink.played)
	if err := old.Feed(pcmBytes(4800)); err != nil {
		t.Errorf("Abandoned feed should be ignored, got %v", err)
	}
	if len(sink.played) != before {
		t.Errorf("Abandoned stream scheduled playback: %d -> %d", before, len(sink.played))
	}
	if _, err := old.Finish(); err == nil {
		t.Error("Expected abandoned Finish to fail")
	}

	// The fresh stream plays normally.
	fresh.Feed(wav.StreamHeader(24000, 1, 16))
	fresh.Feed(pcmBytes(4800))
	if len(sink.played) != before+1 {
		t.Errorf("Expected fresh stream to schedule playback")
	}
}
