package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jrtorrez31337/pyvs/internal/engine"
	"github.com/jrtorrez31337/pyvs/internal/observability"
	"github.com/jrtorrez31337/pyvs/internal/wav"
)

// speakers and languages the synthesis engine ships with. Served
// statically so clients can populate pickers without touching the
// engine.
var (
	speakerList = []string{
		"Vivian", "Serena", "Uncle_Fu", "Dylan", "Eric",
		"Ryan", "Aiden", "Ono_Anna", "Sohee",
	}
	languageList = []string{
		"Chinese", "English", "Japanese", "Korean", "German",
		"French", "Russian", "Portuguese", "Spanish", "Italian", "Auto",
	}
)

type generateRequest struct {
	Text     string `json:"text"`
	Language string `json:"language"`
	Speaker  string `json:"speaker"`
	Instruct string `json:"instruct"`
	Device   int    `json:"device"`
}

// parseGenerateRequest decodes and validates the shared request body of
// the stream and generate endpoints. A non-nil error message means the
// request was rejected and the response already written.
func (s *Server) parseGenerateRequest(w http.ResponseWriter, r *http.Request) (generateRequest, bool) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return req, false
	}
	req.Text = strings.TrimSpace(req.Text)
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return req, false
	}
	if len(req.Text) > s.cfg.MaxTextLength {
		writeError(w, http.StatusBadRequest,
			fmt.Sprintf("text exceeds maximum length of %d characters", s.cfg.MaxTextLength))
		return req, false
	}
	if len(req.Instruct) > s.cfg.MaxInstructLength {
		writeError(w, http.StatusBadRequest,
			fmt.Sprintf("instruct exceeds maximum length of %d characters", s.cfg.MaxInstructLength))
		return req, false
	}
	if req.Device < 0 || req.Device >= s.devices.Count() {
		writeError(w, http.StatusBadRequest,
			fmt.Sprintf("device must be between 0 and %d", s.devices.Count()-1))
		return req, false
	}
	return req, true
}

// handleStream runs a synthesis job and streams the result as an
// open-ended WAV, terminated by an in-band marker. The response status
// is committed with the header bytes, so failures after the first chunk
// surface only through the error marker.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	req, ok := s.parseGenerateRequest(w, r)
	if !ok {
		return
	}

	log := s.log.With().Str("endpoint", "stream").Int("device", req.Device).Logger()

	handle, err := s.devices.Acquire(req.Device)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	defer handle.Release()

	start := time.Now()
	observability.RecordGenerationStart()
	s.publishEvent(Event{Type: "job_started", Device: req.Device})

	chunks, errs := s.engine.Synthesize(r.Context(), engine.Request{
		Text:     req.Text,
		Language: req.Language,
		Speaker:  req.Speaker,
		Instruct: req.Instruct,
	})

	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Cache-Control", "no-cache")

	jobID, err := s.encoder.Stream(w, chunks, errs)
	success := err == nil
	observability.RecordGenerationEnd("stream", start, success)
	if !success {
		log.Error().Err(err).Msg("streaming generation failed")
		observability.RecordError("generation", "stream")
		s.publishEvent(Event{Type: "job_failed", Device: req.Device, Error: err.Error()})
		return
	}
	if jobID == "" {
		// Zero chunks: nothing was written, nothing was cached, and
		// there is no completed job to announce.
		log.Warn().Msg("engine produced no audio")
		s.publishEvent(Event{Type: "job_failed", Device: req.Device, Error: "engine produced no audio"})
		return
	}
	log.Info().Str("job_id", jobID).Dur("duration", time.Since(start)).Msg("streaming generation complete")
	s.publishEvent(Event{
		Type:       "job_completed",
		JobID:      jobID,
		Device:     req.Device,
		DurationMs: time.Since(start).Milliseconds(),
	})
}

// handleGenerate runs a synthesis job to completion and returns the
// whole WAV file in one response. The job id travels in the X-Job-Id
// header rather than in-band.
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	req, ok := s.parseGenerateRequest(w, r)
	if !ok {
		return
	}

	log := s.log.With().Str("endpoint", "generate").Int("device", req.Device).Logger()

	handle, err := s.devices.Acquire(req.Device)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	defer handle.Release()

	start := time.Now()
	observability.RecordGenerationStart()
	s.publishEvent(Event{Type: "job_started", Device: req.Device})

	chunks, errs := s.engine.Synthesize(r.Context(), engine.Request{
		Text:     req.Text,
		Language: req.Language,
		Speaker:  req.Speaker,
		Instruct: req.Instruct,
	})

	// Drain the chunk channel completely before consulting errs: the
	// engine buffers its error and closes both channels, so reading
	// errs concurrently can miss a failure.
	var samples []int16
	sampleRate := s.cfg.SampleRate
	for chunk := range chunks {
		sampleRate = chunk.SampleRate
		samples = append(samples, wav.FloatToPCM(chunk.Samples)...)
	}
	genErr := <-errs
	observability.RecordGenerationEnd("generate", start, genErr == nil)
	if genErr != nil {
		log.Error().Err(genErr).Msg("generation failed")
		observability.RecordError("generation", "generate")
		s.publishEvent(Event{Type: "job_failed", Device: req.Device, Error: genErr.Error()})
		writeError(w, http.StatusInternalServerError, genErr.Error())
		return
	}
	if len(samples) == 0 {
		s.publishEvent(Event{Type: "job_failed", Device: req.Device, Error: "engine produced no audio"})
		writeError(w, http.StatusInternalServerError, "engine produced no audio")
		return
	}

	jobID := uuid.NewString()
	s.cache.Put(jobID, samples, sampleRate)

	body := wav.Encode(samples, sampleRate)
	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Content-Disposition", `inline; filename="generated.wav"`)
	w.Header().Set("X-Job-Id", jobID)
	w.Header().Set("Content-Length", fmt.Sprintf("%d", len(body)))
	w.Write(body)

	log.Info().Str("job_id", jobID).Dur("duration", time.Since(start)).Msg("generation complete")
	s.publishEvent(Event{
		Type:       "job_completed",
		JobID:      jobID,
		Device:     req.Device,
		DurationMs: time.Since(start).Milliseconds(),
	})
}

// handleDownload serves a cached result as a WAV attachment.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("job_id")
	if !validJobID(jobID) {
		writeError(w, http.StatusBadRequest, "invalid job id")
		return
	}
	samples, sampleRate, err := s.cache.Get(jobID)
	if err != nil {
		writeError(w, http.StatusNotFound, "job not found or expired")
		return
	}
	body := wav.Encode(samples, sampleRate)
	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="generated_%s.wav"`, jobID[:8]))
	w.Header().Set("Content-Length", fmt.Sprintf("%d", len(body)))
	w.Write(body)
}

// handleHistoryAudio replays a cached result inline for history
// playback. Same lookup as download, different disposition.
func (s *Server) handleHistoryAudio(w http.ResponseWriter, r *http.Request) {
	audioID := r.PathValue("audio_id")
	if !validJobID(audioID) {
		writeError(w, http.StatusBadRequest, "invalid audio id")
		return
	}
	samples, sampleRate, err := s.cache.Get(audioID)
	if err != nil {
		writeError(w, http.StatusNotFound, "audio not found or expired")
		return
	}
	body := wav.Encode(samples, sampleRate)
	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Content-Length", fmt.Sprintf("%d", len(body)))
	w.Write(body)
}

func (s *Server) handleSpeakers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"speakers": speakerList})
}

func (s *Server) handleLanguages(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"languages": languageList})
}

func (s *Server) publishEvent(ev Event) {
	if s.events != nil {
		s.events.Publish(ev)
	}
}
