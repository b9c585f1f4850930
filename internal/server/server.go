// Package server wires the HTTP surface: streaming and non-streaming
// generation, download and history replay out of the result cache,
// transcription, and status endpoints. All shared state (cache, device
// locks, engine) is injected at construction; there are no
// package-level singletons.
package server

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jrtorrez31337/pyvs/internal/config"
	"github.com/jrtorrez31337/pyvs/internal/device"
	"github.com/jrtorrez31337/pyvs/internal/engine"
	"github.com/jrtorrez31337/pyvs/internal/gpu"
	"github.com/jrtorrez31337/pyvs/internal/jobcache"
	"github.com/jrtorrez31337/pyvs/internal/stream"
	"github.com/jrtorrez31337/pyvs/internal/stt"
)

// Server holds every service the handlers need.
type Server struct {
	cfg         *config.Config
	log         zerolog.Logger
	cache       *jobcache.Cache
	devices     *device.Registry
	engine      engine.Synthesizer
	encoder     *stream.Encoder
	transcriber stt.Transcriber // nil disables the STT surface
	gpu         *gpu.Reporter
	events      *Hub
}

// New constructs the server around its injected collaborators.
func New(
	cfg *config.Config,
	log zerolog.Logger,
	cache *jobcache.Cache,
	devices *device.Registry,
	synth engine.Synthesizer,
	transcriber stt.Transcriber,
	reporter *gpu.Reporter,
	events *Hub,
) *Server {
	return &Server{
		cfg:         cfg,
		log:         log,
		cache:       cache,
		devices:     devices,
		engine:      synth,
		encoder:     stream.NewEncoder(cache, cfg.NumChannels, cfg.BitsPerSample, log),
		transcriber: transcriber,
		gpu:         reporter,
		events:      events,
	}
}

// Register attaches all API routes to the mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/tts/stream", s.handleStream)
	mux.HandleFunc("POST /api/tts/generate", s.handleGenerate)
	mux.HandleFunc("GET /api/tts/download/{job_id}", s.handleDownload)
	mux.HandleFunc("GET /api/tts/speakers", s.handleSpeakers)
	mux.HandleFunc("GET /api/tts/languages", s.handleLanguages)
	mux.HandleFunc("GET /api/history/audio/{audio_id}", s.handleHistoryAudio)
	mux.HandleFunc("GET /api/system/gpu", s.handleGPUStatus)
	if s.transcriber != nil {
		mux.HandleFunc("POST /api/stt/transcribe", s.handleTranscribe)
	}
	if s.events != nil {
		mux.HandleFunc("GET /api/events", s.events.Handle)
	}
}

// writeJSON writes v with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError mirrors the JSON error shape of every endpoint.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// validJobID reports whether id is a well-formed job id (UUID string).
func validJobID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
