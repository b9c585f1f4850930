package server

import (
	"io"
	"net/http"
	"time"

	"github.com/jrtorrez31337/pyvs/internal/observability"
	"github.com/jrtorrez31337/pyvs/internal/wav"
)

// maxUploadBytes caps transcription uploads at 25 MiB.
const maxUploadBytes = 25 << 20

// handleTranscribe accepts a WAV upload in the multipart "audio" field
// and returns the transcript.
func (s *Server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, _, err := r.FormFile("audio")
	if err != nil {
		writeError(w, http.StatusBadRequest, "no audio file provided")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read audio file")
		return
	}
	sampleRate, err := wav.ParseHeader(data)
	if err != nil {
		writeError(w, http.StatusBadRequest, "unsupported audio format, expected WAV")
		return
	}
	pcm := data[wav.HeaderSize:]
	if len(pcm) == 0 {
		writeError(w, http.StatusBadRequest, "audio file contains no samples")
		return
	}

	start := time.Now()
	result, err := s.transcriber.Transcribe(r.Context(), pcm, sampleRate)
	observability.RecordSTTRequest(err == nil)
	if err != nil {
		s.log.Error().Err(err).Msg("transcription failed")
		observability.RecordError("transcription", "stt")
		writeError(w, http.StatusInternalServerError, "transcription failed")
		return
	}
	s.log.Info().Dur("duration", time.Since(start)).Int("bytes", len(pcm)).Msg("transcription complete")
	writeJSON(w, http.StatusOK, map[string]any{
		"text":       result.Text,
		"confidence": result.Confidence,
	})
}
