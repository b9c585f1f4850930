package server

import (
	"net/http"
)

// handleGPUStatus reports per-device utilization merged with the lock
// registry's busy flags. Devices beyond the snapshot (or a missing
// nvidia-smi) still report their busy state.
func (s *Server) handleGPUStatus(w http.ResponseWriter, r *http.Request) {
	statuses := s.gpu.Snapshot(r.Context())
	for i := range statuses {
		if statuses[i].Index < s.devices.Count() {
			statuses[i].Busy = s.devices.Busy(statuses[i].Index)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"devices":      statuses,
		"device_count": s.devices.Count(),
	})
}
