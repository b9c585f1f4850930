// Package gpu reads accelerator telemetry for the status surface by
// shelling out to nvidia-smi. Telemetry is best effort: machines
// without the tool report an empty device list, never an error.
package gpu

import (
	"context"
	"os/exec"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

// Status describes one accelerator device.
type Status struct {
	Index         int     `json:"index"`
	Name          string  `json:"name"`
	MemoryUsedMB  int     `json:"memory_used"`
	MemoryTotalMB int     `json:"memory_total"`
	MemoryPercent float64 `json:"memory_percent"`
	Utilization   int     `json:"utilization"`
	Temperature   int     `json:"temperature"`
	Busy          bool    `json:"busy"` // device lock currently held
}

// Reporter snapshots device telemetry.
type Reporter struct {
	log zerolog.Logger
}

// NewReporter creates a telemetry reporter.
func NewReporter(log zerolog.Logger) *Reporter {
	return &Reporter{log: log}
}

// Snapshot queries nvidia-smi for all devices. Returns an empty slice
// when the tool is missing or fails.
func (r *Reporter) Snapshot(ctx context.Context) []Status {
	cmd := exec.CommandContext(ctx, "nvidia-smi",
		"--query-gpu=index,name,memory.used,memory.total,utilization.gpu,temperature.gpu",
		"--format=csv,noheader,nounits",
	)
	out, err := cmd.Output()
	if err != nil {
		r.log.Debug().Err(err).Msg("nvidia-smi unavailable")
		return []Status{}
	}
	return parseSnapshot(string(out))
}

// parseSnapshot decodes nvidia-smi CSV output, one device per line:
// index, name, memory.used, memory.total, utilization.gpu, temperature.gpu
func parseSnapshot(out string) []Status {
	statuses := []Status{}
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		fields := strings.Split(line, ",")
		if len(fields) != 6 {
			continue
		}
		for i := range fields {
			fields[i] = strings.TrimSpace(fields[i])
		}

		index, err := strconv.Atoi(fields[0])
		if err != nil {
			continue
		}
		used, _ := strconv.Atoi(fields[2])
		total, _ := strconv.Atoi(fields[3])
		util, _ := strconv.Atoi(fields[4])
		temp, _ := strconv.Atoi(fields[5])

		percent := 0.0
		if total > 0 {
			percent = float64(used) / float64(total) * 100
			percent = float64(int(percent*10)) / 10
		}

		statuses = append(statuses, Status{
			Index:         index,
			Name:          fields[1],
			MemoryUsedMB:  used,
			MemoryTotalMB: total,
			MemoryPercent: percent,
			Utilization:   util,
			Temperature:   temp,
		})
	}
	return statuses
}
