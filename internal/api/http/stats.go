package http

import (
	"net/http"
	"time"

	"github.com/GriffinCanCode/monview/internal/domain/registry"
	"github.com/GriffinCanCode/monview/internal/domain/render"
	"github.com/GriffinCanCode/monview/internal/infrastructure/monitoring"
	"github.com/gin-gonic/gin"
)

// StatsSnapshot aggregates viewer statistics
type StatsSnapshot struct {
	Timestamp time.Time           `json:"timestamp"`
	Metrics   monitoring.Snapshot `json:"metrics"`
	Registry  registry.Status     `json:"registry"`
	Render    RenderStats         `json:"render"`
	Summary   StatsSummary        `json:"summary"`
}

// RenderStats describes renderer resource usage and frame cadence
type RenderStats struct {
	LiveHandles int           `json:"live_handles"`
	PeakHandles int           `json:"peak_handles"`
	Screens     []ScreenStats `json:"screens"`
}

// ScreenStats is the cadence of one screen
type ScreenStats struct {
	Screen int `json:"screen"`
	render.Stats
	Resizes int `json:"resizes"`
}

// StatsSummary provides high-level ratios
type StatsSummary struct {
	ErrorRate     float64 `json:"error_rate"`
	DropRate      float64 `json:"drop_rate"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

// Stats returns aggregated viewer statistics
func (h *Handlers) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, h.collectStats())
}

func (h *Handlers) collectStats() StatsSnapshot {
	renderer := h.sessions.Renderer()
	snapshot := StatsSnapshot{
		Timestamp: time.Now(),
		Registry:  h.registry.Status(),
		Render: RenderStats{
			LiveHandles: renderer.LiveHandles(),
			PeakHandles: renderer.PeakHandles(),
			Screens:     []ScreenStats{},
		},
	}
	if h.metrics != nil {
		snapshot.Metrics = h.metrics.Snapshot()
	}

	for _, screen := range renderer.Screens() {
		stats, ok := renderer.Stats(screen)
		if !ok {
			continue
		}
		snapshot.Render.Screens = append(snapshot.Render.Screens, ScreenStats{
			Screen:  screen,
			Stats:   stats,
			Resizes: renderer.Resizes(screen),
		})
	}

	m := snapshot.Metrics
	if m.TotalRequests > 0 {
		snapshot.Summary.ErrorRate = float64(m.TotalErrors) / float64(m.TotalRequests)
	}
	if m.FramesReceived > 0 {
		snapshot.Summary.DropRate = float64(m.FramesDropped+m.DecodeErrors) / float64(m.FramesReceived)
	}
	snapshot.Summary.UptimeSeconds = time.Since(h.startedAt).Seconds()
	return snapshot
}
