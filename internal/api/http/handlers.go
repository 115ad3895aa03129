package http

import (
	"net/http"
	"time"

	"github.com/GriffinCanCode/monview/internal/domain/registry"
	"github.com/GriffinCanCode/monview/internal/domain/render"
	"github.com/GriffinCanCode/monview/internal/domain/session"
	"github.com/GriffinCanCode/monview/internal/domain/view"
	"github.com/GriffinCanCode/monview/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/monview/internal/shared/types"
	"github.com/GriffinCanCode/monview/internal/shared/utils"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Version is reported by the health endpoint
const Version = "0.3.0"

// Handlers contains all HTTP handlers
type Handlers struct {
	registry *registry.Manager
	sessions *session.Manager
	metrics  *monitoring.Metrics
	page     *Page
	log      *zap.Logger

	tileFloor    float64
	tileCeiling  float64
	backendState func() string
	startedAt    time.Time
}

// NewHandlers creates a new handler set
func NewHandlers(registry *registry.Manager, sessions *session.Manager, log *zap.Logger) *Handlers {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handlers{
		registry:    registry,
		sessions:    sessions,
		page:        NewPage(),
		log:         log,
		tileFloor:   render.DefaultTileFloor,
		tileCeiling: render.DefaultTileCeiling,
		startedAt:   time.Now(),
	}
}

// WithMetrics adds metrics to the stats endpoint
func (h *Handlers) WithMetrics(metrics *monitoring.Metrics) *Handlers {
	h.metrics = metrics
	return h
}

// WithTileClamp sets the screen tile width clamp, in percent
func (h *Handlers) WithTileClamp(floor, ceiling float64) *Handlers {
	h.tileFloor = floor
	h.tileCeiling = ceiling
	return h
}

// WithBackendState reports the backend client's breaker state in health checks
func (h *Handlers) WithBackendState(fn func() string) *Handlers {
	h.backendState = fn
	return h
}

// CurrentView composes the view from current registry and session state
func (h *Handlers) CurrentView() view.View {
	return view.Compose(view.Input{
		Monitors:    h.registry.Snapshot(),
		Session:     h.sessions.Info(),
		TileFloor:   h.tileFloor,
		TileCeiling: h.tileCeiling,
	})
}

// Root serves the viewer page
func (h *Handlers) Root(c *gin.Context) {
	body, err := h.page.Render(h.CurrentView())
	if err != nil {
		h.log.Error("Failed to render page", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to render page"})
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", body)
}

// Health handles detailed health check
func (h *Handlers) Health(c *gin.Context) {
	status := h.registry.Status()
	backend := gin.H{"registry": status}
	if h.backendState != nil {
		backend["breaker"] = h.backendState()
	}

	c.JSON(http.StatusOK, gin.H{
		"status":         "healthy",
		"service":        "monview",
		"version":        Version,
		"mode":           h.sessions.Mode(),
		"selection":      h.sessions.Selection().Address(),
		"backend":        backend,
		"uptime_seconds": time.Since(h.startedAt).Seconds(),
	})
}

// View returns the composed view
func (h *Handlers) View(c *gin.Context) {
	c.JSON(http.StatusOK, h.CurrentView())
}

// ListMonitors returns the latest monitor list snapshot
func (h *Handlers) ListMonitors(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"monitors": h.registry.Snapshot(),
		"status":   h.registry.Status(),
	})
}

// RefreshMonitors fetches the monitor list now
func (h *Handlers) RefreshMonitors(c *gin.Context) {
	monitors, err := h.registry.Refresh(c.Request.Context())
	if err != nil {
		// The previous list is still served.
		c.JSON(statusFor(err), gin.H{
			"error":    err.Error(),
			"monitors": monitors,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"monitors": monitors,
		"status":   h.registry.Status(),
	})
}

// GetSelection returns the selection and live session summary
func (h *Handlers) GetSelection(c *gin.Context) {
	c.JSON(http.StatusOK, h.sessions.Info())
}

// Select changes the selected monitor
func (h *Handlers) Select(c *gin.Context) {
	var req types.SelectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "address is required"})
		return
	}
	if err := utils.ValidateAddress(req.Address); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if _, err := h.sessions.Select(c.Request.Context(), req.Address); err != nil {
		h.log.Warn("Selection failed", zap.String("address", req.Address), zap.Error(err))
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, h.CurrentView())
}

// ClearSelection stops viewing
func (h *Handlers) ClearSelection(c *gin.Context) {
	h.sessions.Clear()
	c.JSON(http.StatusOK, h.CurrentView())
}
