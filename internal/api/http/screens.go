package http

import (
	"net/http"
	"strconv"

	"github.com/GriffinCanCode/monview/internal/domain/render"
	"github.com/gin-gonic/gin"
)

const (
	defaultThumbnailWidth = 320
	minThumbnailWidth     = 16
	maxThumbnailWidth     = 3840
)

func screenParam(c *gin.Context) (int, bool) {
	screen, err := strconv.Atoi(c.Param("index"))
	if err != nil || screen < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid screen index"})
		return 0, false
	}
	return screen, true
}

func writeImage(c *gin.Context, data []byte, meta render.Meta) {
	c.Header("Cache-Control", "no-store")
	c.Header("X-Frame-Version", strconv.FormatUint(meta.Version, 10))
	c.Header("X-Frame-Width", strconv.Itoa(meta.Width))
	c.Header("X-Frame-Height", strconv.Itoa(meta.Height))
	c.Data(http.StatusOK, "image/png", data)
}

// Frame serves the current surface of a screen as PNG
func (h *Handlers) Frame(c *gin.Context) {
	screen, ok := screenParam(c)
	if !ok {
		return
	}

	data, meta, err := h.sessions.Renderer().EncodePNG(screen)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	writeImage(c, data, meta)
}

// Thumbnail serves a scaled-down surface of a screen as PNG
func (h *Handlers) Thumbnail(c *gin.Context) {
	screen, ok := screenParam(c)
	if !ok {
		return
	}

	width := defaultThumbnailWidth
	if raw := c.Query("width"); raw != "" {
		w, err := strconv.Atoi(raw)
		if err != nil || w < minThumbnailWidth || w > maxThumbnailWidth {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid thumbnail width"})
			return
		}
		width = w
	}

	data, meta, err := h.sessions.Renderer().Thumbnail(screen, width)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	writeImage(c, data, meta)
}
