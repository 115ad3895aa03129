package http

import "github.com/gin-gonic/gin"

// Register mounts every handler on r
func (h *Handlers) Register(r gin.IRouter) {
	r.GET("/", h.Root)
	r.GET("/health", h.Health)

	api := r.Group("/api")
	api.GET("/monitors", h.ListMonitors)
	api.POST("/monitors/refresh", h.RefreshMonitors)
	api.GET("/selection", h.GetSelection)
	api.PUT("/selection", h.Select)
	api.DELETE("/selection", h.ClearSelection)
	api.GET("/view", h.View)
	api.GET("/screens/:index/frame", h.Frame)
	api.GET("/screens/:index/thumbnail", h.Thumbnail)
	api.GET("/stats", h.Stats)
}
