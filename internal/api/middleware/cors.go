package middleware

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// CORSConfig controls which browser origins may call the viewer API.
type CORSConfig struct {
	AllowOrigins []string
	AllowMethods []string
	AllowHeaders []string
	// ExposeHeaders are readable by cross-origin scripts
	ExposeHeaders []string
	MaxAge        time.Duration
}

// DefaultCORSConfig lets pages on any origin drive the viewer. The API is
// read and select only and sets no cookies, so credentials stay disallowed.
// X-Request-ID is accepted from callers and exposed on responses so a
// browser client can match its calls to server log lines.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Content-Type", "Accept", "Origin", "Cache-Control", RequestIDHeader},
		ExposeHeaders: []string{RequestIDHeader, "X-Frame-Version"},
		MaxAge:        12 * time.Hour,
	}
}

// WithOrigins restricts the config to origins. An empty list keeps the
// current origins.
func (c CORSConfig) WithOrigins(origins ...string) CORSConfig {
	if len(origins) > 0 {
		c.AllowOrigins = origins
	}
	return c
}

// CORS creates a CORS middleware with the provided configuration.
func CORS(cfg CORSConfig) gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOrigins:  cfg.AllowOrigins,
		AllowMethods:  cfg.AllowMethods,
		AllowHeaders:  cfg.AllowHeaders,
		ExposeHeaders: cfg.ExposeHeaders,
		MaxAge:        cfg.MaxAge,
	})
}
