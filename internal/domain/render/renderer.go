package render

import (
	"errors"
	"image"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/GriffinCanCode/monview/internal/infrastructure/monitoring"
	"go.uber.org/zap"
	"golang.org/x/image/draw"
)

// ErrClosed is returned by Render after Close.
var ErrClosed = errors.New("renderer closed")

// Meta describes the current contents of a screen surface
type Meta struct {
	Screen    int       `json:"screen"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	Format    string    `json:"format"`
	Version   uint64    `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Config bounds what the renderer accepts
type Config struct {
	// MaxPixels rejects frames larger than this many pixels
	MaxPixels int
	// MaxInflatedBytes bounds zlib-wrapped payloads after inflation
	MaxInflatedBytes int64
}

// DefaultConfig allows up to 8K frames
func DefaultConfig() Config {
	return Config{
		MaxPixels:        7680 * 4320,
		MaxInflatedBytes: 128 << 20,
	}
}

// surface is the persistent display buffer for one screen.
type surface struct {
	img     *image.RGBA
	meta    Meta
	cadence cadence
	resizes int
}

// Renderer decodes frames and paints them onto one surface per screen
type Renderer struct {
	cfg     Config
	log     *zap.Logger
	metrics *monitoring.Metrics
	now     func() time.Time

	mu       sync.RWMutex
	surfaces map[int]*surface // Protected by mu
	closed   bool             // Protected by mu

	live atomic.Int32
	peak atomic.Int32
}

// New creates a renderer
func New(cfg Config, log *zap.Logger) *Renderer {
	defaults := DefaultConfig()
	if cfg.MaxPixels <= 0 {
		cfg.MaxPixels = defaults.MaxPixels
	}
	if cfg.MaxInflatedBytes <= 0 {
		cfg.MaxInflatedBytes = defaults.MaxInflatedBytes
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Renderer{
		cfg:      cfg,
		log:      log,
		now:      time.Now,
		surfaces: make(map[int]*surface),
	}
}

// WithMetrics adds metrics tracking to the renderer
func (r *Renderer) WithMetrics(metrics *monitoring.Metrics) *Renderer {
	r.metrics = metrics
	return r
}

// Render decodes frame and paints it onto the screen's surface, resizing
// the surface first when the frame's native size differs. Malformed frames
// return ErrDecode and leave the surface untouched.
func (r *Renderer) Render(screen int, frame []byte) error {
	start := r.now()

	r.mu.RLock()
	closed := r.closed
	r.mu.RUnlock()
	if closed {
		return ErrClosed
	}

	meta, err := r.paint(screen, frame)
	if err != nil {
		if errors.Is(err, ErrDecode) {
			r.metrics.RecordDecodeError(decodeReason(err))
			r.log.Debug("Dropping undecodable frame",
				zap.Int("screen", screen),
				zap.Int("bytes", len(frame)),
				zap.Error(err))
		}
		return err
	}

	r.metrics.RecordFrameRendered(r.now().Sub(start))
	if meta.Version == 1 {
		r.log.Debug("First frame painted",
			zap.Int("screen", screen),
			zap.Int("width", meta.Width),
			zap.Int("height", meta.Height))
	}
	return nil
}

// paint holds the decode handle for exactly the duration of one frame.
func (r *Renderer) paint(screen int, frame []byte) (Meta, error) {
	payload, err := unwrap(frame, r.cfg.MaxInflatedBytes)
	if err != nil {
		return Meta{}, err
	}

	r.acquireHandle()
	defer r.releaseHandle()

	img, format, err := decodeFrame(payload, r.cfg.MaxPixels)
	if err != nil {
		return Meta{}, err
	}
	bounds := img.Bounds()

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return Meta{}, ErrClosed
	}

	s, ok := r.surfaces[screen]
	if !ok {
		s = &surface{meta: Meta{Screen: screen}}
		r.surfaces[screen] = s
	}
	if s.img == nil || s.img.Rect.Dx() != bounds.Dx() || s.img.Rect.Dy() != bounds.Dy() {
		s.img = image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
		s.resizes++
	}
	draw.Copy(s.img, image.Point{}, img, bounds, draw.Src, nil)

	now := r.now()
	s.meta.Width = bounds.Dx()
	s.meta.Height = bounds.Dy()
	s.meta.Format = format
	s.meta.Version++
	s.meta.UpdatedAt = now
	s.cadence.observe(now)
	return s.meta, nil
}

func (r *Renderer) acquireHandle() {
	n := r.live.Add(1)
	for {
		p := r.peak.Load()
		if n <= p || r.peak.CompareAndSwap(p, n) {
			return
		}
	}
}

func (r *Renderer) releaseHandle() {
	r.live.Add(-1)
}

// LiveHandles is the number of decoded frames currently held
func (r *Renderer) LiveHandles() int {
	return int(r.live.Load())
}

// PeakHandles is the highest LiveHandles has been
func (r *Renderer) PeakHandles() int {
	return int(r.peak.Load())
}

// Meta returns the current metadata for screen
func (r *Renderer) Meta(screen int) (Meta, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.surfaces[screen]
	if !ok {
		return Meta{}, false
	}
	return s.meta, true
}

// Stats returns frame cadence statistics for screen
func (r *Renderer) Stats(screen int) (Stats, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.surfaces[screen]
	if !ok {
		return Stats{}, false
	}
	return s.cadence.stats(), true
}

// Resizes returns how many times screen's surface has been reallocated
func (r *Renderer) Resizes(screen int) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if s, ok := r.surfaces[screen]; ok {
		return s.resizes
	}
	return 0
}

// Screens lists screens that have a surface, in order
func (r *Renderer) Screens() []int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	screens := make([]int, 0, len(r.surfaces))
	for screen := range r.surfaces {
		screens = append(screens, screen)
	}
	sort.Ints(screens)
	return screens
}

// Reset drops every surface
func (r *Renderer) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.surfaces = make(map[int]*surface)
}

// Close drops every surface and makes further renders fail with ErrClosed
func (r *Renderer) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	r.surfaces = make(map[int]*surface)
}

func decodeReason(err error) string {
	var de *DecodeError
	if errors.As(err, &de) {
		return de.Reason
	}
	return ReasonCorrupt
}
