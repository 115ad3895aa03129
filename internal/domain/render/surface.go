package render

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"

	"golang.org/x/image/draw"
)

// ErrNoFrame means the screen has not painted anything yet.
var ErrNoFrame = errors.New("no frame for screen")

// Snapshot returns a copy of the screen's surface
func (r *Renderer) Snapshot(screen int) (*image.RGBA, Meta, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.surfaces[screen]
	if !ok || s.img == nil {
		return nil, Meta{}, false
	}
	out := image.NewRGBA(s.img.Rect)
	copy(out.Pix, s.img.Pix)
	return out, s.meta, true
}

// EncodePNG encodes the screen's surface as PNG
func (r *Renderer) EncodePNG(screen int) ([]byte, Meta, error) {
	img, meta, ok := r.Snapshot(screen)
	if !ok {
		return nil, Meta{}, fmt.Errorf("screen %d: %w", screen, ErrNoFrame)
	}

	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, Meta{}, fmt.Errorf("encode screen %d: %w", screen, err)
	}
	return buf.Bytes(), meta, nil
}

// Thumbnail scales the screen's surface to width pixels, keeping the
// aspect ratio, and encodes it as PNG. Widths larger than the surface
// return it unscaled.
func (r *Renderer) Thumbnail(screen int, width int) ([]byte, Meta, error) {
	if width <= 0 {
		return nil, Meta{}, fmt.Errorf("invalid thumbnail width %d", width)
	}
	src, meta, ok := r.Snapshot(screen)
	if !ok {
		return nil, Meta{}, fmt.Errorf("screen %d: %w", screen, ErrNoFrame)
	}

	var out image.Image = src
	if width < src.Rect.Dx() {
		height := src.Rect.Dy() * width / src.Rect.Dx()
		if height < 1 {
			height = 1
		}
		dst := image.NewRGBA(image.Rect(0, 0, width, height))
		draw.ApproxBiLinear.Scale(dst, dst.Rect, src, src.Rect, draw.Src, nil)
		out = dst
	}

	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := enc.Encode(&buf, out); err != nil {
		return nil, Meta{}, fmt.Errorf("encode thumbnail %d: %w", screen, err)
	}
	return buf.Bytes(), meta, nil
}
