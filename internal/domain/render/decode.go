package render

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"

	"github.com/gabriel-vasile/mimetype"
	"github.com/klauspost/compress/zlib"
	"golang.org/x/image/bmp"
	"golang.org/x/image/webp"
)

// ErrDecode marks a malformed frame. The frame is dropped; the connection
// that delivered it keeps going.
var ErrDecode = errors.New("frame decode failed")

// Decode failure reasons
const (
	ReasonFormat  = "format"
	ReasonZlib    = "zlib"
	ReasonSize    = "size"
	ReasonCorrupt = "corrupt"
)

// DecodeError describes why a frame was dropped. It matches ErrDecode.
type DecodeError struct {
	Reason string
	Format string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Format != "" {
		return fmt.Sprintf("%s (%s, %s): %v", ErrDecode, e.Reason, e.Format, e.Err)
	}
	return fmt.Sprintf("%s (%s): %v", ErrDecode, e.Reason, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

func (e *DecodeError) Is(target error) bool { return target == ErrDecode }

type codec struct {
	decode       func(io.Reader) (image.Image, error)
	decodeConfig func(io.Reader) (image.Config, error)
}

var codecs = map[string]codec{
	"image/png":  {png.Decode, png.DecodeConfig},
	"image/jpeg": {jpeg.Decode, jpeg.DecodeConfig},
	"image/gif":  {gif.Decode, gif.DecodeConfig},
	"image/webp": {webp.Decode, webp.DecodeConfig},
	"image/bmp":  {bmp.Decode, bmp.DecodeConfig},
}

// isZlib reports whether data starts with a zlib stream header.
func isZlib(data []byte) bool {
	if len(data) < 2 || data[0]&0x0f != 8 {
		return false
	}
	return (uint16(data[0])<<8|uint16(data[1]))%31 == 0
}

// unwrap inflates zlib-wrapped payloads, bounded by limit bytes.
func unwrap(data []byte, limit int64) ([]byte, error) {
	if !isZlib(data) {
		return data, nil
	}
	zr, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, &DecodeError{Reason: ReasonZlib, Err: err}
	}
	defer zr.Close()

	out, err := io.ReadAll(io.LimitReader(zr, limit+1))
	if err != nil {
		return nil, &DecodeError{Reason: ReasonZlib, Err: err}
	}
	if int64(len(out)) > limit {
		return nil, &DecodeError{Reason: ReasonSize, Err: fmt.Errorf("inflated frame exceeds %d bytes", limit)}
	}
	return out, nil
}

// decodeFrame sniffs and decodes payload into a transient image.
func decodeFrame(payload []byte, maxPixels int) (image.Image, string, error) {
	fail := func(reason, format string, err error) (image.Image, string, error) {
		return nil, format, &DecodeError{Reason: reason, Format: format, Err: err}
	}

	mtype := mimetype.Detect(payload)
	var c codec
	var ok bool
	// Walk up so subtypes such as APNG use their parent's decoder.
	for m := mtype; m != nil && !ok; m = m.Parent() {
		c, ok = codecs[m.String()]
	}
	if !ok {
		return fail(ReasonFormat, mtype.String(), errors.New("unsupported content"))
	}

	cfg, err := c.decodeConfig(bytes.NewReader(payload))
	if err != nil {
		return fail(ReasonCorrupt, mtype.String(), err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return fail(ReasonSize, mtype.String(), fmt.Errorf("empty %dx%d image", cfg.Width, cfg.Height))
	}
	if maxPixels > 0 && cfg.Width*cfg.Height > maxPixels {
		return fail(ReasonSize, mtype.String(), fmt.Errorf("%dx%d exceeds pixel limit", cfg.Width, cfg.Height))
	}

	img, err := c.decode(bytes.NewReader(payload))
	if err != nil {
		return fail(ReasonCorrupt, mtype.String(), err)
	}
	return img, mtype.String(), nil
}
