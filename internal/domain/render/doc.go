// Package render paints decoded frames onto persistent per-screen surfaces.
//
// Render takes the raw bytes of one frame and:
//  1. inflates zlib-wrapped payloads
//  2. sniffs the MIME type (png, jpeg, gif, webp, bmp)
//  3. decodes into a transient image
//  4. reallocates the screen's surface when the frame size changed
//  5. copies the pixels and drops the decoded image
//
// Each screen is rendered from one goroutine, so at most one decoded frame
// per screen is alive at a time. LiveHandles and PeakHandles expose the
// count across all screens.
//
// Malformed frames return an error matching ErrDecode and leave the surface
// as it was.
package render
