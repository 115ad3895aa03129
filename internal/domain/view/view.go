package view

import (
	"fmt"

	"github.com/GriffinCanCode/monview/internal/domain/render"
	"github.com/GriffinCanCode/monview/internal/shared/types"
)

// Input is everything a view is derived from
type Input struct {
	Monitors types.MonitorList
	Session  types.SessionInfo
	// TileFloor and TileCeiling clamp screen tile widths (percent)
	TileFloor   float64
	TileCeiling float64
}

// Entry is one selectable monitor
type Entry struct {
	Address  string `json:"address"`
	Label    string `json:"label"`
	Screens  int    `json:"screens"`
	Selected bool   `json:"selected"`
}

// Header describes the active session banner
type Header struct {
	Title    string `json:"title"`
	ShowStop bool   `json:"show_stop"`
}

// Screen is one rendered surface of the active session
type Screen struct {
	Index        int             `json:"index"`
	State        types.ConnState `json:"state"`
	LastError    string          `json:"last_error,omitempty"`
	Width        int             `json:"width"`
	Height       int             `json:"height"`
	Version      uint64          `json:"version"`
	FPS          float64         `json:"fps"`
	TileWidth    float64         `json:"tile_width"`
	FrameURL     string          `json:"frame_url,omitempty"`
	ThumbnailURL string          `json:"thumbnail_url,omitempty"`
}

// View is the complete derived display tree
type View struct {
	Mode      string   `json:"mode"`
	SessionID string   `json:"session_id,omitempty"`
	Entries   []Entry  `json:"entries"`
	Header    *Header  `json:"header,omitempty"`
	Screens   []Screen `json:"screens"`
}

// Compose derives a View from in
func Compose(in Input) View {
	floor, ceiling := in.TileFloor, in.TileCeiling
	if floor == 0 && ceiling == 0 {
		floor, ceiling = render.DefaultTileFloor, render.DefaultTileCeiling
	}

	selected := in.Session.Selection.Address()
	v := View{
		Mode:      in.Session.Mode,
		SessionID: in.Session.ID,
		Entries:   make([]Entry, 0, len(in.Monitors)),
		Screens:   make([]Screen, 0, len(in.Session.Screens)),
	}

	for _, m := range in.Monitors {
		v.Entries = append(v.Entries, Entry{
			Address:  m.Address,
			Label:    m.Label(),
			Screens:  m.Screens(),
			Selected: m.Address == selected,
		})
	}

	if in.Session.Selection.IsNone() {
		return v
	}

	monitor := in.Session.Selection.Monitor
	v.Header = &Header{
		Title:    HeaderTitle(*monitor),
		ShowStop: true,
	}

	// Tiles share the page among the screens actually acquired.
	tile := render.TileWidthPercent(len(in.Session.Screens), floor, ceiling)
	for _, s := range in.Session.Screens {
		screen := Screen{
			Index:     s.Index,
			State:     s.State,
			LastError: s.LastError,
			Width:     s.Width,
			Height:    s.Height,
			Version:   s.Version,
			FPS:       s.FPS,
			TileWidth: tile,
		}
		// Only painted surfaces have an image to link.
		if s.Version > 0 {
			screen.FrameURL = FrameURL(s.Index, s.Version)
			screen.ThumbnailURL = fmt.Sprintf("/api/screens/%d/thumbnail?v=%d", s.Index, s.Version)
		}
		v.Screens = append(v.Screens, screen)
	}
	return v
}

// HeaderTitle is the banner text for an active session
func HeaderTitle(m types.MonitorDescriptor) string {
	return fmt.Sprintf("Active Monitor (%s)", m.User)
}

// FrameURL addresses a screen's surface; version busts browser caches.
func FrameURL(screen int, version uint64) string {
	return fmt.Sprintf("/api/screens/%d/frame?v=%d", screen, version)
}
