package render

// Default still-image tile clamp, in percent of the page width.
const (
	DefaultTileFloor   = 20.0
	DefaultTileCeiling = 90.0
)

// TileWidthPercent is the width of one screen tile when screenCount
// screens are shown side by side, clamped to [floor, ceiling].
func TileWidthPercent(screenCount int, floor, ceiling float64) float64 {
	if screenCount < 1 {
		screenCount = 1
	}
	if floor > ceiling {
		floor, ceiling = ceiling, floor
	}

	width := 100 / float64(screenCount)
	if width > ceiling {
		return ceiling
	}
	if width < floor {
		return floor
	}
	return width
}
