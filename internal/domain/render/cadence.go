package render

import (
	"math"
	"time"

	"gonum.org/v1/gonum/stat"
)

const cadenceWindow = 64

// Stats describes how frames have been arriving on one screen
type Stats struct {
	Frames       uint64        `json:"frames"`
	MeanInterval time.Duration `json:"mean_interval"`
	Jitter       time.Duration `json:"jitter"`
	FPS          float64       `json:"fps"`
}

// cadence keeps a ring of recent inter-frame intervals in seconds.
type cadence struct {
	last      time.Time
	intervals []float64
	next      int
	frames    uint64
}

func (c *cadence) observe(at time.Time) {
	c.frames++
	if !c.last.IsZero() {
		d := at.Sub(c.last).Seconds()
		if d < 0 {
			d = 0
		}
		if len(c.intervals) < cadenceWindow {
			c.intervals = append(c.intervals, d)
		} else {
			c.intervals[c.next] = d
			c.next = (c.next + 1) % cadenceWindow
		}
	}
	c.last = at
}

func (c *cadence) stats() Stats {
	s := Stats{Frames: c.frames}
	if len(c.intervals) == 0 {
		return s
	}

	mean, std := stat.MeanStdDev(c.intervals, nil)
	if math.IsNaN(std) {
		std = 0
	}
	s.MeanInterval = time.Duration(mean * float64(time.Second))
	s.Jitter = time.Duration(std * float64(time.Second))
	if mean > 0 {
		s.FPS = 1 / mean
	}
	return s
}
