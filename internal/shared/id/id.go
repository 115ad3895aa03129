// Package id generates sortable, prefixed identifiers for live sessions,
// acquisitions and browser viewers.
//
// IDs are ULIDs so log lines for consecutive sessions sort by start time,
// and the prefix tells you at a glance what kind of resource a log field
// refers to (live_*, acq_*, viewer_*).
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// SessionID identifies one live-view session (one selection lifetime).
type SessionID string

// AcquisitionID identifies one frame acquisition (one connection set).
type AcquisitionID string

// ViewerID identifies one browser attached to the view stream.
type ViewerID string

const (
	SessionPrefix     = "live"
	AcquisitionPrefix = "acq"
	ViewerPrefix      = "viewer"
)

// Generator produces ULIDs from a single entropy source.
type Generator struct {
	mu      sync.Mutex
	entropy io.Reader
	now     func() time.Time
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the process-wide generator.
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a generator backed by crypto/rand.
func NewGenerator() *Generator {
	return NewGeneratorWithEntropy(rand.Reader)
}

// NewGeneratorWithEntropy creates a generator with a custom entropy source.
// Tests pass a deterministic reader.
func NewGeneratorWithEntropy(entropy io.Reader) *Generator {
	return &Generator{entropy: entropy, now: time.Now}
}

// Generate creates a new ULID.
func (g *Generator) Generate() ulid.ULID {
	g.mu.Lock()
	defer g.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(g.now()), g.entropy)
}

// WithPrefix creates a "prefix_ULID" string.
func (g *Generator) WithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.Generate().String())
}

// NewSessionID generates a live session ID.
func NewSessionID() SessionID {
	return SessionID(Default().WithPrefix(SessionPrefix))
}

// NewAcquisitionID generates an acquisition ID.
func NewAcquisitionID() AcquisitionID {
	return AcquisitionID(Default().WithPrefix(AcquisitionPrefix))
}

// NewViewerID generates a viewer ID.
func NewViewerID() ViewerID {
	return ViewerID(Default().WithPrefix(ViewerPrefix))
}

func (id SessionID) String() string     { return string(id) }
func (id AcquisitionID) String() string { return string(id) }
func (id ViewerID) String() string      { return string(id) }

// Timestamp extracts the creation time from a prefixed or bare ID.
func Timestamp(s string) (time.Time, error) {
	if i := strings.LastIndexByte(s, '_'); i >= 0 {
		s = s[i+1:]
	}
	parsed, err := ulid.Parse(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid id %q: %w", s, err)
	}
	return ulid.Time(parsed.Time()), nil
}
