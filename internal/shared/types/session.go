package types

import "time"

// Selection is either none or a copy of one MonitorDescriptor.
type Selection struct {
	Monitor *MonitorDescriptor `json:"monitor,omitempty"`
}

// SelectionOf builds a selection holding a copy of m.
func SelectionOf(m MonitorDescriptor) Selection {
	return Selection{Monitor: &m}
}

// IsNone reports whether nothing is selected.
func (s Selection) IsNone() bool {
	return s.Monitor == nil
}

// Address returns the selected address or "".
func (s Selection) Address() string {
	if s.Monitor == nil {
		return ""
	}
	return s.Monitor.Address
}

// ConnState is the lifecycle of one per-screen live connection.
type ConnState string

const (
	ConnAbsent     ConnState = "absent"
	ConnConnecting ConnState = "connecting"
	ConnOpen       ConnState = "open"
	ConnClosed     ConnState = "closed"
	ConnErrored    ConnState = "errored"
)

// ScreenStatus is the per-screen state fed into view composition.
type ScreenStatus struct {
	Index     int           `json:"index"`
	State     ConnState     `json:"state"`
	LastError string        `json:"last_error,omitempty"`
	Width     int           `json:"width"`
	Height    int           `json:"height"`
	Version   uint64        `json:"version"`
	UpdatedAt time.Time     `json:"updated_at"`
	FPS       float64       `json:"fps"`
	Jitter    time.Duration `json:"jitter"`
}

// SessionInfo summarizes the live session for API consumers.
type SessionInfo struct {
	ID        string         `json:"id,omitempty"`
	Mode      string         `json:"mode"`
	Selection Selection      `json:"selection"`
	StartedAt *time.Time     `json:"started_at,omitempty"`
	Screens   []ScreenStatus `json:"screens"`
}
