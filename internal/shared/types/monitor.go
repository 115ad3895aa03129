package types

import (
	"bytes"
	"fmt"
	"strconv"
)

// ScreenCount is the number of capturable screens a monitor exposes.
// The registry encodes it either as a JSON number or as a decimal string.
type ScreenCount int

// UnmarshalJSON accepts 3, "3" and null.
func (s *ScreenCount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*s = 0
		return nil
	}
	if data[0] == '"' {
		unquoted, err := strconv.Unquote(string(data))
		if err != nil {
			return fmt.Errorf("invalid screenCount %s: %w", data, err)
		}
		data = []byte(unquoted)
		if len(data) == 0 {
			*s = 0
			return nil
		}
	}
	n, err := strconv.Atoi(string(data))
	if err != nil {
		return fmt.Errorf("invalid screenCount %s: %w", data, err)
	}
	*s = ScreenCount(n)
	return nil
}

// MonitorDescriptor describes one remote monitor. Immutable once listed.
type MonitorDescriptor struct {
	Address     string      `json:"address"`
	User        string      `json:"user"`
	Host        string      `json:"host"`
	ScreenCount ScreenCount `json:"screenCount"`
}

// Screens returns the number of screens, never less than one.
func (m MonitorDescriptor) Screens() int {
	if m.ScreenCount < 1 {
		return 1
	}
	return int(m.ScreenCount)
}

// Label is the list entry text shown to the operator.
func (m MonitorDescriptor) Label() string {
	return fmt.Sprintf("%s (%s - %s)", m.User, m.Host, m.Address)
}

// DefaultMaxScreens bounds the screen count accepted for one monitor.
const DefaultMaxScreens = 16

// MonitorList is an ordered registry snapshot. It is replaced, never patched.
type MonitorList []MonitorDescriptor

// NormalizeMonitors drops entries without an address and duplicate addresses
// (first occurrence wins), and clamps screen counts to [1, maxScreens].
// maxScreens <= 0 means DefaultMaxScreens.
func NormalizeMonitors(in []MonitorDescriptor, maxScreens int) MonitorList {
	if maxScreens <= 0 {
		maxScreens = DefaultMaxScreens
	}
	out := make(MonitorList, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, m := range in {
		if m.Address == "" {
			continue
		}
		if _, dup := seen[m.Address]; dup {
			continue
		}
		seen[m.Address] = struct{}{}
		m.ScreenCount = ScreenCount(min(m.Screens(), maxScreens))
		out = append(out, m)
	}
	return out
}

// Find resolves an address by equality.
func (l MonitorList) Find(address string) (MonitorDescriptor, bool) {
	for _, m := range l {
		if m.Address == address {
			return m, true
		}
	}
	return MonitorDescriptor{}, false
}

// Clone returns an independent copy.
func (l MonitorList) Clone() MonitorList {
	if l == nil {
		return nil
	}
	out := make(MonitorList, len(l))
	copy(out, l)
	return out
}

// Equal reports whether two snapshots hold the same monitors in the same order.
func (l MonitorList) Equal(other MonitorList) bool {
	if len(l) != len(other) {
		return false
	}
	for i := range l {
		if l[i] != other[i] {
			return false
		}
	}
	return true
}
