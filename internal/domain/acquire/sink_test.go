package acquire

import (
	"sync"

	"github.com/GriffinCanCode/monview/internal/shared/types"
)

type stateEvent struct {
	screen int
	state  types.ConnState
	err    error
}

// recordingSink collects everything an acquisition delivers.
type recordingSink struct {
	mu      sync.Mutex
	frames  map[int][][]byte
	states  []stateEvent
	ended   []int
	onFrame func(screen int, data []byte)
}

func newRecordingSink() *recordingSink {
	return &recordingSink{frames: make(map[int][][]byte)}
}

func (s *recordingSink) Frame(screen int, data []byte) {
	if s.onFrame != nil {
		s.onFrame(screen, data)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames[screen] = append(s.frames[screen], data)
}

func (s *recordingSink) State(screen int, state types.ConnState, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states = append(s.states, stateEvent{screen: screen, state: state, err: err})
}

func (s *recordingSink) Ended(screen int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ended = append(s.ended, screen)
}

func (s *recordingSink) endedScreens() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.ended...)
}

func (s *recordingSink) frameCount(screen int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames[screen])
}

func (s *recordingSink) totalFrames() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, f := range s.frames {
		n += len(f)
	}
	return n
}

func (s *recordingSink) framesFor(screen int) [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]byte, len(s.frames[screen]))
	copy(out, s.frames[screen])
	return out
}

func (s *recordingSink) statesFor(screen int) []types.ConnState {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []types.ConnState
	for _, e := range s.states {
		if e.screen == screen {
			out = append(out, e.state)
		}
	}
	return out
}

func (s *recordingSink) lastState(screen int) (stateEvent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.states) - 1; i >= 0; i-- {
		if s.states[i].screen == screen {
			return s.states[i], true
		}
	}
	return stateEvent{}, false
}

func (s *recordingSink) eventCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.states)
	for _, f := range s.frames {
		n += len(f)
	}
	return n
}
