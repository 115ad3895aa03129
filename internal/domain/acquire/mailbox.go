package acquire

import "sync"

// mailbox is a single-slot, latest-wins frame buffer between a producer
// and the goroutine that renders. A newer frame replaces an undelivered
// older one, so a slow renderer never builds a backlog.
type mailbox struct {
	slot   chan []byte
	done   chan struct{}
	once   sync.Once
	onDrop func()
}

func newMailbox(onDrop func()) *mailbox {
	if onDrop == nil {
		onDrop = func() {}
	}
	return &mailbox{
		slot:   make(chan []byte, 1),
		done:   make(chan struct{}),
		onDrop: onDrop,
	}
}

// put stores frame, dropping any frame still waiting. Single producer.
func (m *mailbox) put(frame []byte) {
	for {
		select {
		case m.slot <- frame:
			return
		default:
		}
		select {
		case <-m.slot:
			m.onDrop()
		default:
		}
	}
}

// close tells the consumer no more frames will be put.
func (m *mailbox) close() {
	m.once.Do(func() { close(m.done) })
}

// deliver forwards frames to fn in arrival order until ctx is done or the
// mailbox is closed and drained.
func (m *mailbox) deliver(done <-chan struct{}, fn func([]byte)) {
	for {
		select {
		case <-done:
			return
		case frame := <-m.slot:
			select {
			case <-done:
				return
			default:
			}
			fn(frame)
		case <-m.done:
			select {
			case frame := <-m.slot:
				select {
				case <-done:
				default:
					fn(frame)
				}
			default:
			}
			return
		}
	}
}
