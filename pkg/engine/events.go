package engine

import (
	"log/slog"
	"sync"
	"time"

	"github.com/Aman-CERP/semdex/internal/index"
)

// EventType names an engine lifecycle or indexing event.
type EventType string

const (
	EventReady            EventType = "ready"
	EventIndexingStart    EventType = "indexing-start"
	EventIndexingProgress EventType = "indexing-progress"
	EventIndexingComplete EventType = "indexing-complete"
	EventFileIndexed      EventType = "file-indexed"
	EventFileDeleted      EventType = "file-deleted"
	EventError            EventType = "error"
)

// Event is one engine notification.
type Event struct {
	Type      EventType
	Path      string
	Message   string
	Progress  *index.ProgressSnapshot
	Timestamp time.Time
}

// defaultEventBuffer is the per-subscriber channel capacity.
const defaultEventBuffer = 64

// broadcaster fans events out to subscribers without ever blocking the
// engine: a subscriber whose buffer is full loses the event and the drop
// is logged.
type broadcaster struct {
	mu      sync.Mutex
	subs    []chan Event
	dropped int64
	closed  bool
}

func newBroadcaster() *broadcaster {
	return &broadcaster{}
}

// subscribe registers a new consumer channel.
func (b *broadcaster) subscribe() <-chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, defaultEventBuffer)
	if b.closed {
		close(ch)
		return ch
	}
	b.subs = append(b.subs, ch)
	return ch
}

// publish delivers an event to every subscriber that has room.
func (b *broadcaster) publish(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			b.dropped++
			slog.Warn("event_dropped",
				slog.String("event", string(ev.Type)),
				slog.Int64("total_dropped", b.dropped))
		}
	}
}

// close terminates all subscriber channels.
func (b *broadcaster) close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for _, ch := range b.subs {
		close(ch)
	}
	b.subs = nil
}
