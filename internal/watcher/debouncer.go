package watcher

import (
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Debouncer coalesces events per path within a quiet window. Merge
// rules, keyed by the first operation seen for the path:
//
//	create + modify = create (the file is still new to the index)
//	create + delete = nothing (it never really existed)
//	modify + delete = delete
//	delete + create = modify (the file was replaced)
type Debouncer struct {
	window time.Duration
	out    chan []Event

	mu      sync.Mutex
	pending map[string]*pendingChange
	timer   *time.Timer
	stopped bool
}

type pendingChange struct {
	event   Event
	firstOp Op
}

// NewDebouncer creates a debouncer flushing after window of quiet.
func NewDebouncer(window time.Duration) *Debouncer {
	return &Debouncer{
		window:  window,
		out:     make(chan []Event, 10),
		pending: make(map[string]*pendingChange),
	}
}

// Add queues an event, merging it with any pending one for the path.
func (d *Debouncer) Add(ev Event) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	if p, ok := d.pending[ev.Path]; ok {
		merged, keep := coalesce(p.firstOp, ev)
		if !keep {
			delete(d.pending, ev.Path)
		} else {
			p.event = merged
		}
	} else {
		d.pending[ev.Path] = &pendingChange{event: ev, firstOp: ev.Op}
	}

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, d.flush)
}

// coalesce merges an incoming op into a pending change whose first op
// was first. keep=false means the events cancelled out.
func coalesce(first Op, incoming Event) (Event, bool) {
	switch first {
	case OpCreate:
		switch incoming.Op {
		case OpDelete:
			return Event{}, false
		default:
			// Still a create from the index's point of view.
			incoming.Op = OpCreate
			return incoming, true
		}
	case OpDelete:
		if incoming.Op == OpCreate {
			incoming.Op = OpModify
			return incoming, true
		}
		return incoming, true
	default:
		return incoming, true
	}
}

// Output returns the batch channel. Closed by Stop.
func (d *Debouncer) Output() <-chan []Event {
	return d.out
}

// Stop drops pending events and closes the output channel. Safe to
// call more than once.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
	close(d.out)
}

func (d *Debouncer) flush() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped || len(d.pending) == 0 {
		return
	}

	batch := make([]Event, 0, len(d.pending))
	for _, p := range d.pending {
		batch = append(batch, p.event)
	}
	d.pending = make(map[string]*pendingChange)

	// Deterministic batch order.
	sort.Slice(batch, func(i, j int) bool { return batch[i].Path < batch[j].Path })

	select {
	case d.out <- batch:
	default:
		slog.Warn("debounce_batch_dropped", "batch_size", len(batch))
	}
}
