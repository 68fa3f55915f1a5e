package watcher

import (
	"sync"
	"time"

	"github.com/ternarybob/arbor"
)

// Operation is the kind of change seen for a path.
type Operation int

const (
	OpCreate Operation = iota
	OpModify
	OpDelete
)

func (o Operation) String() string {
	switch o {
	case OpCreate:
		return "create"
	case OpModify:
		return "modify"
	case OpDelete:
		return "delete"
	}
	return "unknown"
}

// Event is a debounced change to one file.
type Event struct {
	Path      string
	Operation Operation
}

// debouncer coalesces rapid events per path:
//   - CREATE + MODIFY = CREATE
//   - CREATE + DELETE = nothing
//   - MODIFY + DELETE = DELETE
//   - DELETE + CREATE = MODIFY
type debouncer struct {
	window  time.Duration
	mu      sync.Mutex
	pending map[string]Operation
	order   []string
	timer   *time.Timer
	output  chan []Event
	stopped bool
	logger  arbor.ILogger
	dropped int
}

func newDebouncer(window time.Duration, logger arbor.ILogger) *debouncer {
	return &debouncer{
		window:  window,
		pending: make(map[string]Operation),
		output:  make(chan []Event, 16),
		logger:  logger,
	}
}

func (d *debouncer) add(path string, op Operation) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}

	if prev, ok := d.pending[path]; ok {
		merged, keep := coalesce(prev, op)
		if !keep {
			delete(d.pending, path)
		} else {
			d.pending[path] = merged
		}
	} else {
		d.pending[path] = op
		d.order = append(d.order, path)
	}

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, d.flush)
}

func coalesce(prev, next Operation) (Operation, bool) {
	switch {
	case prev == OpCreate && next == OpModify:
		return OpCreate, true
	case prev == OpCreate && next == OpDelete:
		return 0, false
	case prev == OpDelete && next == OpCreate:
		return OpModify, true
	}
	return next, true
}

func (d *debouncer) flush() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped || len(d.pending) == 0 {
		d.order = nil
		return
	}
	events := make([]Event, 0, len(d.pending))
	for _, path := range d.order {
		if op, ok := d.pending[path]; ok {
			events = append(events, Event{Path: path, Operation: op})
			delete(d.pending, path)
		}
	}
	d.pending = make(map[string]Operation)
	d.order = nil

	select {
	case d.output <- events:
	default:
		d.dropped++
		paths := make([]string, len(events))
		for i, e := range events {
			paths[i] = e.Path
		}
		d.logger.Warn().
			Int("events", len(events)).
			Strs("paths", paths).
			Msg("Debouncer output full, dropping batch")
	}
}

func (d *debouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
	close(d.output)
}
