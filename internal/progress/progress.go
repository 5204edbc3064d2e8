// Package progress carries run progress from the engines to the CLI and TUI.
package progress

import (
	"sync"
	"time"
)

// Stage names a phase of a sync run
type Stage string

const (
	StageScanning    Stage = "scanning"
	StageParsing     Stage = "parsing"
	StageReconciling Stage = "reconciling"
	StageCleaning    Stage = "cleaning"
	StageComplete    Stage = "complete"
)

// Event represents real-time run progress
type Event struct {
	Stage      Stage
	Current    int     // Current item number
	Total      int     // Total items, 0 when unknown
	Percentage float64 // 0-100
	Message    string  // Human-readable status

	// Timing
	StartTime      time.Time
	ElapsedSeconds int
}

// Reporter sends progress events on a channel. A nil *Reporter is valid and
// discards everything, so engines can report unconditionally.
type Reporter struct {
	ch        chan<- Event
	startTime time.Time

	mu      sync.Mutex
	stage   Stage
	total   int
	current int
}

// NewReporter creates a reporter writing to ch
func NewReporter(ch chan<- Event) *Reporter {
	return &Reporter{
		ch:        ch,
		startTime: time.Now(),
	}
}

// Start begins a stage with a known total (0 when unknown)
func (r *Reporter) Start(stage Stage, total int, message string) {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.stage = stage
	r.total = total
	r.current = 0
	ev := r.event(message)
	r.mu.Unlock()
	r.send(ev)
}

// Increment advances the current stage by one item. Safe for concurrent use.
func (r *Reporter) Increment(message string) {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.current++
	ev := r.event(message)
	r.mu.Unlock()
	r.send(ev)
}

// Complete sends the final event. Unlike intermediate updates it is never
// dropped.
func (r *Reporter) Complete(message string) {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.stage = StageComplete
	r.current = r.total
	ev := r.event(message)
	ev.Percentage = 100.0
	r.mu.Unlock()
	r.ch <- ev
}

func (r *Reporter) event(message string) Event {
	percentage := 0.0
	if r.total > 0 {
		percentage = (float64(r.current) / float64(r.total)) * 100.0
	}
	return Event{
		Stage:          r.stage,
		Current:        r.current,
		Total:          r.total,
		Percentage:     percentage,
		Message:        message,
		StartTime:      r.startTime,
		ElapsedSeconds: int(time.Since(r.startTime).Seconds()),
	}
}

// send drops the update when the consumer is behind; the next one catches up.
func (r *Reporter) send(ev Event) {
	select {
	case r.ch <- ev:
	default:
	}
}
