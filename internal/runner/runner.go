package runner

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rahul/postsync/internal/observability"
	"github.com/rahul/postsync/internal/pipeline"
	"github.com/rahul/postsync/internal/store"
)

// EventType defines the kind of notification crossing from the worker
// to the UI consumer.
type EventType string

const (
	EventProgress EventType = "progress"
	EventStatus   EventType = "status"
	EventData     EventType = "data"
	EventFailed   EventType = "failed"
)

// Event is one notification. Events of the same run arrive in the
// order the run emitted them; a run ends with exactly one EventData or
// EventFailed.
type Event struct {
	Type          EventType
	RunID         string
	Progress      int
	Status        string
	StatusDisplay time.Duration
	Posts         []store.Post
	Err           error
}

// Runner executes sync runs on a worker goroutine, one at a time, and
// bridges their events back over a single ordered channel. The UI side
// drains Events and never blocks the worker for long: the channel is
// buffered and the runner is its sole producer.
type Runner struct {
	pipe    *pipeline.Pipeline
	logger  *observability.Logger
	events  chan Event
	busy    atomic.Bool
	current atomic.Value // run id holding the busy slot
}

func New(pipe *pipeline.Pipeline, logger *observability.Logger) *Runner {
	return &Runner{
		pipe:   pipe,
		logger: logger,
		events: make(chan Event, 64),
	}
}

// Events is the worker → UI notification channel. It stays open for
// the lifetime of the runner and carries every run's events.
func (r *Runner) Events() <-chan Event {
	return r.events
}

// Active reports whether a run is currently in flight.
func (r *Runner) Active() bool {
	return r.busy.Load()
}

// Submit schedules one run. If another run is active the submission is
// rejected with a busy error and the active run is unaffected. trigger
// names what asked for the run ("manual", "timer") and only shows up in
// logs.
func (r *Runner) Submit(ctx context.Context, trigger string) (string, error) {
	if !r.busy.CompareAndSwap(false, true) {
		r.logger.LogRunRejected(trigger)
		// Best-effort transient notice for the status line, stamped
		// with the run that holds the slot; never block a submitter on
		// a full channel.
		active, _ := r.current.Load().(string)
		select {
		case r.events <- Event{Type: EventStatus, RunID: active, Status: "busy: a sync run is already active", StatusDisplay: 2 * time.Second}:
		default:
		}
		return "", &pipeline.Error{Kind: pipeline.KindBusy, Err: errors.New("a sync run is already active")}
	}

	runID := uuid.NewString()
	r.current.Store(runID)
	r.logger.LogRunStarted(runID, trigger)
	started := time.Now()

	go func() {
		defer r.busy.Store(false)

		rep := &channelReporter{runID: runID, events: r.events}
		if err := r.pipe.Run(ctx, runID, rep); err != nil {
			r.logger.LogRunFailed(runID, string(pipeline.KindOf(err)), err.Error())
			return
		}
		r.logger.LogRunCompleted(runID, rep.delivered, time.Since(started))
	}()

	return runID, nil
}

// channelReporter adapts the pipeline's Reporter callbacks onto the
// runner's event channel.
type channelReporter struct {
	runID     string
	events    chan<- Event
	delivered int
}

func (c *channelReporter) Progress(percent int) {
	c.events <- Event{Type: EventProgress, RunID: c.runID, Progress: percent}
}

func (c *channelReporter) Status(message string, display time.Duration) {
	c.events <- Event{Type: EventStatus, RunID: c.runID, Status: message, StatusDisplay: display}
}

func (c *channelReporter) DataReady(posts []store.Post) {
	c.delivered = len(posts)
	c.events <- Event{Type: EventData, RunID: c.runID, Posts: posts}
}

func (c *channelReporter) Failed(err *pipeline.Error) {
	c.events <- Event{Type: EventFailed, RunID: c.runID, Err: err}
}
