package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rahul/postsync/internal/observability"
	"github.com/rahul/postsync/internal/source"
	"github.com/rahul/postsync/internal/store"
)

// Run states. A run moves Idle → Fetching → Persisting → Done, or into
// Failed from any non-terminal state.
type State string

const (
	StateIdle       State = "idle"
	StateFetching   State = "fetching"
	StatePersisting State = "persisting"
	StateDone       State = "done"
	StateFailed     State = "failed"
)

// Progress ceilings per stage. Only a completed run reaches 100.
const (
	fetchCeiling   = 60
	persistCeiling = 95
)

const statusDisplay = 3 * time.Second

// Reporter receives the events of one run, in emission order. The
// implementation must be safe to call from the worker goroutine; it is
// never called again after DataReady or Failed.
type Reporter interface {
	Progress(percent int)
	Status(message string, display time.Duration)
	DataReady(posts []store.Post)
	Failed(err *Error)
}

// Pipeline executes one fetch → persist → notify cycle. The store
// handle is opened at run start and released on every exit path, so
// nothing about the database is shared between runs.
type Pipeline struct {
	Client *source.Client
	DBPath string

	// TickEvery is the cadence of synthetic progress while a stage is
	// in flight. Zero means the 200ms default.
	TickEvery time.Duration
}

func New(client *source.Client, dbPath string) *Pipeline {
	return &Pipeline{
		Client: client,
		DBPath: dbPath,
	}
}

func (p *Pipeline) tickEvery() time.Duration {
	if p.TickEvery > 0 {
		return p.TickEvery
	}
	return 200 * time.Millisecond
}

// Run drives a single sync run and reports everything through rep.
// The returned error, if any, is a *Error and has already been
// delivered via rep.Failed.
func (p *Pipeline) Run(ctx context.Context, runID string, rep Reporter) error {
	g := newGauge(rep)

	// Idle → Fetching
	setState(StateFetching, runID)
	g.set(0)
	rep.Status("fetching data...", 0)

	// True byte-level progress is not available from a single
	// whole-response fetch, so a ticker ramps the bar while we wait.
	stopTicks := p.tickWhile(ctx, g, fetchCeiling)
	posts, err := p.Client.Fetch(ctx)
	stopTicks()
	if err != nil {
		return p.fail(rep, g, classifyFetch(err))
	}

	// Fetching → Persisting
	setState(StatePersisting, runID)
	g.set(fetchCeiling)
	rep.Status("fetch complete", 0)

	// An abandoned run must discard the fetched batch without touching
	// the store.
	if err := ctx.Err(); err != nil {
		return p.fail(rep, g, abandoned(err))
	}

	st, err := store.Open(p.DBPath)
	if err != nil {
		return p.fail(rep, g, &Error{Kind: KindPersistence, Err: err})
	}
	defer st.Close()

	if err := st.EnsureSchema(ctx); err != nil {
		return p.fail(rep, g, p.classifyPersist(ctx, err))
	}

	rep.Status("saving posts...", 0)
	err = st.UpsertBatch(ctx, posts, func(done, total int) {
		if total == 0 {
			return
		}
		span := persistCeiling - fetchCeiling
		g.set(fetchCeiling + span*done/total)
	})
	if err != nil {
		return p.fail(rep, g, p.classifyPersist(ctx, err))
	}

	// Persisting → Done
	setState(StateDone, "")
	g.set(100)
	g.close()
	rep.Status("saved", statusDisplay)
	rep.DataReady(posts)
	return nil
}

func (p *Pipeline) fail(rep Reporter, g *gauge, perr *Error) error {
	setState(StateFailed, "")
	g.close()
	rep.Status("sync failed: "+perr.Error(), statusDisplay)
	rep.Failed(perr)
	return perr
}

// setState publishes a run-state transition to the live status
// snapshot. Both terminal states read as idle there: the pipeline is
// ready for a new run either way.
func setState(s State, runID string) {
	switch s {
	case StateFetching:
		observability.SetPhase(observability.PhaseFetching, runID)
	case StatePersisting:
		observability.SetPhase(observability.PhasePersisting, runID)
	default:
		observability.SetPhase(observability.PhaseIdle, "")
	}
}

func classifyFetch(err error) *Error {
	var de *source.DecodeError
	if errors.As(err, &de) {
		return &Error{Kind: KindDecode, Err: err}
	}
	return &Error{Kind: KindNetwork, Err: err}
}

// classifyPersist separates a genuinely failed write from a run that
// was abandoned mid-persist: the aborted transaction surfaces the
// context error, which is not a database fault.
func (p *Pipeline) classifyPersist(ctx context.Context, err error) *Error {
	if ctx.Err() != nil {
		return abandoned(ctx.Err())
	}
	return &Error{Kind: KindPersistence, Err: err}
}

// Abandonment classifies like a fetch cancellation: the run went away,
// not the database.
func abandoned(err error) *Error {
	return &Error{Kind: KindNetwork, Err: fmt.Errorf("run abandoned: %w", err)}
}

// tickWhile advances the gauge on a fixed schedule until stop is
// called, staying strictly below ceiling so the stage-completion value
// is always the largest one emitted for the stage.
func (p *Pipeline) tickWhile(ctx context.Context, g *gauge, ceiling int) (stop func()) {
	done := make(chan struct{})
	var once sync.Once

	go func() {
		t := time.NewTicker(p.tickEvery())
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-t.C:
				g.bump(5, ceiling-1)
			}
		}
	}()

	return func() { once.Do(func() { close(done) }) }
}

// gauge serializes progress emissions and keeps them monotonically
// non-decreasing within the run. The ticker goroutine and the worker
// both report through it; stale or backward values are dropped.
type gauge struct {
	mu     sync.Mutex
	last   int
	closed bool
	rep    Reporter
}

func newGauge(rep Reporter) *gauge {
	return &gauge{last: -1, rep: rep}
}

func (g *gauge) set(p int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return
	}
	if p < 0 {
		p = 0
	}
	if p > 100 {
		p = 100
	}
	if p <= g.last {
		return
	}
	g.last = p
	g.rep.Progress(p)
}

func (g *gauge) bump(delta, ceiling int) {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return
	}
	p := g.last + delta
	if p > ceiling {
		p = ceiling
	}
	if p <= g.last {
		g.mu.Unlock()
		return
	}
	g.last = p
	g.rep.Progress(p)
	g.mu.Unlock()
}

// close stops the gauge. A run's terminal event is the last thing its
// reporter sees, so late ticker emissions are dropped here.
func (g *gauge) close() {
	g.mu.Lock()
	g.closed = true
	g.mu.Unlock()
}
