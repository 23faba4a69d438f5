package pipeline

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rahul/postsync/internal/source"
	"github.com/rahul/postsync/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingReporter captures every event of a run in emission order.
type recordingReporter struct {
	mu       sync.Mutex
	progress []int
	statuses []string
	data     []store.Post
	dataSeen bool
	failed   *Error
}

func (r *recordingReporter) Progress(p int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress = append(r.progress, p)
}

func (r *recordingReporter) Status(msg string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, msg)
}

func (r *recordingReporter) DataReady(posts []store.Post) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dataSeen = true
	r.data = posts
}

func (r *recordingReporter) Failed(err *Error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed = err
}

func (r *recordingReporter) snapshot() ([]int, []string, []store.Post, bool, *Error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.progress...), append([]string(nil), r.statuses...), r.data, r.dataSeen, r.failed
}

func newTestPipeline(t *testing.T, body string, status int) (*Pipeline, string) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	dbPath := filepath.Join(t.TempDir(), "posts.db")
	p := New(source.NewClient(srv.URL, 5*time.Second), dbPath)
	p.TickEvery = 10 * time.Millisecond
	return p, dbPath
}

func storedPosts(t *testing.T, dbPath string) []store.Post {
	t.Helper()
	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()
	require.NoError(t, st.EnsureSchema(context.Background()))
	posts, err := st.All(context.Background())
	require.NoError(t, err)
	return posts
}

func TestRunSuccess(t *testing.T) {
	p, dbPath := newTestPipeline(t, `[{"id":1,"title":"A","body":"x"}]`, http.StatusOK)

	rep := &recordingReporter{}
	err := p.Run(context.Background(), "run-1", rep)
	require.NoError(t, err)

	progress, statuses, data, dataSeen, failed := rep.snapshot()

	// Progress starts at 0, is monotonic, ends at 100
	require.NotEmpty(t, progress)
	assert.Equal(t, 0, progress[0])
	assert.Equal(t, 100, progress[len(progress)-1])
	last := -1
	for _, pr := range progress {
		assert.Greater(t, pr, last)
		last = pr
	}

	assert.Equal(t, "fetching data...", statuses[0])
	assert.Contains(t, statuses, "fetch complete")
	assert.Equal(t, "saved", statuses[len(statuses)-1])

	require.True(t, dataSeen)
	require.Len(t, data, 1)
	assert.Equal(t, store.Post{ID: 1, Title: "A", Body: "x"}, data[0])
	assert.Nil(t, failed)

	assert.Equal(t, []store.Post{{ID: 1, Title: "A", Body: "x"}}, storedPosts(t, dbPath))
}

func TestRerunOverwritesByID(t *testing.T) {
	p, dbPath := newTestPipeline(t, `[{"id":1,"title":"A","body":"x"}]`, http.StatusOK)

	require.NoError(t, p.Run(context.Background(), "run-1", &recordingReporter{}))

	// Second run with an overlapping id and a new one
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id":1,"title":"B","body":"y"},{"id":2,"title":"C","body":"z"}]`))
	}))
	defer srv.Close()
	p.Client = source.NewClient(srv.URL, 5*time.Second)

	require.NoError(t, p.Run(context.Background(), "run-2", &recordingReporter{}))

	assert.Equal(t, []store.Post{
		{ID: 1, Title: "B", Body: "y"},
		{ID: 2, Title: "C", Body: "z"},
	}, storedPosts(t, dbPath))
}

func TestRunIdempotent(t *testing.T) {
	p, dbPath := newTestPipeline(t, `[{"id":1,"title":"A","body":"x"},{"id":2,"title":"B","body":"y"}]`, http.StatusOK)

	require.NoError(t, p.Run(context.Background(), "run-1", &recordingReporter{}))
	first := storedPosts(t, dbPath)

	require.NoError(t, p.Run(context.Background(), "run-2", &recordingReporter{}))
	second := storedPosts(t, dbPath)

	assert.Equal(t, first, second)
}

func TestRunFetchFailure(t *testing.T) {
	p, dbPath := newTestPipeline(t, "", http.StatusInternalServerError)

	rep := &recordingReporter{}
	err := p.Run(context.Background(), "run-1", rep)
	require.Error(t, err)
	assert.Equal(t, KindNetwork, KindOf(err))

	progress, statuses, _, dataSeen, failed := rep.snapshot()

	assert.False(t, dataSeen)
	require.NotNil(t, failed)
	assert.Equal(t, KindNetwork, failed.Kind)
	for _, pr := range progress {
		assert.Less(t, pr, 100)
	}
	assert.Contains(t, statuses[len(statuses)-1], "sync failed")

	// Store untouched: the db file holds no rows
	assert.Empty(t, storedPosts(t, dbPath))
}

func TestRunDecodeFailure(t *testing.T) {
	p, dbPath := newTestPipeline(t, `[{"id":1,"title":"A"}]`, http.StatusOK)

	rep := &recordingReporter{}
	err := p.Run(context.Background(), "run-1", rep)
	require.Error(t, err)
	assert.Equal(t, KindDecode, KindOf(err))

	_, _, _, dataSeen, failed := rep.snapshot()
	assert.False(t, dataSeen)
	require.NotNil(t, failed)
	assert.Equal(t, KindDecode, failed.Kind)
	assert.Empty(t, storedPosts(t, dbPath))
}

func TestRunTimeoutLeavesStoreUntouched(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
	}))
	defer srv.Close()

	dbPath := filepath.Join(t.TempDir(), "posts.db")

	// Seed a pre-run snapshot
	st, err := store.Open(dbPath)
	require.NoError(t, err)
	require.NoError(t, st.EnsureSchema(context.Background()))
	require.NoError(t, st.UpsertBatch(context.Background(), []store.Post{{ID: 7, Title: "old", Body: "row"}}, nil))
	require.NoError(t, st.Close())

	p := New(source.NewClient(srv.URL, 50*time.Millisecond), dbPath)
	p.TickEvery = 10 * time.Millisecond

	rep := &recordingReporter{}
	err = p.Run(context.Background(), "run-1", rep)
	require.Error(t, err)
	assert.Equal(t, KindNetwork, KindOf(err))

	assert.Equal(t, []store.Post{{ID: 7, Title: "old", Body: "row"}}, storedPosts(t, dbPath))
}

func TestRunPersistenceFailureAtomic(t *testing.T) {
	longTitle := "this title is far too long for the constraint"
	p, dbPath := newTestPipeline(t,
		`[{"id":1,"title":"ok","body":"a"},{"id":2,"title":"ok","body":"b"},{"id":3,"title":"`+longTitle+`","body":"c"}]`,
		http.StatusOK)

	// Pre-create a stricter table so the third record violates a
	// constraint mid-batch.
	st, err := store.Open(dbPath)
	require.NoError(t, err)
	_, err = st.DB.Exec(`CREATE TABLE posts (
		id INTEGER PRIMARY KEY,
		title TEXT CHECK(length(title) <= 10),
		body TEXT
	);`)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	rep := &recordingReporter{}
	err = p.Run(context.Background(), "run-1", rep)
	require.Error(t, err)
	assert.Equal(t, KindPersistence, KindOf(err))

	_, _, _, dataSeen, failed := rep.snapshot()
	assert.False(t, dataSeen)
	require.NotNil(t, failed)
	assert.Equal(t, KindPersistence, failed.Kind)

	// Atomicity: none of the batch is visible
	assert.Empty(t, storedPosts(t, dbPath))
}

func TestSyntheticTicksDuringSlowFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(150 * time.Millisecond)
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	p := New(source.NewClient(srv.URL, 5*time.Second), filepath.Join(t.TempDir(), "posts.db"))
	p.TickEvery = 20 * time.Millisecond

	rep := &recordingReporter{}
	require.NoError(t, p.Run(context.Background(), "run-1", rep))

	progress, _, _, _, _ := rep.snapshot()

	// More than just 0 and the stage boundaries: the ticker ramped
	// while the fetch was in flight.
	assert.Greater(t, len(progress), 3)
	last := -1
	for _, pr := range progress {
		assert.Greater(t, pr, last)
		last = pr
	}
	assert.Equal(t, 100, progress[len(progress)-1])
}

// abandoningReporter cancels the run as soon as the fetch stage
// finishes, like a window closing between fetch and persist.
type abandoningReporter struct {
	recordingReporter
	cancel context.CancelFunc
}

func (r *abandoningReporter) Status(msg string, d time.Duration) {
	r.recordingReporter.Status(msg, d)
	if msg == "fetch complete" {
		r.cancel()
	}
}

func TestRunAbandonedAfterFetchDoesNotCommit(t *testing.T) {
	p, dbPath := newTestPipeline(t, `[{"id":1,"title":"A","body":"x"}]`, http.StatusOK)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rep := &abandoningReporter{cancel: cancel}
	err := p.Run(ctx, "run-1", rep)
	require.Error(t, err)
	assert.Equal(t, KindNetwork, KindOf(err))

	progress, _, _, dataSeen, failed := rep.snapshot()

	// The fetched batch is discarded: no commit, no data event
	assert.False(t, dataSeen)
	require.NotNil(t, failed)
	assert.Equal(t, KindNetwork, failed.Kind)
	for _, pr := range progress {
		assert.Less(t, pr, 100)
	}
	assert.Empty(t, storedPosts(t, dbPath))
}

func TestRunAbandonedKeepsPriorSnapshot(t *testing.T) {
	p, dbPath := newTestPipeline(t, `[{"id":1,"title":"A","body":"x"}]`, http.StatusOK)

	// Commit a first run, then abandon a second one that fetched
	// different content for the same id plus a new row
	require.NoError(t, p.Run(context.Background(), "run-1", &recordingReporter{}))
	before := storedPosts(t, dbPath)
	require.NotEmpty(t, before)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id":1,"title":"B","body":"y"},{"id":2,"title":"C","body":"z"}]`))
	}))
	defer srv.Close()
	p.Client = source.NewClient(srv.URL, 5*time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rep := &abandoningReporter{cancel: cancel}
	err := p.Run(ctx, "run-2", rep)
	require.Error(t, err)

	assert.Equal(t, before, storedPosts(t, dbPath))
}
