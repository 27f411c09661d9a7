package jobs

import (
	"io"
	"log/slog"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCreateAndLookup(t *testing.T) {
	r := NewRegistry(discardLogger(), Hooks{})

	j := r.Create("merged.pdf")
	assert.Regexp(t, regexp.MustCompile(`^[0-9a-f]{32}$`), j.ID())

	got, err := r.Lookup(j.ID())
	require.NoError(t, err)
	assert.Same(t, j, got)

	_, err = r.Lookup("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateAssignsUniqueIDs(t *testing.T) {
	r := NewRegistry(discardLogger(), Hooks{})
	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		id := r.Create("x.pdf").ID()
		_, dup := seen[id]
		require.False(t, dup)
		seen[id] = struct{}{}
	}
	assert.Equal(t, 100, r.Len())
}

func TestCreateRunsHooks(t *testing.T) {
	var created int
	var listeners int
	r := NewRegistry(discardLogger(), Hooks{
		Created:          func(*Job) { created++ },
		ListenersChanged: func(d int) { listeners += d },
	})

	j := r.Create("x.pdf")
	l := j.Channel().Register()
	assert.Equal(t, 1, created)
	assert.Equal(t, 1, listeners)

	j.Channel().Unregister(l)
	assert.Equal(t, 0, listeners)
}

func TestListNewestFirst(t *testing.T) {
	r := NewRegistry(discardLogger(), Hooks{})
	a := r.Create("a.pdf")
	b := r.Create("b.pdf")
	time.Sleep(2 * time.Millisecond)
	require.NoError(t, a.MarkRunning())

	snaps := r.List(0)
	require.Len(t, snaps, 2)
	assert.Equal(t, a.ID(), snaps[0].JobID)
	assert.Equal(t, b.ID(), snaps[1].JobID)

	assert.Len(t, r.List(1), 1)
}

func TestEvictRemovesOnlyStaleFinishedJobs(t *testing.T) {
	r := NewRegistry(discardLogger(), Hooks{})
	done := r.Create("done.pdf")
	require.NoError(t, done.MarkCompleted([]byte("x")))
	failed := r.Create("failed.pdf")
	require.NoError(t, failed.MarkError("boom"))
	running := r.Create("running.pdf")
	require.NoError(t, running.MarkRunning())

	assert.Zero(t, r.evict(time.Now(), time.Hour))
	assert.Equal(t, 3, r.Len())

	removed := r.evict(time.Now().Add(2*time.Hour), time.Hour)
	assert.Equal(t, 2, removed)

	_, err := r.Lookup(running.ID())
	assert.NoError(t, err)
	_, err = r.Lookup(done.ID())
	assert.ErrorIs(t, err, ErrNotFound)
}
