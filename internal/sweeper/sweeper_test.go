package sweeper

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/spf13/afero"

	"github.com/sir_venger/minibackup/internal/metrics"
	"github.com/sir_venger/minibackup/internal/models"
	"github.com/sir_venger/minibackup/internal/objstore"
	"github.com/sir_venger/minibackup/internal/state"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type failingObjects struct{ calls atomic.Int32 }

func (f *failingObjects) Sweep(context.Context, time.Time) (models.SweepStats, error) {
	f.calls.Add(1)
	return models.SweepStats{}, errors.New("disk unavailable")
}

type blockingObjects struct {
	started chan struct{}
	release chan struct{}
	calls   atomic.Int32
}

func (b *blockingObjects) Sweep(context.Context, time.Time) (models.SweepStats, error) {
	b.calls.Add(1)
	b.started <- struct{}{}
	<-b.release
	return models.SweepStats{}, nil
}

func TestMaybeRunExpiresAndThrottles(t *testing.T) {
	ctx := context.Background()
	clk := &clock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	store := objstore.New("/data", objstore.WithFs(afero.NewMemMapFs()), objstore.WithClock(clk.Now))
	st := state.NewMemoryStore()
	m := metrics.New(prometheus.NewRegistry())

	sw := New(store, st)
	sw.Now = clk.Now
	sw.Metrics = m

	if err := store.Create("aaaa000000000001", []byte("old")); err != nil {
		t.Fatal(err)
	}
	if err := store.Create("aaaa000000000002", []byte("kept")); err != nil {
		t.Fatal(err)
	}
	_, _ = st.TouchRate(ctx, "10.0.0.1", clk.Now(), time.Second)

	// первый проход ничего не удаляет, но занимает отметку
	if ran, err := sw.MaybeRun(ctx); !ran || err != nil {
		t.Fatalf("first run: ran=%v err=%v", ran, err)
	}

	clk.Advance(31 * 24 * time.Hour)
	if _, err := store.Read("aaaa000000000002"); err != nil {
		t.Fatal(err)
	}

	ran, err := sw.MaybeRun(ctx)
	if !ran || err != nil {
		t.Fatalf("second run: ran=%v err=%v", ran, err)
	}
	if _, err := store.Read("aaaa000000000001"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("stale object survived: %v", err)
	}
	if _, err := store.Read("aaaa000000000002"); err != nil {
		t.Errorf("used object removed: %v", err)
	}
	if ok, _ := st.TouchRate(ctx, "10.0.0.1", clk.Now(), 60*24*time.Hour); !ok {
		t.Error("stale rate entry not pruned")
	}

	clk.Advance(23 * time.Hour)
	if ran, _ := sw.MaybeRun(ctx); ran {
		t.Error("sweep ran twice within a day")
	}

	if got := testutil.ToFloat64(m.SweepRuns); got != 2 {
		t.Errorf("sweep runs metric = %v", got)
	}
	if got := testutil.ToFloat64(m.ObjectsExpired); got != 1 {
		t.Errorf("objects expired metric = %v", got)
	}
}

func TestFailedSweepStillMovesMarker(t *testing.T) {
	ctx := context.Background()
	clk := &clock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	objs := &failingObjects{}

	sw := New(objs, state.NewMemoryStore())
	sw.Now = clk.Now

	ran, err := sw.MaybeRun(ctx)
	if !ran || err == nil {
		t.Fatalf("ran=%v err=%v", ran, err)
	}
	clk.Advance(time.Minute)
	if ran, _ := sw.MaybeRun(ctx); ran {
		t.Fatal("failed sweep retried before the interval elapsed")
	}
	if objs.calls.Load() != 1 {
		t.Fatalf("objects swept %d times", objs.calls.Load())
	}
}

func TestTriggerSingleFlight(t *testing.T) {
	objs := &blockingObjects{started: make(chan struct{}, 1), release: make(chan struct{})}
	clk := &clock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}

	sw := New(objs, state.NewMemoryStore())
	sw.Now = clk.Now
	sw.Every = time.Nanosecond

	sw.Trigger()
	<-objs.started

	clk.Advance(time.Hour)
	for i := 0; i < 5; i++ {
		sw.Trigger()
	}
	close(objs.release)
	sw.Wait()

	if got := objs.calls.Load(); got != 1 {
		t.Fatalf("overlapping sweeps: %d", got)
	}
}

func TestStartStop(t *testing.T) {
	sw := New(&failingObjects{}, state.NewMemoryStore())
	stop := sw.Start(time.Hour)
	stop()
	stop()

	noop := sw.Start(0)
	noop()
}
