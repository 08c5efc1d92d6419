package objstore

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/sir_venger/minibackup/internal/models"
)

const testKey = "f468483c313401e8"

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestStore(t *testing.T) (*Store, afero.Fs, *fakeClock) {
	t.Helper()
	fsys := afero.NewMemMapFs()
	clk := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	return New("/data", WithFs(fsys), WithClock(clk.Now)), fsys, clk
}

func TestPath(t *testing.T) {
	s := New("data")
	want := filepath.Join("data", "f4", "68", testKey)
	if got := s.Path(testKey); got != want {
		t.Fatalf("Path = %s, want %s", got, want)
	}
}

func TestCreateReadUpdateDelete(t *testing.T) {
	s, fsys, _ := newTestStore(t)

	if err := s.Create(testKey, []byte("hello")); err != nil {
		t.Fatalf("create: %v", err)
	}
	if ok, _ := afero.Exists(fsys, "/data/f4/68/"+testKey); !ok {
		t.Fatal("object not stored at sharded path")
	}

	got, err := s.Read(testKey)
	if err != nil || !bytes.Equal(got, []byte("hello")) {
		t.Fatalf("read = %q, %v", got, err)
	}

	if err := s.Update(testKey, []byte("world")); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _ = s.Read(testKey)
	if string(got) != "world" {
		t.Fatalf("after update read %q", got)
	}

	if err := s.Delete(testKey); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.Read(testKey); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("read after delete: %v", err)
	}
}

func TestCreateRefusesExisting(t *testing.T) {
	s, _, _ := newTestStore(t)

	if err := s.Create(testKey, []byte("first")); err != nil {
		t.Fatal(err)
	}
	if err := s.Create(testKey, []byte("second")); !errors.Is(err, models.ErrAlreadyExists) {
		t.Fatalf("second create: %v", err)
	}
	got, _ := s.Read(testKey)
	if string(got) != "first" {
		t.Fatalf("existing object overwritten: %q", got)
	}
}

func TestConcurrentCreateSingleWinner(t *testing.T) {
	s, _, _ := newTestStore(t)

	const n = 16
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		wins    int
		clashes int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.Create(testKey, []byte("payload"))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, models.ErrAlreadyExists):
				clashes++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if wins != 1 || clashes != n-1 {
		t.Fatalf("wins=%d clashes=%d", wins, clashes)
	}
}

func TestMissingKeys(t *testing.T) {
	s, _, _ := newTestStore(t)

	if _, err := s.Read(testKey); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("read: %v", err)
	}
	if err := s.Update(testKey, []byte("x")); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("update: %v", err)
	}
	if err := s.Delete(testKey); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("delete: %v", err)
	}
	for _, bad := range []string{"", "../../etc/passwd", "ZZZZZZZZZZZZZZZZ"} {
		if _, err := s.Read(bad); !errors.Is(err, models.ErrNotFound) {
			t.Errorf("read %q: %v", bad, err)
		}
	}
	if err := s.Create("../x", []byte("x")); err == nil {
		t.Error("create with malformed key succeeded")
	}
}

func TestReadRefreshesAccessTime(t *testing.T) {
	s, fsys, clk := newTestStore(t)

	if err := s.Create(testKey, []byte("hello")); err != nil {
		t.Fatal(err)
	}
	clk.Advance(time.Hour)
	if _, err := s.Read(testKey); err != nil {
		t.Fatal(err)
	}
	fi, err := fsys.Stat(s.Path(testKey))
	if err != nil {
		t.Fatal(err)
	}
	if !fi.ModTime().Equal(clk.Now()) {
		t.Fatalf("last access %v, want %v", fi.ModTime(), clk.Now())
	}
}

func TestSweep(t *testing.T) {
	s, fsys, clk := newTestStore(t)
	ctx := context.Background()

	const (
		stale = "aaaa000000000001"
		fresh = "aaaa000000000002"
		read  = "bbbb000000000003"
	)
	for _, k := range []string{stale, fresh, read} {
		if err := s.Create(k, []byte(k)); err != nil {
			t.Fatal(err)
		}
	}
	orphan := "/data/aa/aa/" + tempPrefix + "orphan"
	if err := afero.WriteFile(fsys, orphan, []byte("partial"), 0o644); err != nil {
		t.Fatal(err)
	}
	old := clk.Now()
	_ = fsys.Chtimes(orphan, old, old)

	clk.Advance(40 * 24 * time.Hour)
	if _, err := s.Read(read); err != nil {
		t.Fatal(err)
	}
	if err := s.Update(fresh, []byte("new")); err != nil {
		t.Fatal(err)
	}

	stats, err := s.Sweep(ctx, clk.Now().Add(-30*24*time.Hour))
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if stats.Removed != 1 || stats.Scanned != 3 || stats.TempsRemoved != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if _, err := s.Read(stale); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("stale object survived: %v", err)
	}
	for _, k := range []string{fresh, read} {
		if _, err := s.Read(k); err != nil {
			t.Errorf("object %s removed: %v", k, err)
		}
	}
	if ok, _ := afero.Exists(fsys, orphan); ok {
		t.Error("orphan temp file not removed")
	}

	count, total, err := s.Stats(ctx)
	if err != nil || count != 2 || total != int64(len("new")+len(read)) {
		t.Fatalf("stats = %d, %d, %v", count, total, err)
	}
}

func TestSweepEmptyRoot(t *testing.T) {
	s, _, clk := newTestStore(t)
	stats, err := s.Sweep(context.Background(), clk.Now())
	if err != nil || stats.Removed != 0 {
		t.Fatalf("sweep on missing root: %+v, %v", stats, err)
	}
}
