package objstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/sir_venger/minibackup/internal/keys"
	"github.com/sir_venger/minibackup/internal/models"
)

const sweepParallelism = 4

// Sweep удаляет объекты, к которым не обращались с момента olderThan, и
// брошенные временные файлы. Шарды первого уровня обходятся параллельно.
// Перед удалением отметка доступа перечитывается под блокировкой ключа, так что
// объект, прочитанный во время прохода, остаётся на месте.
func (s *Store) Sweep(ctx context.Context, olderThan time.Time) (models.SweepStats, error) {
	var scanned, removed, temps atomic.Int64

	top, err := afero.ReadDir(s.fs, s.root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return models.SweepStats{}, nil
		}
		return models.SweepStats{}, fmt.Errorf("list %s: %w", s.root, err)
	}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(sweepParallelism)

	for _, l1 := range top {
		if !l1.IsDir() {
			continue
		}
		dir1 := filepath.Join(s.root, l1.Name())

		eg.Go(func() error {
			subdirs, err := afero.ReadDir(s.fs, dir1)
			if err != nil {
				return fmt.Errorf("list %s: %w", dir1, err)
			}
			for _, l2 := range subdirs {
				if !l2.IsDir() {
					continue
				}
				if err := egCtx.Err(); err != nil {
					return err
				}

				dir2 := filepath.Join(dir1, l2.Name())
				entries, err := afero.ReadDir(s.fs, dir2)
				if err != nil {
					return fmt.Errorf("list %s: %w", dir2, err)
				}
				for _, e := range entries {
					if e.IsDir() {
						continue
					}
					name := e.Name()
					stale := e.ModTime().Before(olderThan)
					if isTemp(name) {
						if stale && s.fs.Remove(filepath.Join(dir2, name)) == nil {
							temps.Add(1)
						}
						continue
					}
					if !keys.ValidKey(name) {
						continue
					}
					scanned.Add(1)
					if !stale {
						continue
					}
					ok, err := s.expire(name, olderThan)
					if err != nil {
						return err
					}
					if ok {
						removed.Add(1)
					}
				}
			}
			return nil
		})
	}

	err = eg.Wait()
	return models.SweepStats{
		Scanned:      int(scanned.Load()),
		Removed:      int(removed.Load()),
		TempsRemoved: int(temps.Load()),
	}, err
}

func (s *Store) expire(key string, olderThan time.Time) (bool, error) {
	p := s.Path(key)

	mu := s.lock(key)
	mu.Lock()
	defer mu.Unlock()

	fi, err := s.fs.Stat(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("stat %s: %w", key, err)
	}
	if !fi.ModTime().Before(olderThan) {
		return false, nil
	}
	if err := s.fs.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return false, fmt.Errorf("remove %s: %w", key, err)
	}
	s.logger.Debug().Str("key", key).Time("last_access", fi.ModTime()).Msg("object expired")
	return true, nil
}

// Stats возвращает число объектов и их суммарный размер.
func (s *Store) Stats(ctx context.Context) (count int, total int64, err error) {
	err = afero.Walk(s.fs, s.root, func(path string, info fs.FileInfo, err error) error {
		if err != nil {
			// объект удалили или переименовали во время обхода
			if errors.Is(err, fs.ErrNotExist) && path != s.root {
				return nil
			}
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if info.IsDir() || !keys.ValidKey(info.Name()) {
			return nil
		}
		count++
		total += info.Size()
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		err = nil
	}
	return count, total, err
}
