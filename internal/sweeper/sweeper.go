// Package sweeper удаляет давно не используемые объекты и устаревшие записи
// журнала запросов. Проход выполняется не чаще раза в Every: отметка последней
// очистки занимается атомарно в хранилище состояния, поэтому два процесса или
// два одновременных запроса не запустят очистку дважды.
package sweeper

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/sir_venger/minibackup/internal/metrics"
	"github.com/sir_venger/minibackup/internal/models"
)

const (
	// DefaultEvery: минимальный промежуток между проходами.
	DefaultEvery = 24 * time.Hour
	// DefaultRetention: срок хранения неиспользуемых объектов и записей журнала.
	DefaultRetention = 30 * 24 * time.Hour

	runTimeout = time.Hour
)

type (
	// Objects: хранилище, умеющее удалять объекты старше заданного момента.
	Objects interface {
		Sweep(ctx context.Context, olderThan time.Time) (models.SweepStats, error)
	}

	// State: отметка последней очистки и журнал запросов.
	State interface {
		ClaimSweep(ctx context.Context, now time.Time, every time.Duration) (bool, error)
		PruneRates(ctx context.Context, before time.Time) (int, error)
	}
)

// Sweeper выполняет очистку синхронно (MaybeRun) или в фоне (Trigger, Start).
type Sweeper struct {
	Objects   Objects
	State     State
	Every     time.Duration
	Retention time.Duration
	Now       func() time.Time
	Logger    zerolog.Logger
	Metrics   *metrics.Metrics

	running atomic.Bool
	wg      sync.WaitGroup
}

// New создаёт Sweeper с политикой по умолчанию: раз в сутки, срок хранения 30 дней.
func New(objects Objects, st State) *Sweeper {
	return &Sweeper{
		Objects:   objects,
		State:     st,
		Every:     DefaultEvery,
		Retention: DefaultRetention,
		Now:       time.Now,
		Logger:    zerolog.Nop(),
	}
}

// MaybeRun выполняет проход, если с прошлого прошло больше Every. Отметка
// переносится до начала прохода, так что неудачная очистка не повторяется на
// каждом запросе.
func (s *Sweeper) MaybeRun(ctx context.Context) (bool, error) {
	now := s.Now()
	claimed, err := s.State.ClaimSweep(ctx, now, s.Every)
	if err != nil {
		return false, fmt.Errorf("claim sweep: %w", err)
	}
	if !claimed {
		return false, nil
	}

	return true, s.run(ctx, now)
}

func (s *Sweeper) run(ctx context.Context, now time.Time) error {
	cutoff := now.Add(-s.Retention)
	started := time.Now()

	stats, objErr := s.Objects.Sweep(ctx, cutoff)
	if objErr != nil {
		objErr = fmt.Errorf("sweep objects: %w", objErr)
	}
	pruned, rateErr := s.State.PruneRates(ctx, cutoff)
	if rateErr != nil {
		rateErr = fmt.Errorf("prune rate log: %w", rateErr)
	}
	stats.RatesPruned = pruned
	err := errors.Join(objErr, rateErr)

	if m := s.Metrics; m != nil {
		m.SweepRuns.Inc()
		m.ObjectsExpired.Add(float64(stats.Removed))
		m.RatesPruned.Add(float64(stats.RatesPruned))
		m.SweepDuration.Observe(time.Since(started).Seconds())
		if err != nil {
			m.SweepFailures.Inc()
		}
	}

	ev := s.Logger.Info()
	if err != nil {
		ev = s.Logger.Error().Err(err)
	}
	ev.Time("cutoff", cutoff).
		Int("scanned", stats.Scanned).
		Int("expired", stats.Removed).
		Int("temps_removed", stats.TempsRemoved).
		Int("rates_pruned", stats.RatesPruned).
		Dur("took", time.Since(started)).
		Msg("retention sweep finished")

	return err
}

// Trigger запускает MaybeRun в фоне и сразу возвращается. Одновременно
// выполняется не больше одного фонового прохода.
func (s *Sweeper) Trigger() {
	if !s.running.CompareAndSwap(false, true) {
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.running.Store(false)
		defer func() {
			if r := recover(); r != nil {
				s.Logger.Error().Interface("panic", r).Msg("retention sweep panicked")
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
		defer cancel()
		if _, err := s.MaybeRun(ctx); err != nil {
			s.Logger.Error().Err(err).Msg("retention sweep failed")
		}
	}()
}

// Wait дожидается завершения фоновых проходов.
func (s *Sweeper) Wait() {
	s.wg.Wait()
}

// Start стартует периодическую проверку: каждые check вызывается Trigger.
// Возвращаемая функция останавливает цикл и ждёт текущий проход.
func (s *Sweeper) Start(check time.Duration) func() {
	if check <= 0 {
		return func() {}
	}

	ticker := time.NewTicker(check)
	stop := make(chan struct{})
	var once sync.Once
	go func() {
		for {
			select {
			case <-ticker.C:
				s.Trigger()
			case <-stop:
				ticker.Stop()
				return
			}
		}
	}()

	return func() {
		once.Do(func() {
			close(stop)
			s.Wait()
		})
	}
}
