// Package ratelimit ограничивает частоту изменяющих запросов с одного адреса.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/sir_venger/minibackup/internal/models"
)

// DefaultInterval: минимальный промежуток между изменяющими запросами одного адреса.
const DefaultInterval = time.Second

// RateLog: журнал последних запросов по адресам с атомарной проверкой и записью.
type RateLog interface {
	TouchRate(ctx context.Context, addr string, now time.Time, interval time.Duration) (bool, error)
}

// Limiter пропускает не больше одного изменяющего запроса в Interval с адреса.
type Limiter struct {
	Log      RateLog
	Interval time.Duration
	Now      func() time.Time
}

// New создаёт ограничитель с интервалом по умолчанию.
func New(log RateLog) *Limiter {
	return &Limiter{Log: log, Interval: DefaultInterval, Now: time.Now}
}

// Allow возвращает models.ErrRateLimited, если addr обращался слишком недавно.
// Отклонённый запрос журнал не меняет.
func (l *Limiter) Allow(ctx context.Context, addr string) error {
	ok, err := l.Log.TouchRate(ctx, addr, l.Now(), l.Interval)
	if err != nil {
		return fmt.Errorf("rate log: %w", err)
	}
	if !ok {
		return models.ErrRateLimited
	}
	return nil
}
