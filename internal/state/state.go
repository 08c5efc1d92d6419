// Package state хранит общие для процесса записи: соль установки, журнал запросов
// по IP и отметку последней очистки. Каждая операция, совмещающая проверку и
// запись, выполняется атомарно на стороне бэкенда.
package state

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Store: бэкенд общих записей сервиса.
type Store interface {
	// Salt возвращает соль установки, создавая её при первом обращении.
	// Конкурентные первые вызовы получают одно и то же значение.
	Salt(ctx context.Context) (string, error)
	// TouchRate записывает now для addr, если с прошлой записи прошло не меньше
	// interval, и возвращает true. Иначе журнал не меняется и возвращается false.
	TouchRate(ctx context.Context, addr string, now time.Time, interval time.Duration) (bool, error)
	// PruneRates удаляет записи журнала старше before.
	PruneRates(ctx context.Context, before time.Time) (int, error)
	// ClaimSweep переводит отметку очистки на now, если с прошлой очистки прошло
	// больше every, и сообщает, удалось ли её занять.
	ClaimSweep(ctx context.Context, now time.Time, every time.Duration) (bool, error)
	Close() error
}

// Open выбирает бэкенд по схеме DSN: memory://, bolt://<path> или postgres://.
func Open(ctx context.Context, dsn string) (Store, error) {
	dsn = strings.TrimSpace(dsn)
	switch {
	case dsn == "":
		return nil, fmt.Errorf("state dsn is empty")
	case strings.HasPrefix(dsn, "memory://"):
		return NewMemoryStore(), nil
	case strings.HasPrefix(dsn, "bolt://"):
		return OpenBolt(strings.TrimPrefix(dsn, "bolt://"))
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return OpenPostgres(ctx, dsn)
	default:
		return nil, fmt.Errorf("unsupported state dsn %q", dsn)
	}
}
