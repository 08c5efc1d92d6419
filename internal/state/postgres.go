package state

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sir_venger/minibackup/internal/keys"
)

const (
	saltTable    = "server_salt"
	rateTable    = "rate_log"
	cleanupTable = "cleanup_marker"
	singletonID  = 1
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// PGStore хранит записи в Postgres. Атомарность обеспечивают условные upsert'ы:
// ON CONFLICT DO UPDATE блокирует строку, а WHERE решает, менять ли её.
type PGStore struct {
	pool *pgxpool.Pool
}

var _ Store = (*PGStore)(nil)

// OpenPostgres создаёт пул подключений. Таблицы создаются командой migrate.
func OpenPostgres(ctx context.Context, dsn string) (*PGStore, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("state dsn is empty")
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}

	return &PGStore{pool: pool}, nil
}

func (s *PGStore) Salt(ctx context.Context) (string, error) {
	fresh, err := keys.NewSalt()
	if err != nil {
		return "", err
	}

	insertSQL, args, err := psql.
		Insert(saltTable).
		Columns("id", "salt").
		Values(singletonID, fresh).
		Suffix("ON CONFLICT (id) DO NOTHING").
		ToSql()
	if err != nil {
		return "", fmt.Errorf("build salt insert: %w", err)
	}
	if _, err := s.pool.Exec(ctx, insertSQL, args...); err != nil {
		return "", fmt.Errorf("insert salt: %w", err)
	}

	selectSQL, args, err := psql.
		Select("salt").
		From(saltTable).
		Where(sq.Eq{"id": singletonID}).
		ToSql()
	if err != nil {
		return "", fmt.Errorf("build salt select: %w", err)
	}

	var salt string
	if err := s.pool.QueryRow(ctx, selectSQL, args...).Scan(&salt); err != nil {
		return "", fmt.Errorf("select salt: %w", err)
	}
	return salt, nil
}

func (s *PGStore) TouchRate(ctx context.Context, addr string, now time.Time, interval time.Duration) (bool, error) {
	sqlStr, args, err := psql.
		Insert(rateTable).
		Columns("addr", "last_seen").
		Values(addr, now).
		Suffix(`
			ON CONFLICT (addr) DO UPDATE
			SET last_seen = EXCLUDED.last_seen
			WHERE rate_log.last_seen <= ?
			RETURNING addr`, now.Add(-interval)).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build rate upsert: %w", err)
	}

	var got string
	if err := s.pool.QueryRow(ctx, sqlStr, args...).Scan(&got); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("rate upsert: %w", err)
	}
	return true, nil
}

func (s *PGStore) PruneRates(ctx context.Context, before time.Time) (int, error) {
	sqlStr, args, err := psql.
		Delete(rateTable).
		Where(sq.Lt{"last_seen": before}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build rate prune: %w", err)
	}

	tag, err := s.pool.Exec(ctx, sqlStr, args...)
	if err != nil {
		return 0, fmt.Errorf("prune rates: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *PGStore) ClaimSweep(ctx context.Context, now time.Time, every time.Duration) (bool, error) {
	sqlStr, args, err := psql.
		Insert(cleanupTable).
		Columns("id", "last_run").
		Values(singletonID, now).
		Suffix(`
			ON CONFLICT (id) DO UPDATE
			SET last_run = EXCLUDED.last_run
			WHERE cleanup_marker.last_run < ?
			RETURNING id`, now.Add(-every)).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build sweep claim: %w", err)
	}

	var id int
	if err := s.pool.QueryRow(ctx, sqlStr, args...).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("claim sweep: %w", err)
	}
	return true, nil
}

// Close освобождает подключения пула.
func (s *PGStore) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}
