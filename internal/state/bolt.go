package state

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/sir_venger/minibackup/internal/keys"
)

var (
	metaBucket  = []byte("meta")
	ratesBucket = []byte("rates")

	saltKey      = []byte("salt")
	lastSweepKey = []byte("last_sweep")
)

// BoltStore хранит записи во встроенной базе bbolt. Пишущие транзакции bbolt
// выполняются строго по одной, поэтому проверка и запись внутри Update атомарны.
type BoltStore struct {
	db *bolt.DB
}

var _ Store = (*BoltStore)(nil)

// OpenBolt открывает (или создаёт) файл базы по пути path.
func OpenBolt(path string) (*BoltStore, error) {
	if path == "" {
		return nil, fmt.Errorf("bolt path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{metaBucket, ratesBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init bolt buckets: %w", err)
	}

	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Salt(context.Context) (string, error) {
	var salt string
	err := s.db.View(func(tx *bolt.Tx) error {
		salt = string(tx.Bucket(metaBucket).Get(saltKey))
		return nil
	})
	if err != nil || salt != "" {
		return salt, err
	}

	err = s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(metaBucket)
		if v := b.Get(saltKey); v != nil {
			salt = string(v)
			return nil
		}
		fresh, err := keys.NewSalt()
		if err != nil {
			return err
		}
		salt = fresh
		return b.Put(saltKey, []byte(fresh))
	})
	return salt, err
}

func (s *BoltStore) TouchRate(_ context.Context, addr string, now time.Time, interval time.Duration) (bool, error) {
	allowed := false
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(ratesBucket)
		if v := b.Get([]byte(addr)); v != nil && now.Sub(decodeTime(v)) < interval {
			return nil
		}
		allowed = true
		return b.Put([]byte(addr), encodeTime(now))
	})
	return allowed, err
}

func (s *BoltStore) PruneRates(_ context.Context, before time.Time) (int, error) {
	n := 0
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(ratesBucket)
		var stale [][]byte
		err := b.ForEach(func(k, v []byte) error {
			if decodeTime(v).Before(before) {
				stale = append(stale, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, k := range stale {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		n = len(stale)
		return nil
	})
	return n, err
}

func (s *BoltStore) ClaimSweep(_ context.Context, now time.Time, every time.Duration) (bool, error) {
	claimed := false
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(metaBucket)
		if v := b.Get(lastSweepKey); v != nil && now.Sub(decodeTime(v)) <= every {
			return nil
		}
		claimed = true
		return b.Put(lastSweepKey, encodeTime(now))
	})
	return claimed, err
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

func encodeTime(t time.Time) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(t.UnixNano()))
	return b
}

func decodeTime(b []byte) time.Time {
	if len(b) != 8 {
		return time.Time{}
	}
	return time.Unix(0, int64(binary.BigEndian.Uint64(b)))
}
