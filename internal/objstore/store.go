package objstore

import (
	"errors"
	"fmt"
	"hash/fnv"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/sir_venger/minibackup/internal/keys"
	"github.com/sir_venger/minibackup/internal/models"
)

const (
	lockStripes = 64
	tempPrefix  = ".pending-"
	dirPerm     = 0o755
	filePerm    = 0o644
)

// Store: шардированное хранилище объектов поверх afero.Fs.
type Store struct {
	fs     afero.Fs
	root   string
	now    func() time.Time
	logger zerolog.Logger

	locks [lockStripes]sync.Mutex
}

// Option настраивает Store.
type Option func(*Store)

// WithFs подменяет файловую систему (в тестах: afero.NewMemMapFs()).
func WithFs(fsys afero.Fs) Option {
	return func(s *Store) { s.fs = fsys }
}

// WithClock задаёт источник времени для отметок доступа.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLogger задаёт логгер.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// New создаёт хранилище с корнем root.
func New(root string, opts ...Option) *Store {
	s := &Store{
		fs:     afero.NewOsFs(),
		root:   root,
		now:    time.Now,
		logger: zerolog.Nop(),
	}
	for _, apply := range opts {
		apply(s)
	}
	return s
}

// Root возвращает корневой каталог хранилища.
func (s *Store) Root() string {
	return s.root
}

// Path возвращает путь к файлу объекта: <root>/<key[0:2]>/<key[2:4]>/<key>.
func (s *Store) Path(key string) string {
	return filepath.Join(s.root, key[:2], key[2:4], key)
}

func (s *Store) lock(key string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return &s.locks[h.Sum32()%lockStripes]
}

// Create записывает новый объект. Если ключ уже занят, возвращает models.ErrAlreadyExists
// и ничего не перезаписывает.
func (s *Store) Create(key string, data []byte) error {
	if !keys.ValidKey(key) {
		return fmt.Errorf("create %q: invalid key", key)
	}
	p := s.Path(key)

	mu := s.lock(key)
	mu.Lock()
	defer mu.Unlock()

	if ok, err := s.exists(p); err != nil {
		return err
	} else if ok {
		return models.ErrAlreadyExists
	}

	if err := s.fs.MkdirAll(filepath.Dir(p), dirPerm); err != nil {
		return fmt.Errorf("ensure shard dir for %q: %w", key, err)
	}
	return s.publish(p, data)
}

// Read возвращает содержимое объекта и обновляет время последнего доступа.
func (s *Store) Read(key string) ([]byte, error) {
	if !keys.ValidKey(key) {
		return nil, models.ErrNotFound
	}
	p := s.Path(key)

	mu := s.lock(key)
	mu.Lock()
	defer mu.Unlock()

	data, err := afero.ReadFile(s.fs, p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("read %q: %w", key, err)
	}
	if err := s.touch(p); err != nil {
		return nil, err
	}
	return data, nil
}

// Update перезаписывает существующий объект.
func (s *Store) Update(key string, data []byte) error {
	if !keys.ValidKey(key) {
		return models.ErrNotFound
	}
	p := s.Path(key)

	mu := s.lock(key)
	mu.Lock()
	defer mu.Unlock()

	if ok, err := s.exists(p); err != nil {
		return err
	} else if !ok {
		return models.ErrNotFound
	}
	return s.publish(p, data)
}

// Delete удаляет объект.
func (s *Store) Delete(key string) error {
	if !keys.ValidKey(key) {
		return models.ErrNotFound
	}
	p := s.Path(key)

	mu := s.lock(key)
	mu.Lock()
	defer mu.Unlock()

	if err := s.fs.Remove(p); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return models.ErrNotFound
		}
		return fmt.Errorf("remove %q: %w", key, err)
	}
	return nil
}

func (s *Store) exists(p string) (bool, error) {
	_, err := s.fs.Stat(p)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("stat %s: %w", p, err)
	}
}

// publish пишет данные во временный файл рядом с целевым и переименовывает его,
// поэтому читатели никогда не видят частично записанный объект.
// Вызывается под блокировкой ключа.
func (s *Store) publish(p string, data []byte) error {
	tmp := filepath.Join(filepath.Dir(p), tempPrefix+uuid.NewString())

	f, err := s.fs.OpenFile(tmp, os.O_CREATE|os.O_EXCL|os.O_WRONLY, filePerm)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err = f.Write(data); err == nil {
		err = f.Sync()
	}
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = s.fs.Remove(tmp)
		return fmt.Errorf("write temp file: %w", err)
	}

	if err := s.fs.Rename(tmp, p); err != nil {
		_ = s.fs.Remove(tmp)
		return fmt.Errorf("publish %s: %w", filepath.Base(p), err)
	}
	return s.touch(p)
}

func (s *Store) touch(p string) error {
	now := s.now()
	if err := s.fs.Chtimes(p, now, now); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return models.ErrNotFound
		}
		return fmt.Errorf("touch %s: %w", filepath.Base(p), err)
	}
	return nil
}

func isTemp(name string) bool {
	return strings.HasPrefix(name, tempPrefix)
}
