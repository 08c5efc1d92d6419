package blobsvc

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/sir_venger/minibackup/internal/models"
	"github.com/sir_venger/minibackup/pkg/blobproto"
)

type (
	// ObjectStore хранилище блобов по ключу
	ObjectStore interface {
		Create(key string, data []byte) error
		Read(key string) ([]byte, error)
		Update(key string, data []byte) error
		Delete(key string) error
	}

	// SaltSource отдаёт соль установки.
	SaltSource interface {
		Salt(ctx context.Context) (string, error)
	}

	// Service объединяет операции над блобами вместе с проверкой прав.
	Service interface {
		Create(ctx context.Context, req CreateRequest) (models.Created, error)
		Get(ctx context.Context, key string) ([]byte, error)
		Update(ctx context.Context, req UpdateRequest) error
		Delete(ctx context.Context, req DeleteRequest) error
	}
)

// CreateRequest: параметры POST.
type CreateRequest struct {
	Data   []byte
	Addr   string
	Secure bool
}

// Auth: ровно одно из полей должно быть заполнено.
type Auth struct {
	Token    string
	AdminKey string
}

// UpdateRequest: параметры PUT.
type UpdateRequest struct {
	Key    string
	Data   []byte
	Secure bool
	Auth
}

// DeleteRequest: параметры DELETE.
type DeleteRequest struct {
	Key    string
	Secure bool
	Auth
}

type Deps struct {
	Objects ObjectStore
	Salt    SaltSource
	Now     func() time.Time
	MaxSize int
	Logger  zerolog.Logger
}

type Blobs struct {
	Deps

	saltMu sync.Mutex
	salt   string
}

// New конструирует сервис с заданными зависимостями.
func New(deps Deps) *Blobs {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.MaxSize <= 0 {
		deps.MaxSize = blobproto.MaxDataSize
	}
	return &Blobs{Deps: deps}
}

var _ Service = (*Blobs)(nil)

// serverSalt читает соль один раз и дальше отдаёт закешированное значение.
func (s *Blobs) serverSalt(ctx context.Context) (string, error) {
	s.saltMu.Lock()
	defer s.saltMu.Unlock()
	if s.salt != "" {
		return s.salt, nil
	}
	salt, err := s.Salt.Salt(ctx)
	if err != nil {
		return "", err
	}
	s.salt = salt
	return salt, nil
}

func (s *Blobs) checkData(data []byte) error {
	if len(data) == 0 {
		return models.ErrEmptyData
	}
	if len(data) > s.MaxSize {
		return models.ErrTooLarge
	}
	return nil
}
