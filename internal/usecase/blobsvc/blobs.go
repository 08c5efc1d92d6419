package blobsvc

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"

	"github.com/sir_venger/minibackup/internal/keys"
	"github.com/sir_venger/minibackup/internal/models"
)

// Create сохраняет новый блоб и возвращает его ключ и ключ администратора.
// Если выведенный ключ уже занят, возвращает models.ErrCollision: повтор запроса
// позже даст другой ключ.
func (s *Blobs) Create(ctx context.Context, req CreateRequest) (models.Created, error) {
	if !req.Secure {
		return models.Created{}, models.ErrInsecure
	}
	if err := s.checkData(req.Data); err != nil {
		return models.Created{}, err
	}

	salt, err := s.serverSalt(ctx)
	if err != nil {
		return models.Created{}, fmt.Errorf("server salt: %w", err)
	}

	key := keys.DeriveKey(req.Data, s.Now(), req.Addr)
	if err := s.Objects.Create(key, req.Data); err != nil {
		if errors.Is(err, models.ErrAlreadyExists) {
			s.Logger.Warn().Str("key", key).Msg("key collision on create")
			return models.Created{}, models.ErrCollision
		}
		return models.Created{}, err
	}

	s.Logger.Debug().Str("key", key).Int("size", len(req.Data)).Msg("object created")
	return models.Created{Key: key, AdminKey: keys.AdminKey(key, salt)}, nil
}

// Get возвращает содержимое блоба.
func (s *Blobs) Get(_ context.Context, key string) ([]byte, error) {
	return s.Objects.Read(key)
}

// Update перезаписывает блоб при предъявлении ключа администратора или токена.
func (s *Blobs) Update(ctx context.Context, req UpdateRequest) error {
	if err := s.checkData(req.Data); err != nil {
		return err
	}
	if req.Key == "" {
		return models.ErrMissingKey
	}
	if err := s.authorize(ctx, req.Key, req.Auth, keys.PutMessage(req.Key, req.Data), req.Secure); err != nil {
		return err
	}

	if err := s.Objects.Update(req.Key, req.Data); err != nil {
		return err
	}
	s.Logger.Debug().Str("key", req.Key).Int("size", len(req.Data)).Msg("object updated")
	return nil
}

// Delete удаляет блоб при предъявлении ключа администратора или токена.
func (s *Blobs) Delete(ctx context.Context, req DeleteRequest) error {
	if req.Key == "" {
		return models.ErrMissingKey
	}
	if err := s.authorize(ctx, req.Key, req.Auth, keys.DeleteMessage(req.Key), req.Secure); err != nil {
		return err
	}

	if err := s.Objects.Delete(req.Key); err != nil {
		return err
	}
	s.Logger.Debug().Str("key", req.Key).Msg("object deleted")
	return nil
}

// authorize проверяет либо ключ администратора (только по зашифрованному
// каналу), либо токен, подписанный ключом администратора.
func (s *Blobs) authorize(ctx context.Context, key string, auth Auth, message string, secure bool) error {
	if (auth.Token == "") == (auth.AdminKey == "") {
		return models.ErrAuthChoice
	}

	salt, err := s.serverSalt(ctx)
	if err != nil {
		return fmt.Errorf("server salt: %w", err)
	}
	want := keys.AdminKey(key, salt)

	if auth.AdminKey != "" {
		if !secure {
			return models.ErrInsecure
		}
		if subtle.ConstantTimeCompare([]byte(auth.AdminKey), []byte(want)) != 1 {
			return models.ErrWrongAdminKey
		}
		return nil
	}

	if !keys.ValidToken(want, auth.Token, message, s.Now()) {
		return models.ErrBadToken
	}
	return nil
}
