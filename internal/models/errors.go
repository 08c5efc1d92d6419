package models

import "errors"

// Ошибки хранилища объектов.
var (
	ErrNotFound      = errors.New("key not found")
	ErrAlreadyExists = errors.New("key already exists")
)

// Ошибки валидации и авторизации запросов.
var (
	ErrMalformed     = errors.New("malformed request")
	ErrEmptyData     = errors.New("empty data")
	ErrTooLarge      = errors.New("data too large")
	ErrMissingKey    = errors.New("missing key")
	ErrAuthChoice    = errors.New("either admin key or token required")
	ErrInsecure      = errors.New("encrypted transport required")
	ErrWrongAdminKey = errors.New("wrong admin key")
	ErrBadToken      = errors.New("bad token")
	ErrCollision     = errors.New("key collision")
	ErrRateLimited   = errors.New("rate limited")
)
