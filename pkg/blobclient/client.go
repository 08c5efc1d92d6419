// Package blobclient: Go-клиент HTTP-сервиса блобов.
package blobclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sir_venger/minibackup/internal/keys"
	"github.com/sir_venger/minibackup/pkg/blobproto"
	"github.com/sir_venger/minibackup/pkg/httperrors"
)

// Created: ключи нового блоба.
type Created struct {
	Key      string `json:"key"`
	AdminKey string `json:"admin_key"`
}

// Error: ответ сервиса с кодом не из 2xx.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("blob service: %d %s", e.Status, e.Message)
}

// IsStatus сообщает, что err: ответ сервиса с кодом status.
func IsStatus(err error, status int) bool {
	var e *Error
	return errors.As(err, &e) && e.Status == status
}

type Client interface {
	// Create сохраняет данные и возвращает ключ и ключ администратора.
	Create(ctx context.Context, data []byte) (Created, error)
	// Get читает блоб.
	Get(ctx context.Context, key string) ([]byte, error)
	UpdateWithAdminKey(ctx context.Context, key, adminKey string, data []byte) error
	// UpdateWithToken подписывает запрос токеном, вычисленным из adminKey, и
	// не передаёт сам ключ администратора.
	UpdateWithToken(ctx context.Context, key, adminKey string, data []byte) error
	DeleteWithAdminKey(ctx context.Context, key, adminKey string) error
	DeleteWithToken(ctx context.Context, key, adminKey string) error
}

type Option func(*httpClient)

// WithHTTPClient подменяет http.Client (например, клиентом httptest.Server).
func WithHTTPClient(c *http.Client) Option {
	return func(h *httpClient) { h.c = c }
}

// WithClock задаёт часы, по которым считаются токены.
func WithClock(now func() time.Time) Option {
	return func(h *httpClient) { h.now = now }
}

type httpClient struct {
	c       *http.Client
	baseURL string
	now     func() time.Time
}

// New создаёт клиент сервиса, доступного по baseURL.
func New(baseURL string, opts ...Option) Client {
	h := &httpClient{
		c:       &http.Client{Timeout: 30 * time.Second},
		baseURL: strings.TrimRight(baseURL, "/"),
		now:     time.Now,
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

func (h *httpClient) Create(ctx context.Context, data []byte) (Created, error) {
	var out Created
	err := h.send(ctx, http.MethodPost, url.Values{blobproto.ParamData: {string(data)}}, &out)
	return out, err
}

func (h *httpClient) Get(ctx context.Context, key string) ([]byte, error) {
	u := h.baseURL + "/?" + url.Values{blobproto.ParamKey: {key}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	resp, err := h.c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, decodeError(resp)
	}
	return io.ReadAll(io.LimitReader(resp.Body, blobproto.MaxDataSize+1))
}

func (h *httpClient) UpdateWithAdminKey(ctx context.Context, key, adminKey string, data []byte) error {
	return h.send(ctx, http.MethodPut, url.Values{
		blobproto.ParamKey:      {key},
		blobproto.ParamData:     {string(data)},
		blobproto.ParamAdminKey: {adminKey},
	}, nil)
}

func (h *httpClient) UpdateWithToken(ctx context.Context, key, adminKey string, data []byte) error {
	return h.send(ctx, http.MethodPut, url.Values{
		blobproto.ParamKey:   {key},
		blobproto.ParamData:  {string(data)},
		blobproto.ParamToken: {h.token(adminKey, keys.PutMessage(key, data))},
	}, nil)
}

func (h *httpClient) DeleteWithAdminKey(ctx context.Context, key, adminKey string) error {
	return h.send(ctx, http.MethodDelete, url.Values{
		blobproto.ParamKey:      {key},
		blobproto.ParamAdminKey: {adminKey},
	}, nil)
}

func (h *httpClient) DeleteWithToken(ctx context.Context, key, adminKey string) error {
	return h.send(ctx, http.MethodDelete, url.Values{
		blobproto.ParamKey:   {key},
		blobproto.ParamToken: {h.token(adminKey, keys.DeleteMessage(key))},
	}, nil)
}

func (h *httpClient) token(adminKey, message string) string {
	return keys.Token(adminKey, keys.Bucket(h.now()), message)
}

// send отправляет форму и, если out не nil, декодирует в него JSON-ответ.
func (h *httpClient) send(ctx context.Context, method string, form url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, h.baseURL+"/", strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", blobproto.FormContentType)

	resp, err := h.c.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		return decodeError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", method, err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	e := &Error{Status: resp.StatusCode, Message: resp.Status}
	var body httperrors.Body
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4<<10)).Decode(&body); err == nil && body.Message != "" {
		e.Message = body.Message
	}
	return e
}
