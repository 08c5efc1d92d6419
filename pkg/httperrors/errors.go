// Package httperrors переводит ошибки сервиса в HTTP-ответы с JSON-телом,
// в котором поле status всегда совпадает с кодом ответа.
package httperrors

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/hlog"

	"github.com/sir_venger/minibackup/internal/models"
	"github.com/sir_venger/minibackup/pkg/blobproto"
)

// Body: тело ответа с сообщением.
type Body struct {
	Message string `json:"message"`
	Status  int    `json:"status"`
}

var known = []struct {
	err     error
	status  int
	message string
}{
	{models.ErrNotFound, http.StatusNotFound, blobproto.MsgNotFound},
	{models.ErrMalformed, http.StatusBadRequest, "Malformed request"},
	{models.ErrEmptyData, http.StatusBadRequest, "You cannot store empty data"},
	{models.ErrTooLarge, http.StatusRequestEntityTooLarge, "Storage is limited to 64Kb"},
	{models.ErrMissingKey, http.StatusBadRequest, "You need to provide a key"},
	{models.ErrAuthChoice, http.StatusBadRequest, "You need to provide either the admin key or a valid token"},
	{models.ErrInsecure, http.StatusForbidden, "This operation is only allowed over HTTPS"},
	{models.ErrWrongAdminKey, http.StatusForbidden, "Wrong admin key"},
	{models.ErrBadToken, http.StatusForbidden, "Bad token."},
	{models.ErrCollision, http.StatusInternalServerError, blobproto.MsgCollision},
	{models.ErrRateLimited, http.StatusTooManyRequests, blobproto.MsgRateLimited},
}

// Status возвращает HTTP-код и сообщение для ошибки.
func Status(err error) (int, string) {
	for _, k := range known {
		if errors.Is(err, k.err) {
			return k.status, k.message
		}
	}
	var tooBig *http.MaxBytesError
	if errors.As(err, &tooBig) {
		return http.StatusRequestEntityTooLarge, "Storage is limited to 64Kb"
	}
	return http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError)
}

// Write пишет ответ об ошибке. Внутренние ошибки логируются, но клиенту
// отдаётся только общее сообщение.
func Write(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := Status(err)
	if status == http.StatusInternalServerError && !errors.Is(err, models.ErrCollision) {
		hlog.FromRequest(r).Error().Err(err).Msg("request failed")
	}
	WriteJSON(w, status, Body{Message: msg, Status: status})
}

// WriteJSON пишет v как JSON с кодом status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
