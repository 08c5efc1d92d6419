package httperrors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sir_venger/minibackup/internal/models"
)

func TestWrite(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{models.ErrNotFound, http.StatusNotFound},
		{fmt.Errorf("update: %w", models.ErrNotFound), http.StatusNotFound},
		{models.ErrEmptyData, http.StatusBadRequest},
		{models.ErrTooLarge, http.StatusRequestEntityTooLarge},
		{&http.MaxBytesError{Limit: 10}, http.StatusRequestEntityTooLarge},
		{models.ErrAuthChoice, http.StatusBadRequest},
		{models.ErrInsecure, http.StatusForbidden},
		{models.ErrWrongAdminKey, http.StatusForbidden},
		{models.ErrBadToken, http.StatusForbidden},
		{models.ErrCollision, http.StatusInternalServerError},
		{models.ErrRateLimited, http.StatusTooManyRequests},
		{errors.New("disk is gone: /var/lib/secret"), http.StatusInternalServerError},
	}

	for _, c := range cases {
		rec := httptest.NewRecorder()
		Write(rec, httptest.NewRequest(http.MethodGet, "/", nil), c.err)

		if rec.Code != c.want {
			t.Errorf("%v: status %d, want %d", c.err, rec.Code, c.want)
			continue
		}
		var body Body
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
			t.Fatalf("%v: decode body: %v", c.err, err)
		}
		if body.Status != c.want || body.Message == "" {
			t.Errorf("%v: body %+v", c.err, body)
		}
		if body.Message == c.err.Error() && c.want == http.StatusInternalServerError {
			t.Errorf("internal error leaked: %q", body.Message)
		}
	}
}
