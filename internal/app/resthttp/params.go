package resthttp

import (
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"

	"github.com/sir_venger/minibackup/internal/models"
	"github.com/sir_venger/minibackup/pkg/blobproto"
)

const octetStream = "application/octet-stream"

// params собирает параметры запроса: сначала query, поверх них тело.
// Тело разбирается как url-encoded форма для всех методов, включая DELETE,
// для которого net/http форму не читает. Тело application/octet-stream
// целиком считается полем data.
func params(r *http.Request) (url.Values, error) {
	vals := url.Values{}
	for k, v := range r.URL.Query() {
		vals[k] = v
	}
	if r.Body == nil || r.Body == http.NoBody {
		return vals, nil
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return vals, nil
	}

	ct := r.Header.Get("Content-Type")
	if ct != "" {
		if ct, _, err = mime.ParseMediaType(ct); err != nil {
			return nil, fmt.Errorf("%w: content type: %v", models.ErrMalformed, err)
		}
	}

	switch ct {
	case "", blobproto.FormContentType:
		form, err := url.ParseQuery(string(body))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrMalformed, err)
		}
		for k, v := range form {
			vals[k] = v
		}
	case octetStream:
		vals.Set(blobproto.ParamData, string(body))
	default:
		return nil, fmt.Errorf("%w: unsupported content type %q", models.ErrMalformed, ct)
	}
	return vals, nil
}
