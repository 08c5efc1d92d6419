package resthttp

import (
	"net/http"

	"github.com/sir_venger/minibackup/pkg/httperrors"
)

// healthStats: payload ответа /health.
type healthStats struct {
	OK         bool  `json:"ok"`
	Objects    int   `json:"objects"`
	TotalBytes int64 `json:"total_bytes"`
	Status     int   `json:"status"`
}

// health возвращает агрегированную статистику по хранилищу.
func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if s.Health == nil {
		httperrors.WriteJSON(w, http.StatusOK, healthStats{OK: true, Status: http.StatusOK})
		return
	}

	count, total, err := s.Health.Stats(r.Context())
	if err != nil {
		httperrors.Write(w, r, err)
		return
	}

	httperrors.WriteJSON(w, http.StatusOK, healthStats{
		OK:         true,
		Objects:    count,
		TotalBytes: total,
		Status:     http.StatusOK,
	})
}
