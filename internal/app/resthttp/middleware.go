package resthttp

import (
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/sir_venger/minibackup/internal/models"
	"github.com/sir_venger/minibackup/pkg/blobproto"
	"github.com/sir_venger/minibackup/pkg/httperrors"
)

// maxBody ограничивает тело запроса: данные в url-encoded форме могут занимать
// до трёх байт на исходный байт, плюс остальные параметры.
const maxBody = 3*blobproto.MaxDataSize + 4<<10

// rateLimit отклоняет изменяющий запрос, если адрес обращался меньше секунды назад.
func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.Limiter != nil {
			if err := s.Limiter.Allow(r.Context(), clientAddr(r)); err != nil {
				if s.Metrics != nil && errors.Is(err, models.ErrRateLimited) {
					s.Metrics.RateLimited.Inc()
				}
				httperrors.Write(w, r, err)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// sweep даёт очистке шанс запуститься; сам проход идёт в фоне.
func (s *Server) sweep(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.Sweeper != nil {
			s.Sweeper.Trigger()
		}
		next.ServeHTTP(w, r)
	})
}

func limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxBody)
		next.ServeHTTP(w, r)
	})
}

// clientAddr возвращает IP клиента без порта. При TrustProxy RemoteAddr уже
// переписан middleware.RealIP.
func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// secure сообщает, пришёл ли запрос по зашифрованному каналу.
func (s *Server) secure(r *http.Request) bool {
	if s.AllowInsecure || r.TLS != nil {
		return true
	}
	return s.TrustProxy && strings.EqualFold(r.Header.Get(blobproto.HeaderForwardedProto), "https")
}
