package resthttp

import (
	"context"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/sir_venger/minibackup/internal/config"
	"github.com/sir_venger/minibackup/internal/metrics"
	"github.com/sir_venger/minibackup/internal/objstore"
	"github.com/sir_venger/minibackup/internal/ratelimit"
	"github.com/sir_venger/minibackup/internal/state"
	"github.com/sir_venger/minibackup/internal/sweeper"
	"github.com/sir_venger/minibackup/internal/usecase/blobsvc"
)

type (
	// Limiter решает, пропустить ли изменяющий запрос с адреса.
	Limiter interface {
		Allow(ctx context.Context, addr string) error
	}

	// Sweeper запускает очистку, если подошёл срок.
	Sweeper interface {
		Trigger()
	}

	// HealthSource отдаёт статистику хранилища для /health.
	HealthSource interface {
		Stats(ctx context.Context) (int, int64, error)
	}
)

type Deps struct {
	Blobs    blobsvc.Service
	Limiter  Limiter
	Sweeper  Sweeper
	Health   HealthSource
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
	Logger   zerolog.Logger

	// TrustProxy разрешает брать адрес клиента и признак HTTPS из заголовков прокси.
	TrustProxy bool
	// AllowInsecure считает любой запрос пришедшим по HTTPS (только для разработки).
	AllowInsecure bool
}

type Server struct {
	Deps

	closeFn func() error
}

// New собирает сервер из готовых зависимостей.
func New(deps Deps) *Server {
	return &Server{Deps: deps}
}

// NewServer конструктор: открывает хранилища, запускает фоновую очистку и
// возвращает готовый обработчик.
func NewServer(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (http.Handler, *Server, error) {
	if err := os.MkdirAll(cfg.ObjectsDir(), 0o755); err != nil {
		return nil, nil, err
	}

	st, err := state.Open(ctx, cfg.StateDSN)
	if err != nil {
		return nil, nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	objects := objstore.New(cfg.ObjectsDir(), objstore.WithLogger(component(logger, "objstore")))

	sw := sweeper.New(objects, st)
	sw.Logger = component(logger, "sweeper")
	sw.Metrics = m
	stopSweeper := sw.Start(cfg.SweepCheckInterval)

	srv := New(Deps{
		Blobs: blobsvc.New(blobsvc.Deps{
			Objects: objects,
			Salt:    st,
			Logger:  component(logger, "blobsvc"),
		}),
		Limiter:       ratelimit.New(st),
		Sweeper:       sw,
		Health:        objects,
		Metrics:       m,
		Gatherer:      reg,
		Logger:        logger,
		TrustProxy:    cfg.TrustProxy,
		AllowInsecure: cfg.AllowInsecure,
	})
	srv.closeFn = func() error {
		stopSweeper()
		sw.Wait()
		return st.Close()
	}

	return srv.Routes(), srv, nil
}

// Close останавливает фоновую очистку и закрывает хранилище состояния.
func (s *Server) Close() error {
	if s.closeFn == nil {
		return nil
	}
	return s.closeFn()
}

// Routes регистрирует обработчики. Изменяющие запросы сначала проходят
// ограничитель, затем каждый запрос к блобам даёт шанс запустить очистку.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	if s.TrustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(
		hlog.NewHandler(s.Logger),
		hlog.RemoteAddrHandler("ip"),
		hlog.AccessHandler(s.observe),
		middleware.Recoverer,
	)

	r.Get("/health", s.health)
	if s.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.Gatherer, promhttp.HandlerOpts{}))
	}

	r.With(s.sweep).Get("/", s.getBlob)
	r.Group(func(r chi.Router) {
		r.Use(s.rateLimit, s.sweep, limitBody)
		r.Post("/", s.postBlob)
		r.Put("/", s.putBlob)
		r.Delete("/", s.deleteBlob)
	})

	return r
}

// observe пишет access-лог и обновляет метрики запросов.
func (s *Server) observe(r *http.Request, status, size int, took time.Duration) {
	hlog.FromRequest(r).Info().
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Int("status", status).
		Int("size", size).
		Dur("took", took).
		Msg("request")

	if s.Metrics != nil {
		s.Metrics.Requests.WithLabelValues(r.Method, strconv.Itoa(status)).Inc()
		s.Metrics.Duration.WithLabelValues(r.Method).Observe(took.Seconds())
	}
}

func component(l zerolog.Logger, name string) zerolog.Logger {
	return l.With().Str("component", name).Logger()
}
