package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/snarg/lectern/internal/config"
	"github.com/snarg/lectern/internal/ingest"
	"github.com/snarg/lectern/internal/metrics"
	"github.com/snarg/lectern/internal/mqttclient"
	"github.com/snarg/lectern/internal/store"
	"github.com/snarg/lectern/internal/transcribe"
)

// Services are the live components the API serves. Only DB is required;
// nil services degrade to not_configured or 503 on their routes.
type Services struct {
	DB      *store.DB
	Syncer  *ingest.Syncer
	Watcher *ingest.Watcher
	Bus     *ingest.EventBus
	Pool    *transcribe.WorkerPool
	MQTT    *mqttclient.Subscriber
}

type Server struct {
	http *http.Server
	log  zerolog.Logger
}

func NewServer(cfg *config.Config, svc Services, version string, startTime time.Time, log zerolog.Logger) *Server {
	r := chi.NewRouter()

	// Recoverer sits inside Logger so panic logs carry the request context.
	r.Use(RequestID)
	r.Use(Logger(log))
	r.Use(Recoverer)
	r.Use(CORSWithOrigins(splitOrigins(cfg.CORSOrigins)))
	r.Use(metrics.InstrumentHandler)
	if cfg.RateRPS > 0 {
		r.Use(RateLimiter(cfg.RateRPS, cfg.RateBurst))
	}

	health := NewHealthHandler(svc.DB, svc.MQTT, svc.Watcher, svc.Pool, version, startTime)
	r.Get("/healthz", health.ServeHTTP)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Route("/api/v1", func(r chi.Router) {
		NewSearchHandler(svc.DB).Routes(r)
		NewTranscriptsHandler(svc.DB).Routes(r)
		NewStatsHandler(svc.DB).Routes(r)
		NewEventsHandler(svc.Bus).Routes(r)

		// Mutating routes require a configured token.
		r.Group(func(r chi.Router) {
			r.Use(RequireAuth(cfg.AuthToken))
			r.Use(BearerAuth(cfg.AuthToken))
			NewSyncHandler(svc.Syncer, cfg.TranscriptsDir).Routes(r)
		})
	})

	return &Server{
		http: &http.Server{
			Addr:         cfg.HTTPAddr,
			Handler:      r,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
		log: log,
	}
}

func (s *Server) Start() error {
	s.log.Info().Str("addr", s.http.Addr).Msg("http server starting")
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("http server shutting down")
	return s.http.Shutdown(ctx)
}

func splitOrigins(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
