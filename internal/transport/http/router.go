// Package http implements the HTTP surface of spec §6: health, discovery
// listing, media/subtitle upload, range-capable byte serving, and the
// ambient Prometheus metrics endpoint.
package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/WShawnMing/WatchTogether/internal/discovery"
	"github.com/WShawnMing/WatchTogether/internal/mediastore"
	"github.com/WShawnMing/WatchTogether/internal/metrics"
	"github.com/WShawnMing/WatchTogether/internal/pendingupload"
	"github.com/WShawnMing/WatchTogether/internal/registry"
)

type Controller struct {
	registry           *registry.Registry
	discovery          *discovery.Service
	store              *mediastore.Store
	pending            *pendingupload.Table
	metrics            *metrics.Metrics
	startedAt          time.Time
	logger             *slog.Logger
	directStreamMaxBps int
	compatProxyEnabled bool

	wsHandler http.Handler
}

func NewController(
	reg *registry.Registry,
	disc *discovery.Service,
	store *mediastore.Store,
	pending *pendingupload.Table,
	m *metrics.Metrics,
	wsHandler http.Handler,
	directStreamMaxBps int,
	compatProxyEnabled bool,
	logger *slog.Logger,
) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	if directStreamMaxBps <= 0 {
		directStreamMaxBps = 900_000
	}

	return &Controller{
		registry:           reg,
		discovery:          disc,
		store:              store,
		pending:            pending,
		metrics:            m,
		startedAt:          time.Now(),
		logger:             logger,
		directStreamMaxBps: directStreamMaxBps,
		compatProxyEnabled: compatProxyEnabled,
		wsHandler:          wsHandler,
	}
}

func (c *Controller) Mux() http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.Recoverer)
	r.Use(chimw.RequestID)
	r.Use(cors.AllowAll().Handler)

	r.Get("/api/health", c.health)
	r.Get("/api/discovery", c.listDiscovery)
	r.Get("/api/discovery/nearby", c.listNearbyDiscovery)
	if c.metrics != nil {
		r.Get("/api/metrics", c.metricsHandler)
	}

	r.Route("/api/rooms/{roomId}", func(r chi.Router) {
		r.Post("/media", c.uploadMedia)
		r.Post("/subtitle", c.uploadSubtitle)
		r.Get("/media/{mediaId}", c.serveMedia)
		r.Get("/subtitles/{subtitleId}", c.serveSubtitle)
	})

	r.Get("/api/ws", func(w http.ResponseWriter, req *http.Request) {
		c.wsHandler.ServeHTTP(w, req)
	})

	return r
}

func (c *Controller) metricsHandler(w http.ResponseWriter, r *http.Request) {
	c.metrics.Handler(func() {
		c.metrics.SetActiveRooms(c.registry.Count())
	}).ServeHTTP(w, r)
}
