// Package app wires config into the concrete Room Registry, Discovery
// Service, HTTP surface and websocket surface, and runs the process until
// a shutdown signal arrives (adapted from sharetube-server's
// internal/app/app.go).
package app

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/WShawnMing/WatchTogether/internal/clock"
	"github.com/WShawnMing/WatchTogether/internal/discovery"
	"github.com/WShawnMing/WatchTogether/internal/mediastore"
	"github.com/WShawnMing/WatchTogether/internal/metrics"
	"github.com/WShawnMing/WatchTogether/internal/pendingupload"
	persistredis "github.com/WShawnMing/WatchTogether/internal/persistence/redis"
	"github.com/WShawnMing/WatchTogether/internal/registry"
	"github.com/WShawnMing/WatchTogether/internal/room"
	httptransport "github.com/WShawnMing/WatchTogether/internal/transport/http"
	"github.com/WShawnMing/WatchTogether/internal/transport/ws"
	"github.com/WShawnMing/WatchTogether/pkg/ctxlogger"
	"github.com/WShawnMing/WatchTogether/pkg/jwtauth"
	"github.com/WShawnMing/WatchTogether/pkg/redisclient"
)

// Config holds every process-level tunable, bound from flags/env by
// cmd/server/main.go (spec §9 ambient config surface).
type Config struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	LogLevel string `json:"log_level"`

	Secret string `json:"-"`

	StorageDir        string `json:"storage_dir"`
	FFprobePath       string `json:"ffprobe_path"`
	FFmpegPath        string `json:"ffmpeg_path"`
	RoomIdleTTLMin    int    `json:"room_idle_ttl_minutes"`
	MaxMembers        int    `json:"max_members"`
	DirectStreamMaxBps int   `json:"direct_stream_max_bps"`
	CompatProxyEnabled bool  `json:"compat_proxy_enabled"`

	DiscoveryEnabled bool `json:"discovery_enabled"`
	DiscoveryPort    int  `json:"discovery_port"`

	RedisEnabled  bool   `json:"redis_enabled"`
	RedisHost     string `json:"redis_host"`
	RedisPort     int    `json:"redis_port"`
	RedisPassword string `json:"-"`

	MetricsEnabled bool `json:"metrics_enabled"`
}

func (cfg *Config) Validate() error {
	if cfg.MaxMembers < 1 {
		return fmt.Errorf("max members must be greater than 0")
	}
	if cfg.RoomIdleTTLMin < 1 {
		return fmt.Errorf("room idle ttl must be greater than 0 minutes")
	}
	return nil
}

func Run(ctx context.Context, cfg *Config) error {
	logLevel := slog.LevelInfo
	if err := logLevel.UnmarshalText([]byte(strings.ToUpper(cfg.LogLevel))); err != nil {
		log.Fatal(err)
	}

	h := ctxlogger.ContextHandler{
		Handler: slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level:     logLevel,
			AddSource: true,
		}),
	}
	logger := slog.New(&h)

	var persist room.PersistSink
	if cfg.RedisEnabled {
		rc, err := redisclient.NewRedisClient(&redisclient.Config{
			Host:     cfg.RedisHost,
			Port:     cfg.RedisPort,
			Password: cfg.RedisPassword,
		})
		if err != nil {
			logger.Warn("redis unavailable, disabling room persistence cache", "error", err)
		} else {
			defer rc.Close()
			persist = persistredis.NewSink(rc, logger)
		}
	}

	clk := clock.Real()
	m := metrics.New()
	if !cfg.MetricsEnabled {
		m = nil
	}

	hub := ws.NewHub(logger)

	roomCfg := room.Config{
		MaxMembers:    cfg.MaxMembers,
		RoomIdleTTL:   time.Duration(cfg.RoomIdleTTLMin) * time.Minute,
		HeartbeatTick: 1500 * time.Millisecond,
		SnapshotTick:  4 * time.Second,
	}

	factory := func(id, name, password string, roomCfg room.Config) *room.Room {
		return room.New(id, name, password, roomCfg, clk, hub, logger, persist)
	}

	reg := registry.New(clk, roomCfg, factory, logger)
	defer reg.Stop()

	instanceID := uuid.NewString()

	var disc *discovery.Service
	if cfg.DiscoveryEnabled {
		disc = discovery.NewService(instanceID, cfg.DiscoveryPort, logger)
		disc.Start()
		defer disc.Stop()
	}

	issuer := jwtauth.NewIssuer(cfg.Secret, 24*time.Hour)
	pending := pendingupload.New()
	store := mediastore.New(cfg.StorageDir, cfg.FFprobePath, cfg.FFmpegPath, logger)

	wsServer := ws.NewServer(reg, hub, disc, issuer, pending, m, logger)
	controller := httptransport.NewController(reg, disc, store, pending, m, wsServer, cfg.DirectStreamMaxBps, cfg.CompatProxyEnabled, logger)

	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler: controller.Mux(),
	}

	idleSweepCtx, stopIdleSweep := context.WithCancel(ctx)
	defer stopIdleSweep()
	go reg.RunIdleSweep(idleSweepCtx)

	serverCtx, serverStopCtx := context.WithCancel(ctx)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		<-sig

		shutdownCtx, c := context.WithTimeout(serverCtx, 30*time.Second)
		defer c()

		go func() {
			<-shutdownCtx.Done()
			if shutdownCtx.Err() == context.DeadlineExceeded {
				log.Fatal("graceful shutdown timed out.. forcing exit.")
			}
		}()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Fatal(err)
		}
		serverStopCtx()
	}()

	slog.InfoContext(serverCtx, "starting server", "address", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}

	<-serverCtx.Done()

	return nil
}
