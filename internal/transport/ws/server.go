package ws

import (
	"log/slog"

	"github.com/WShawnMing/WatchTogether/internal/discovery"
	"github.com/WShawnMing/WatchTogether/internal/metrics"
	"github.com/WShawnMing/WatchTogether/internal/pendingupload"
	"github.com/WShawnMing/WatchTogether/internal/registry"
	"github.com/WShawnMing/WatchTogether/internal/room"
	"github.com/WShawnMing/WatchTogether/pkg/jwtauth"
	"github.com/WShawnMing/WatchTogether/pkg/validator"
	"github.com/WShawnMing/WatchTogether/pkg/wsrouter"
)

// Server wires the Room Registry, connection Hub, reconnect-token issuer
// and (optionally) the Discovery Service behind the websocket surface
// described in spec §6's transport table.
type Server struct {
	registry  *registry.Registry
	hub       *Hub
	discovery *discovery.Service
	issuer    *jwtauth.Issuer
	pending   *pendingupload.Table
	metrics   *metrics.Metrics
	logger    *slog.Logger
	validate  *validator.Validator

	router *wsrouter.Router
}

func NewServer(reg *registry.Registry, hub *Hub, disc *discovery.Service, issuer *jwtauth.Issuer, pending *pendingupload.Table, m *metrics.Metrics, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		registry:  reg,
		hub:       hub,
		discovery: disc,
		issuer:    issuer,
		pending:   pending,
		metrics:   m,
		logger:    logger,
		validate:  validator.New(),
	}

	s.router = wsrouter.New()
	s.router.Use(s.loggingMw())
	s.router.Handle("room:join", s.handleJoin)
	s.router.Handle("room:leave", s.handleLeave)
	s.router.Handle("room:select-media", s.handleSelectMedia)
	s.router.Handle("playback:control", s.handlePlaybackControl)
	s.router.Handle("client:buffering", s.handleBuffering)
	s.router.Handle("playback:request-state", s.handleRequestState)
	s.router.Handle("room:request-snapshot", s.handleRequestSnapshot)
	s.router.Handle("room:config", s.handleSetConfig)

	return s
}

func (s *Server) armDiscovery(r *room.Room, snap room.RoomSnapshot) {
	hostNickname := ""
	for _, m := range snap.Members {
		if m.IsHost {
			hostNickname = m.Nickname
			break
		}
	}

	mediaName := ""
	if snap.Media != nil {
		mediaName = snap.Media.Name
	}
	subtitleName := ""
	if snap.Subtitle != nil {
		subtitleName = snap.Subtitle.Name
	}

	playback := discovery.PlaybackIdle
	if snap.Media != nil {
		if snap.PlaybackState.Paused {
			playback = discovery.PlaybackPaused
		} else {
			playback = discovery.PlaybackPlaying
		}
	}

	s.discovery.Arm(discovery.RoomPayload{
		RoomID:           snap.RoomID,
		RoomName:         snap.RoomName,
		HostNickname:     hostNickname,
		RequiresPassword: snap.RequiresPassword,
		MemberCount:      len(snap.Members),
		MaxMembers:       snap.MaxMembers,
		MediaName:        mediaName,
		SubtitleName:     subtitleName,
		PlaybackState:    playback,
	})
}
