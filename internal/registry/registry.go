// Package registry implements the Room Registry (spec §4.6): the
// room-id → Room Coordinator map, atomic getOrCreate, and the idle-sweep
// timer that destroys empty, expired rooms.
package registry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/WShawnMing/WatchTogether/internal/clock"
	"github.com/WShawnMing/WatchTogether/internal/room"
	"github.com/WShawnMing/WatchTogether/internal/roomcode"
)

// RoomFactory builds a new *room.Room. Injected so the Registry doesn't
// need to know about Publisher/PersistSink wiring.
type RoomFactory func(id, name, password string, cfg room.Config) *room.Room

type Registry struct {
	mu    sync.Mutex
	rooms map[string]*room.Room

	clk     clock.Clock
	factory RoomFactory
	cfg     room.Config
	logger  *slog.Logger

	stopCh chan struct{}
}

func New(clk clock.Clock, cfg room.Config, factory RoomFactory, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}

	return &Registry{
		rooms:   make(map[string]*room.Room),
		clk:     clk,
		factory: factory,
		cfg:     cfg,
		logger:  logger,
		stopCh:  make(chan struct{}),
	}
}

// GetOrCreate is atomic: if roomID (after normalization) already exists it
// is returned unchanged; otherwise a new Room is instantiated with name/
// password (spec §4.6). An empty roomID gets a generated code, re-drawn
// until it names no existing room. The registry mutex is never held across a Room
// command (spec §5 shared-resource policy) — factory construction is
// cheap (just spawns the command goroutine) so it's fine to do under lock.
func (reg *Registry) GetOrCreate(roomID, name, password string) (*room.Room, string) {
	id := roomcode.Normalize(roomID)

	reg.mu.Lock()
	defer reg.mu.Unlock()

	if id == "" {
		id = roomcode.Generate()
		for _, taken := reg.rooms[id]; taken; _, taken = reg.rooms[id] {
			id = roomcode.Generate()
		}
	}

	if existing, ok := reg.rooms[id]; ok {
		return existing, id
	}

	r := reg.factory(id, name, password, reg.cfg)
	reg.rooms[id] = r

	return r, id
}

func (reg *Registry) Get(roomID string) (*room.Room, bool) {
	id := roomcode.Normalize(roomID)

	reg.mu.Lock()
	defer reg.mu.Unlock()

	r, ok := reg.rooms[id]
	return r, ok
}

func (reg *Registry) Count() int {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return len(reg.rooms)
}

// RunIdleSweep destroys rooms that are empty and have exceeded
// RoomIdleTTL, every 60s, until ctx is done (spec §4.1 timers).
func (reg *Registry) RunIdleSweep(ctx context.Context) {
	ticker := time.NewTicker(60 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-reg.stopCh:
			return
		case <-ticker.C:
			reg.sweepOnce()
		}
	}
}

func (reg *Registry) sweepOnce() {
	now := reg.clk.NowMs()

	var toDestroy []*room.Room

	reg.mu.Lock()
	for id, r := range reg.rooms {
		if r.IsEmptyIdle(now) {
			toDestroy = append(toDestroy, r)
			delete(reg.rooms, id)
		}
	}
	reg.mu.Unlock()

	for _, r := range toDestroy {
		reg.logger.Info("destroying idle room", "room_id", r.ID)
		r.Stop()
	}
}

func (reg *Registry) Stop() {
	close(reg.stopCh)
}
