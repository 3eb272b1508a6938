// Package redis implements the Room Persistence Cache: a best-effort,
// asynchronous mirror of each room's last snapshot, written through a
// bounded channel so a slow or unavailable Redis instance can never make a
// Room Coordinator command block (spec §5, §9 design notes). It exists so
// a future process can recover "which rooms existed and roughly what they
// were playing" after a restart — the Room Coordinator itself never reads
// it back.
package redis

import (
	"context"
	"log/slog"
	"reflect"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/WShawnMing/WatchTogether/internal/room"
)

const (
	keyPrefix  = "watchtogether:room:"
	fieldTTL   = 24 * time.Hour
	queueDepth = 256
)

// Sink adapts room.PersistSink onto a go-redis/v9 client. Notify never
// blocks the calling Room command goroutine: it drops the update (logging
// at debug level) if the internal queue is full, since persistence is
// advisory, not authoritative (spec §9: "nothing in the Room Coordinator
// ever waits on it").
type Sink struct {
	rc     redis.UniversalClient
	logger *slog.Logger
	queue  chan room.RoomSnapshot
	stopCh chan struct{}
}

func NewSink(rc redis.UniversalClient, logger *slog.Logger) *Sink {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Sink{
		rc:     rc,
		logger: logger,
		queue:  make(chan room.RoomSnapshot, queueDepth),
		stopCh: make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *Sink) Notify(snapshot room.RoomSnapshot) {
	select {
	case s.queue <- snapshot:
	default:
		s.logger.Debug("persistence queue full, dropping snapshot", "room_id", snapshot.RoomID)
	}
}

func (s *Sink) Stop() {
	close(s.stopCh)
}

func (s *Sink) run() {
	for {
		select {
		case <-s.stopCh:
			return
		case snap := <-s.queue:
			s.write(snap)
		}
	}
}

func (s *Sink) write(snap room.RoomSnapshot) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	key := keyPrefix + snap.RoomID

	record := roomRecord{
		RoomName:         snap.RoomName,
		RequiresPassword: snap.RequiresPassword,
		SyncMode:         string(snap.SyncMode),
		MemberCount:      len(snap.Members),
		Position:         snap.PlaybackState.Position,
		Paused:           snap.PlaybackState.Paused,
		Rate:             snap.PlaybackState.Rate,
		UpdatedAt:        snap.PlaybackState.UpdatedAt,
		ServerTime:       snap.ServerTime,
	}
	if snap.Media != nil {
		record.MediaName = snap.Media.Name
	}

	pipe := s.rc.TxPipeline()
	if err := hsetStruct(ctx, pipe, key, record); err != nil {
		s.logger.Warn("persistence hset build failed", "error", err, "room_id", snap.RoomID)
		return
	}
	pipe.Expire(ctx, key, fieldTTL)

	if _, err := pipe.Exec(ctx); err != nil {
		s.logger.Warn("persistence write failed", "error", err, "room_id", snap.RoomID)
	}
}

// Evict removes a destroyed room's cached record. The registry's idle sweep
// does not call it; a record left behind expires after fieldTTL.
func (s *Sink) Evict(roomID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.rc.Del(ctx, keyPrefix+roomID).Err(); err != nil {
		s.logger.Debug("persistence evict failed", "error", err, "room_id", roomID)
	}
}

type roomRecord struct {
	RoomName         string  `redis:"roomName"`
	RequiresPassword bool    `redis:"requiresPassword"`
	SyncMode         string  `redis:"syncMode"`
	MemberCount      int     `redis:"memberCount"`
	MediaName        string  `redis:"mediaName"`
	Position         float64 `redis:"position"`
	Paused           bool    `redis:"paused"`
	Rate             float64 `redis:"rate"`
	UpdatedAt        int64   `redis:"updatedAt"`
	ServerTime       int64   `redis:"serverTime"`
}

// hsetStruct mirrors the teacher repository's reflection-based HSetStruct
// helper: tag-driven field extraction so new persisted fields never need a
// matching hand-written HSet call.
func hsetStruct(ctx context.Context, c redis.Pipeliner, key string, value interface{}) error {
	v := reflect.ValueOf(value)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}

	fields := make(map[string]interface{}, v.NumField())
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		tag := t.Field(i).Tag.Get("redis")
		if tag == "" {
			tag = t.Field(i).Name
		}
		fields[tag] = field.Interface()
	}

	return c.HSet(ctx, key, fields).Err()
}
