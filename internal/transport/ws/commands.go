package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/WShawnMing/WatchTogether/internal/room"
)

// validateInput runs the configured struct validator over a decoded wire
// payload, joining every field error into one message (spec §6 wire
// contracts are otherwise unchecked past JSON decoding).
func (s *Server) validateInput(in any) (string, bool) {
	errs, ok := s.validate.Validate(in)
	if ok {
		return "", true
	}

	msgs := make([]string, 0, len(errs))
	for _, e := range errs {
		msgs = append(msgs, e.Message)
	}
	return strings.Join(msgs, "; "), false
}

func (s *Server) handleJoin(ctx context.Context, conn *websocket.Conn, raw json.RawMessage) error {
	sess := sessionFromCtx(ctx)

	// A rejected join may come before conn is registered with the hub, so
	// its ack is written to the socket directly.
	reject := func(msg string) {
		sess.writeMu.Lock()
		defer sess.writeMu.Unlock()
		_ = conn.WriteJSON(joinAck{Type: "room:snapshot", OK: false, Error: msg})
	}

	var in joinInput
	if err := json.Unmarshal(raw, &in); err != nil {
		return fmt.Errorf("decode room:join: %w", err)
	}
	if msg, ok := s.validateInput(in); !ok {
		reject(msg)
		return nil
	}

	r, roomID := s.registry.GetOrCreate(in.RoomID, in.RoomName, in.Password)

	if in.ReconnectToken != "" {
		if claims, err := s.issuer.Parse(in.ReconnectToken); err == nil && claims.RoomID == roomID {
			res := r.Reattach(claims.MemberID, sess.connID)
			if res.OK {
				sess.room = r
				sess.roomID = roomID
				s.hub.Register(sess.connID, conn, sess.writeMu)

				token, _ := s.issuer.Issue(roomID, sess.connID)
				s.hub.Send(sess.connID, joinAck{Type: "room:snapshot", OK: true, Snapshot: res.Snapshot, ReconnectToken: token})
				return nil
			}
		}
	}

	snap, err := r.Join(room.JoinParams{
		ConnID:   sess.connID,
		Nickname: in.Nickname,
		Password: in.Password,
	})
	if err != nil {
		reject(err.Error())
		return nil
	}

	sess.room = r
	sess.roomID = roomID
	s.hub.Register(sess.connID, conn, sess.writeMu)

	token, _ := s.issuer.Issue(roomID, sess.connID)
	s.hub.Send(sess.connID, joinAck{Type: "room:snapshot", OK: true, Snapshot: snap, ReconnectToken: token})

	if s.discovery != nil {
		s.armDiscovery(r, snap)
	}

	return nil
}

func (s *Server) handleLeave(ctx context.Context, conn *websocket.Conn, raw json.RawMessage) error {
	sess := sessionFromCtx(ctx)
	if sess.room == nil {
		return nil
	}

	leaveCtx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	res := sess.room.Leave(leaveCtx, sess.connID)
	s.hub.Send(sess.connID, leaveAck{Type: "room:leave", OK: true})

	if res.RoomEmpty && s.discovery != nil {
		s.discovery.Disarm(sess.roomID)
	}

	s.hub.Unregister(sess.connID)
	sess.room = nil

	return nil
}

func (s *Server) handleSelectMedia(ctx context.Context, conn *websocket.Conn, raw json.RawMessage) error {
	sess := sessionFromCtx(ctx)
	if sess.room == nil {
		return nil
	}

	var in selectMediaInput
	if err := json.Unmarshal(raw, &in); err != nil {
		return fmt.Errorf("decode room:select-media: %w", err)
	}
	if msg, ok := s.validateInput(in); !ok {
		s.hub.Send(sess.connID, errorOutput(msg))
		return nil
	}

	file, _ := s.pending.Pop(in.Media.ID)

	res, err := sess.room.SelectMedia(room.SelectMediaParams{
		ConnID:      sess.connID,
		Name:        in.Media.Name,
		MimeType:    in.Media.MimeType,
		Size:        in.Media.Size,
		DurationSec: in.Media.DurationSec,
		SHA256:      in.Media.SHA256,
		MediaID:     in.Media.ID,
		File:        file,
	})
	if err != nil {
		s.hub.Send(sess.connID, errorOutput(err.Error()))
		return nil
	}

	if res.MismatchOnly {
		s.hub.Send(sess.connID, errorOutput("media_mismatch"))
	}

	return nil
}

func (s *Server) handlePlaybackControl(ctx context.Context, conn *websocket.Conn, raw json.RawMessage) error {
	sess := sessionFromCtx(ctx)
	if sess.room == nil {
		return nil
	}

	var in playbackControlInput
	if err := json.Unmarshal(raw, &in); err != nil {
		return fmt.Errorf("decode playback:control: %w", err)
	}

	sess.room.PlaybackControl(room.PlaybackControlParams{
		ConnID:   sess.connID,
		Position: in.Position,
		Paused:   in.Paused,
		Rate:     in.Rate,
		Reason:   room.Reason(in.Reason),
	})

	return nil
}

func (s *Server) handleBuffering(ctx context.Context, conn *websocket.Conn, raw json.RawMessage) error {
	sess := sessionFromCtx(ctx)
	if sess.room == nil {
		return nil
	}

	var in bufferingInput
	if err := json.Unmarshal(raw, &in); err != nil {
		return fmt.Errorf("decode client:buffering: %w", err)
	}

	sess.room.ReportBuffering(room.ReportBufferingParams{
		ConnID:             sess.connID,
		Buffering:          in.Buffering,
		BufferAheadSeconds: in.BufferAheadSeconds,
		ReadyState:         in.ReadyState,
		CanPlayThrough:     in.CanPlayThrough,
	})

	return nil
}

func (s *Server) handleRequestState(ctx context.Context, conn *websocket.Conn, raw json.RawMessage) error {
	sess := sessionFromCtx(ctx)
	if sess.room == nil {
		return nil
	}

	env := sess.room.RequestPlayback(sess.connID)
	s.hub.Send(sess.connID, playbackOutput{env})
	return nil
}

func (s *Server) handleRequestSnapshot(ctx context.Context, conn *websocket.Conn, raw json.RawMessage) error {
	sess := sessionFromCtx(ctx)
	if sess.room == nil {
		return nil
	}

	snap := sess.room.RequestSnapshot(sess.connID)
	s.hub.Send(sess.connID, snapshotOutput{snap})
	return nil
}

func (s *Server) handleSetConfig(ctx context.Context, conn *websocket.Conn, raw json.RawMessage) error {
	sess := sessionFromCtx(ctx)
	if sess.room == nil {
		return nil
	}

	var in configInput
	if err := json.Unmarshal(raw, &in); err != nil {
		return fmt.Errorf("decode room:config: %w", err)
	}
	if msg, ok := s.validateInput(in); !ok {
		s.hub.Send(sess.connID, errorOutput(msg))
		return nil
	}

	if err := sess.room.SetSyncMode(room.SetSyncModeParams{
		ConnID: sess.connID,
		Mode:   room.SyncMode(in.SyncMode),
	}); err != nil {
		s.hub.Send(sess.connID, errorOutput(err.Error()))
	}

	return nil
}

type snapshotOutput struct{ snap any }

func (o snapshotOutput) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type    string `json:"type"`
		Payload any    `json:"payload"`
	}{Type: "room:snapshot", Payload: o.snap})
}

type playbackOutput struct{ env any }

func (o playbackOutput) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type    string `json:"type"`
		Payload any    `json:"payload"`
	}{Type: "playback:state", Payload: o.env})
}

func errorOutput(msg string) any {
	return struct {
		Type    string `json:"type"`
		Payload string `json:"payload"`
	}{Type: "room:error", Payload: msg}
}
