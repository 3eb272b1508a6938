package discovery

import (
	"encoding/json"
	"log/slog"
	"net"
	"sync"
	"time"
)

// listener binds a single UDP socket and maintains a TTL-evicted map of
// announcements received from other instances (spec §4.7 listen path).
type listener struct {
	mu      sync.Mutex
	entries map[string]DiscoveryEntry // instanceId:roomId -> entry

	instanceID string
	port       int
	logger     *slog.Logger

	stopCh chan struct{}
}

func newListener(instanceID string, port int, logger *slog.Logger) *listener {
	return &listener{
		entries:    make(map[string]DiscoveryEntry),
		instanceID: instanceID,
		port:       port,
		logger:     logger,
		stopCh:     make(chan struct{}),
	}
}

func (l *listener) run() {
	addr := &net.UDPAddr{IP: net.IPv4zero, Port: l.port}
	conn, err := net.ListenUDP("udp4", addr)
	if err != nil {
		l.logger.Warn("discovery listener: failed to bind", "error", err, "port", l.port)
		return
	}
	defer conn.Close()

	go l.sweepLoop()

	buf := make([]byte, 2048)
	for {
		select {
		case <-l.stopCh:
			return
		default:
		}

		conn.SetReadDeadline(time.Now().Add(1 * time.Second))
		n, addr, err := conn.ReadFromUDP(buf)
		if err != nil {
			continue // timeouts and transient read errors are swallowed
		}

		l.handlePacket(buf[:n], addr)
	}
}

func (l *listener) handlePacket(data []byte, from *net.UDPAddr) {
	var ann Announcement
	if err := json.Unmarshal(data, &ann); err != nil {
		return
	}

	if ann.Type != MessageType || ann.ProtocolVersion != ProtocolVersion {
		return
	}
	if ann.InstanceID == "" || ann.InstanceID == l.instanceID {
		return
	}
	if ann.RoomID == "" || ann.Port == 0 {
		return
	}

	entry := DiscoveryEntry{
		InstanceID:  ann.InstanceID,
		ServerURL:   "http://" + from.IP.String() + ":" + itoa(ann.Port),
		LastSeenAt:  time.Now().UnixMilli(),
		RoomPayload: ann.RoomPayload,
	}

	l.mu.Lock()
	l.entries[key(ann.InstanceID, ann.RoomID)] = entry
	l.mu.Unlock()
}

func (l *listener) sweepLoop() {
	ticker := time.NewTicker(ListenerSweepPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-l.stopCh:
			return
		case <-ticker.C:
			l.sweepOnce()
		}
	}
}

func (l *listener) sweepOnce() {
	cutoff := time.Now().Add(-BroadcastTTL).UnixMilli()

	l.mu.Lock()
	defer l.mu.Unlock()
	for k, e := range l.entries {
		if e.LastSeenAt < cutoff {
			delete(l.entries, k)
		}
	}
}

func (l *listener) Entries() []DiscoveryEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]DiscoveryEntry, 0, len(l.entries))
	for _, e := range l.entries {
		out = append(out, e)
	}
	return out
}

func (l *listener) stop() {
	select {
	case <-l.stopCh:
	default:
		close(l.stopCh)
	}
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var b [20]byte
	i := len(b)
	for n > 0 {
		i--
		b[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		b[i] = '-'
	}
	return string(b[i:])
}
