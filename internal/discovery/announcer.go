package discovery

import (
	"encoding/json"
	"log/slog"
	"net"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// announcer periodically UDP-broadcasts JSON announcements for every
// currently-armed room (spec §4.7 announcement path). All socket/marshal
// errors are swallowed: discovery is best-effort (spec §4.7 failure
// tolerance).
type announcer struct {
	mu         sync.Mutex
	armed      map[string]RoomPayload // roomID -> payload
	instanceID string
	port       int
	logger     *slog.Logger

	stopCh chan struct{}
	conn   *net.UDPConn
}

func newAnnouncer(instanceID string, port int, logger *slog.Logger) *announcer {
	return &announcer{
		armed:      make(map[string]RoomPayload),
		instanceID: instanceID,
		port:       port,
		logger:     logger,
		stopCh:     make(chan struct{}),
	}
}

func (a *announcer) Arm(payload RoomPayload) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.armed[payload.RoomID] = payload
}

func (a *announcer) Disarm(roomID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.armed, roomID)
}

func (a *announcer) ArmedPayloads() []RoomPayload {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]RoomPayload, 0, len(a.armed))
	for _, p := range a.armed {
		out = append(out, p)
	}
	return out
}

func (a *announcer) run() {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{})
	if err != nil {
		a.logger.Warn("discovery announcer: failed to open socket", "error", err)
		return
	}
	a.conn = conn
	defer conn.Close()

	// Broadcast sends to a directed-broadcast address (e.g. 192.168.1.255)
	// are rejected with EACCES unless SO_BROADCAST is set; without it every
	// WriteToUDP below fails silently (broadcastOnce swallows send errors).
	if rawConn, err := conn.SyscallConn(); err != nil {
		a.logger.Warn("discovery announcer: failed to access raw socket", "error", err)
	} else {
		var sockErr error
		err := rawConn.Control(func(fd uintptr) {
			sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_BROADCAST, 1)
		})
		if err != nil {
			a.logger.Warn("discovery announcer: SyscallConn control failed", "error", err)
		} else if sockErr != nil {
			a.logger.Warn("discovery announcer: failed to set SO_BROADCAST", "error", sockErr)
		}
	}

	ticker := time.NewTicker(AnnounceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-a.stopCh:
			return
		case <-ticker.C:
			a.broadcastOnce()
		}
	}
}

func (a *announcer) broadcastOnce() {
	payloads := a.ArmedPayloads()
	if len(payloads) == 0 {
		return
	}

	targets := broadcastAddresses(a.port)
	now := time.Now().UnixMilli()

	for _, payload := range payloads {
		ann := Announcement{
			Type:            MessageType,
			ProtocolVersion: ProtocolVersion,
			InstanceID:      a.instanceID,
			RoomPayload:     payload,
			AnnouncedAt:     now,
		}

		data, err := json.Marshal(ann)
		if err != nil {
			continue
		}

		for _, target := range targets {
			// best-effort: a failed send to one interface never aborts
			// the others, and is never surfaced to callers.
			_, _ = a.conn.WriteToUDP(data, target)
		}
	}
}

func (a *announcer) stop() {
	select {
	case <-a.stopCh:
	default:
		close(a.stopCh)
	}
}

// broadcastAddresses returns every interface broadcast address plus the
// universal 255.255.255.255 fallback (spec §4.7).
func broadcastAddresses(port int) []*net.UDPAddr {
	addrs := []*net.UDPAddr{{IP: net.IPv4bcast, Port: port}}

	ifaces, err := net.Interfaces()
	if err != nil {
		return addrs
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagBroadcast == 0 {
			continue
		}

		ifaceAddrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		for _, a := range ifaceAddrs {
			ipNet, ok := a.(*net.IPNet)
			if !ok || ipNet.IP.To4() == nil {
				continue
			}

			bcast := broadcastForSubnet(ipNet)
			if bcast != nil {
				addrs = append(addrs, &net.UDPAddr{IP: bcast, Port: port})
			}
		}
	}

	return addrs
}

func broadcastForSubnet(ipNet *net.IPNet) net.IP {
	ip4 := ipNet.IP.To4()
	if ip4 == nil {
		return nil
	}

	mask := ipNet.Mask
	bcast := make(net.IP, len(ip4))
	for i := range ip4 {
		bcast[i] = ip4[i] | ^mask[i]
	}

	return bcast
}
