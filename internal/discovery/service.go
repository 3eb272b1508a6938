package discovery

import (
	"log/slog"
)

// Service ties the announcer, listener and prober together behind the
// single API the rest of the application needs (spec §4.7).
type Service struct {
	instanceID string
	port       int

	announcer *announcer
	listener  *listener
	prober    *prober
}

func NewService(instanceID string, port int, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if port == 0 {
		port = DefaultPort
	}

	return &Service{
		instanceID: instanceID,
		port:       port,
		announcer:  newAnnouncer(instanceID, port, logger),
		listener:   newListener(instanceID, port, logger),
		prober:     newProber(instanceID),
	}
}

// Start launches the announce and listen goroutines. Probing happens
// on demand via Discovered, not continuously.
func (s *Service) Start() {
	go s.announcer.run()
	go s.listener.run()
}

func (s *Service) Stop() {
	s.announcer.stop()
	s.listener.stop()
}

// Arm begins advertising payload over UDP broadcast until Disarm or room
// close (spec §4.7).
func (s *Service) Arm(payload RoomPayload) {
	payload.Port = s.port
	s.announcer.Arm(payload)
}

func (s *Service) Disarm(roomID string) {
	s.announcer.Disarm(roomID)
}

// List returns this instance's own armed rooms, the shape served at
// GET /api/discovery for other instances' subnet probes (spec §4.7).
func (s *Service) List() DiscoveryListResponse {
	return DiscoveryListResponse{
		ProtocolVersion: ProtocolVersion,
		InstanceID:      s.instanceID,
		Rooms:           s.announcer.ArmedPayloads(),
	}
}

// Discovered merges UDP-observed entries with an on-demand subnet probe,
// deduplicating by instanceId:roomId and preferring the most recently
// seen entry (spec §4.7: broadcast and probe results are merged).
func (s *Service) Discovered() []DiscoveryEntry {
	merged := make(map[string]DiscoveryEntry)

	for _, e := range s.listener.Entries() {
		merged[key(e.InstanceID, e.RoomID)] = e
	}

	for _, e := range s.prober.Probe(s.port) {
		k := key(e.InstanceID, e.RoomID)
		existing, ok := merged[k]
		if !ok || e.LastSeenAt > existing.LastSeenAt {
			merged[k] = e
		}
	}

	out := make([]DiscoveryEntry, 0, len(merged))
	for _, e := range merged {
		out = append(out, e)
	}
	return out
}
