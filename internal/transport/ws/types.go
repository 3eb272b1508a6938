package ws

// Wire-frame payload shapes for the C→S operations of spec §6's transport
// table. Field names are camelCase to match the documented wire protocol.

type joinInput struct {
	RoomID         string `json:"roomId" validate:"max=64"`
	Nickname       string `json:"nickname" validate:"required,max=40"`
	Password       string `json:"password" validate:"max=128"`
	RoomName       string `json:"roomName" validate:"max=80"`
	ReconnectToken string `json:"reconnectToken"`
}

type leaveInput struct {
	RoomID string `json:"roomId"`
}

type mediaWireDescriptor struct {
	ID          string   `json:"id"`
	Name        string   `json:"name" validate:"max=255"`
	MimeType    string   `json:"mimeType"`
	Size        int64    `json:"size" validate:"required"`
	DurationSec *float64 `json:"durationSec"`
	SHA256      string   `json:"sha256" validate:"required,len=64,hexadecimal"`
}

type selectMediaInput struct {
	RoomID string              `json:"roomId" validate:"max=64"`
	Media  mediaWireDescriptor `json:"media"`
}

type playbackControlInput struct {
	RoomID   string  `json:"roomId"`
	Position float64 `json:"position"`
	Paused   bool    `json:"paused"`
	Rate     float64 `json:"rate"`
	Reason   string  `json:"reason"`
}

type bufferingInput struct {
	RoomID             string  `json:"roomId"`
	Buffering          bool    `json:"buffering"`
	BufferAheadSeconds float64 `json:"bufferAheadSeconds"`
	ReadyState         int     `json:"readyState"`
	CanPlayThrough     bool    `json:"canPlayThrough"`
}

type requestStateInput struct {
	RoomID string `json:"roomId"`
}

type configInput struct {
	RoomID   string `json:"roomId" validate:"max=64"`
	SyncMode string `json:"syncMode" validate:"required,oneof=soft strict"`
}

type joinAck struct {
	Type    string       `json:"type"`
	OK      bool         `json:"ok"`
	Error   string       `json:"error,omitempty"`
	Snapshot any         `json:"snapshot,omitempty"`
	ReconnectToken string `json:"reconnectToken,omitempty"`
}

type leaveAck struct {
	Type string `json:"type"`
	OK   bool   `json:"ok"`
}
