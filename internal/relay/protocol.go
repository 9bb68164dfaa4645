package relay

import (
	"github.com/google/uuid"
	"github.com/lalith-99/campusride/internal/models"
)

// Frame types a client may send.
const (
	FrameJoin  = "join"
	FrameLeave = "leave"
	FrameSend  = "send"
)

// Frame types the server sends.
const (
	FrameJoined  = "joined"
	FrameLeft    = "left"
	FrameMessage = "message"
	FrameError   = "error"
)

// Inbound is a client frame. Content is only read for "send".
type Inbound struct {
	Type    string    `json:"type"`
	RoomID  uuid.UUID `json:"room_id"`
	Content string    `json:"content,omitempty"`
}

// Outbound is a server frame.
type Outbound struct {
	Type   string          `json:"type"`
	RoomID *uuid.UUID      `json:"room_id,omitempty"`
	Data   *models.Message `json:"data,omitempty"`
	Error  string          `json:"error,omitempty"`
	Code   string          `json:"code,omitempty"`
}
