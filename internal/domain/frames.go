package domain

// Frame types for the inbound session protocol. The first client frame must
// be FrameAuth; after a successful handshake the client sends FrameChat and
// the server streams FrameStart, FrameChunk..., FrameEnd per question. A
// FrameError may replace any expected server frame.
const (
	FrameAuth  = "auth"
	FrameChat  = "chat"
	FrameInfo  = "info"
	FrameError = "error"
	FrameStart = "start"
	FrameChunk = "response_chunk"
	FrameEnd   = "end"
)

// ClientFrame is any message received from a caller.
type ClientFrame struct {
	Type         string `json:"type"`
	CallerID     string `json:"caller_id,omitempty"`
	CollectionID string `json:"collection_id,omitempty"`
	Messages     []Turn `json:"messages,omitempty"`
}

// ServerFrame is any message sent to a caller. Passages and Citations are
// populated on the end frame only, so clients can resolve citation ordinals
// against the exact passage set the answer was generated from.
type ServerFrame struct {
	Type      string     `json:"type"`
	Message   string     `json:"message,omitempty"`
	Content   string     `json:"content,omitempty"`
	Passages  []Passage  `json:"passages,omitempty"`
	Citations []Citation `json:"citations,omitempty"`
}
