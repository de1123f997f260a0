package domain

import (
	"encoding/json"
	"time"
)

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one entry in a session's conversation history. Ordinals are
// strictly increasing and assigned by the store on append.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
	Ordinal int    `json:"ordinal,omitempty"`
}

// Session is the durable conversation record for one (caller, collection)
// pair. A session outlives any single connection and is never expired.
type Session struct {
	ID           string    `json:"id"`
	CallerID     string    `json:"callerId"`
	CollectionID string    `json:"collectionId"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Collection binds a knowledge collection to the provider that serves it.
// Ownership and shares decide which callers may open sessions against it.
type Collection struct {
	ID         string
	OwnerID    string
	ProviderID string
	Name       string
	CreatedAt  time.Time
}

// ToolDescriptor describes one callable tool advertised by a provider.
// Immutable once discovered; identity is (ProviderID, Name).
type ToolDescriptor struct {
	ProviderID  string          `json:"providerId"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema,omitempty"`
}

// ResourceDescriptor describes one resource advertised by a provider.
type ResourceDescriptor struct {
	ProviderID  string `json:"providerId"`
	URI         string `json:"uri"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ProviderCapabilities is everything one provider advertised in a single
// discovery pass.
type ProviderCapabilities struct {
	Tools     []ToolDescriptor     `json:"tools"`
	Resources []ResourceDescriptor `json:"resources"`
}

// RegistrySnapshot is an immutable view of every discovered provider.
// Replaced wholesale on each discovery run; readers hold one snapshot for
// the duration of their use and never observe partial updates.
type RegistrySnapshot struct {
	Providers map[string]ProviderCapabilities `json:"providers"`
	TakenAt   time.Time                       `json:"takenAt"`
}

// FindTool looks up a tool by provider id and name.
func (s *RegistrySnapshot) FindTool(providerID, name string) (ToolDescriptor, bool) {
	if s == nil {
		return ToolDescriptor{}, false
	}
	caps, ok := s.Providers[providerID]
	if !ok {
		return ToolDescriptor{}, false
	}
	for _, tool := range caps.Tools {
		if tool.Name == name {
			return tool, true
		}
	}
	return ToolDescriptor{}, false
}

// HasProvider reports whether the snapshot covers the given provider.
func (s *RegistrySnapshot) HasProvider(providerID string) bool {
	if s == nil {
		return false
	}
	_, ok := s.Providers[providerID]
	return ok
}

// Passage is one unit of retrieved context. Ordinal is the 1-based position
// in the set handed to generation and is the only valid citation key.
type Passage struct {
	Ordinal  int            `json:"ordinal"`
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Citation links a span of generated answer text to the passage it drew
// from. Derived from the answer, never stored independently.
type Citation struct {
	PassageOrdinal int    `json:"passageOrdinal"`
	SpanStart      int    `json:"spanStart"`
	SpanEnd        int    `json:"spanEnd"`
	Span           string `json:"span"`
}
