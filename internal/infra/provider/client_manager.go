package provider

import (
	"context"
	"net/http"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"ragd/internal/infra/config"
)

// clientManager holds one lazily established MCP session per provider.
// Sessions are reused across calls and dropped on transport failure so the
// next call reconnects.
type clientManager struct {
	providers map[string]config.ProviderConfig

	mu       sync.Mutex
	sessions map[string]*mcp.ClientSession
}

func newClientManager(providers []config.ProviderConfig) *clientManager {
	byID := make(map[string]config.ProviderConfig, len(providers))
	for _, p := range providers {
		byID[p.ID] = p
	}
	return &clientManager{
		providers: byID,
		sessions:  make(map[string]*mcp.ClientSession),
	}
}

func (m *clientManager) get(ctx context.Context, providerID string) (*mcp.ClientSession, error) {
	cfg, ok := m.providers[providerID]
	if !ok {
		return nil, errUnknownProvider(providerID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if session, ok := m.sessions[providerID]; ok {
		return session, nil
	}

	client := mcp.NewClient(&mcp.Implementation{
		Name:    "ragd",
		Version: "0.1.0",
	}, nil)

	transport := &mcp.StreamableClientTransport{
		Endpoint:   cfg.Endpoint,
		HTTPClient: &http.Client{Transport: headerRoundTripper(cfg.Headers)},
	}
	session, err := client.Connect(ctx, transport, nil)
	if err != nil {
		return nil, err
	}
	m.sessions[providerID] = session
	return session, nil
}

func (m *clientManager) reset(providerID string) {
	m.mu.Lock()
	if session, ok := m.sessions[providerID]; ok {
		_ = session.Close()
		delete(m.sessions, providerID)
	}
	m.mu.Unlock()
}

func (m *clientManager) close() {
	m.mu.Lock()
	for id, session := range m.sessions {
		_ = session.Close()
		delete(m.sessions, id)
	}
	m.mu.Unlock()
}

type headerTransport struct {
	headers map[string]string
	base    http.RoundTripper
}

// headerRoundTripper injects static provider headers (API keys and the
// like) into every request.
func headerRoundTripper(headers map[string]string) http.RoundTripper {
	if len(headers) == 0 {
		return http.DefaultTransport
	}
	return &headerTransport{headers: headers, base: http.DefaultTransport}
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	cloned := req.Clone(req.Context())
	for key, value := range t.headers {
		cloned.Header.Set(key, value)
	}
	return t.base.RoundTrip(cloned)
}
