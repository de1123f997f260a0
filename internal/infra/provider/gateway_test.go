package provider

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ragd/internal/domain"
	"ragd/internal/infra/config"
)

type queryInput struct {
	Query         string   `json:"query"`
	CollectionIDs []string `json:"collection_ids"`
}

// startTestProvider serves a real MCP provider over streamable HTTP with a
// knowledge query tool, a slow tool, and a failing tool.
func startTestProvider(t *testing.T) string {
	t.Helper()

	server := mcp.NewServer(&mcp.Implementation{Name: "kb-test", Version: "1.0.0"}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "query_knowledge_base",
		Description: "retrieve passages for a query",
	}, func(_ context.Context, _ *mcp.CallToolRequest, input queryInput) (*mcp.CallToolResult, any, error) {
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: "payload for " + input.Query}},
		}, nil, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "slow_tool",
		Description: "never answers in time",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, _ queryInput) (*mcp.CallToolResult, any, error) {
		select {
		case <-time.After(5 * time.Second):
		case <-ctx.Done():
		}
		return nil, nil, ctx.Err()
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "failing_tool",
		Description: "always fails",
	}, func(context.Context, *mcp.CallToolRequest, queryInput) (*mcp.CallToolResult, any, error) {
		return nil, nil, errors.New("backend exploded")
	})

	handler := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return server }, nil)
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	return ts.URL
}

func newTestGateway(t *testing.T, endpoint string, timeout time.Duration) *Gateway {
	t.Helper()
	gateway := NewGateway(GatewayOptions{
		Providers: []config.ProviderConfig{{ID: "kb-main", Endpoint: endpoint}},
		Timeout:   timeout,
		Logger:    zap.NewNop(),
	})
	t.Cleanup(gateway.Close)
	return gateway
}

func TestGateway_ListTools(t *testing.T) {
	gateway := newTestGateway(t, startTestProvider(t), 5*time.Second)

	tools, err := gateway.ListTools(context.Background(), "kb-main")
	require.NoError(t, err)
	require.Len(t, tools, 3)

	byName := make(map[string]domain.ToolDescriptor, len(tools))
	for _, tool := range tools {
		require.Equal(t, "kb-main", tool.ProviderID)
		byName[tool.Name] = tool
	}
	query, ok := byName["query_knowledge_base"]
	require.True(t, ok)
	require.NotEmpty(t, query.InputSchema, "advertised schema must be captured")
}

func TestGateway_Invoke(t *testing.T) {
	gateway := newTestGateway(t, startTestProvider(t), 5*time.Second)

	raw, err := gateway.Invoke(context.Background(), "kb-main", "query_knowledge_base", map[string]any{
		"query":          "retention policy",
		"collection_ids": []any{"col-1"},
	})
	require.NoError(t, err)
	require.Equal(t, "payload for retention policy", raw)
}

func TestGateway_Invoke_ToolError(t *testing.T) {
	gateway := newTestGateway(t, startTestProvider(t), 5*time.Second)

	_, err := gateway.Invoke(context.Background(), "kb-main", "failing_tool", map[string]any{"query": "q"})
	require.Error(t, err)
	code, _ := domain.CodeFrom(err)
	require.Equal(t, domain.CodeToolInvocation, code)
}

func TestGateway_Invoke_Timeout(t *testing.T) {
	gateway := newTestGateway(t, startTestProvider(t), 200*time.Millisecond)

	started := time.Now()
	_, err := gateway.Invoke(context.Background(), "kb-main", "slow_tool", map[string]any{"query": "q"})
	require.Error(t, err)
	require.Less(t, time.Since(started), 3*time.Second, "timeout must bound the call")

	code, _ := domain.CodeFrom(err)
	require.Equal(t, domain.CodeToolInvocation, code)
}

func TestGateway_Invoke_UnknownProvider(t *testing.T) {
	gateway := newTestGateway(t, startTestProvider(t), time.Second)

	_, err := gateway.Invoke(context.Background(), "nope", "query_knowledge_base", nil)
	require.ErrorIs(t, err, domain.ErrProviderNotFound)
	code, _ := domain.CodeFrom(err)
	require.Equal(t, domain.CodeCapabilitiesUnavailable, code)
}

func TestGateway_ListResources_Unsupported(t *testing.T) {
	gateway := newTestGateway(t, startTestProvider(t), 5*time.Second)

	resources, err := gateway.ListResources(context.Background(), "kb-main")
	require.NoError(t, err, "providers without resources must not fail discovery")
	require.Empty(t, resources)
}
