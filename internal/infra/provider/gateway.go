package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"ragd/internal/domain"
	"ragd/internal/infra/config"
)

// Gateway is the provider-agnostic client for the remote tool protocol.
// Every transport or protocol failure is mapped into the domain error
// taxonomy; callers never see provider internals.
type Gateway struct {
	clients *clientManager
	timeout time.Duration
	metrics domain.Metrics
	logger  *zap.Logger
}

type GatewayOptions struct {
	Providers []config.ProviderConfig
	Timeout   time.Duration
	Metrics   domain.Metrics
	Logger    *zap.Logger
}

func NewGateway(opts GatewayOptions) *Gateway {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = domain.NopMetrics{}
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = time.Duration(config.DefaultInvokeSeconds) * time.Second
	}
	return &Gateway{
		clients: newClientManager(opts.Providers),
		timeout: timeout,
		metrics: metrics,
		logger:  logger.Named("provider"),
	}
}

// Close tears down every open provider session.
func (g *Gateway) Close() {
	g.clients.close()
}

// ListTools returns the tools advertised by one provider.
func (g *Gateway) ListTools(ctx context.Context, providerID string) ([]domain.ToolDescriptor, error) {
	session, err := g.clients.get(ctx, providerID)
	if err != nil {
		return nil, g.mapError("gateway.ListTools", providerID, err)
	}
	result, err := session.ListTools(ctx, nil)
	if err != nil {
		g.clients.reset(providerID)
		return nil, g.mapError("gateway.ListTools", providerID, err)
	}

	tools := make([]domain.ToolDescriptor, 0, len(result.Tools))
	for _, tool := range result.Tools {
		descriptor := domain.ToolDescriptor{
			ProviderID:  providerID,
			Name:        tool.Name,
			Description: tool.Description,
		}
		if tool.InputSchema != nil {
			schema, err := json.Marshal(tool.InputSchema)
			if err != nil {
				g.logger.Warn("tool schema not serializable",
					zap.String("provider", providerID),
					zap.String("tool", tool.Name),
					zap.Error(err),
				)
			} else {
				descriptor.InputSchema = schema
			}
		}
		tools = append(tools, descriptor)
	}
	return tools, nil
}

// ListResources returns the resources advertised by one provider. Providers
// without resource support yield an empty list, not an error.
func (g *Gateway) ListResources(ctx context.Context, providerID string) ([]domain.ResourceDescriptor, error) {
	session, err := g.clients.get(ctx, providerID)
	if err != nil {
		return nil, g.mapError("gateway.ListResources", providerID, err)
	}
	result, err := session.ListResources(ctx, nil)
	if err != nil {
		if isMethodUnsupported(err) {
			// Resources not advertised: fine, tools are the required surface.
			return nil, nil
		}
		g.clients.reset(providerID)
		return nil, g.mapError("gateway.ListResources", providerID, err)
	}

	resources := make([]domain.ResourceDescriptor, 0, len(result.Resources))
	for _, resource := range result.Resources {
		resources = append(resources, domain.ResourceDescriptor{
			ProviderID:  providerID,
			URI:         resource.URI,
			Name:        resource.Name,
			Description: resource.Description,
		})
	}
	return resources, nil
}

// Invoke calls one tool under the gateway's per-call timeout and returns the
// raw provider payload (the text content of the result). The payload
// encoding is provider-defined; post-processing owns decoding it.
func (g *Gateway) Invoke(ctx context.Context, providerID, toolName string, params map[string]any) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	started := time.Now()
	raw, err := g.invoke(callCtx, providerID, toolName, params)
	g.metrics.ObserveProviderCall(providerID, time.Since(started), err)
	if err != nil {
		g.logger.Warn("tool invocation failed",
			zap.String("provider", providerID),
			zap.String("tool", toolName),
			zap.Error(err),
		)
		return "", err
	}
	return raw, nil
}

func (g *Gateway) invoke(ctx context.Context, providerID, toolName string, params map[string]any) (string, error) {
	session, err := g.clients.get(ctx, providerID)
	if err != nil {
		return "", g.mapError("gateway.Invoke", providerID, err)
	}

	result, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name:      toolName,
		Arguments: params,
	})
	if err != nil {
		if !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
			g.clients.reset(providerID)
		}
		return "", g.mapError("gateway.Invoke", providerID, err)
	}
	if result.IsError {
		return "", domain.E(domain.CodeToolInvocation, "gateway.Invoke",
			fmt.Sprintf("provider %s reported tool error", providerID), nil)
	}
	return firstText(result), nil
}

func isMethodUnsupported(err error) bool {
	var rpcErr *jsonrpc.Error
	return errors.As(err, &rpcErr) && rpcErr.Code == jsonrpc.CodeMethodNotFound
}

func firstText(result *mcp.CallToolResult) string {
	for _, content := range result.Content {
		if text, ok := content.(*mcp.TextContent); ok {
			return text.Text
		}
	}
	return ""
}

func (g *Gateway) mapError(op, providerID string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		return domain.E(domain.CodeToolInvocation, op,
			fmt.Sprintf("provider %s timed out", providerID), err)
	case errors.Is(err, context.Canceled):
		return domain.E(domain.CodeCanceled, op, "", err)
	default:
		var domainErr *domain.Error
		if errors.As(err, &domainErr) {
			return err
		}
		return domain.E(domain.CodeToolInvocation, op,
			fmt.Sprintf("provider %s call failed", providerID), err)
	}
}

func errUnknownProvider(providerID string) error {
	return domain.E(domain.CodeCapabilitiesUnavailable, "gateway",
		fmt.Sprintf("provider %s is not configured", providerID), domain.ErrProviderNotFound)
}
