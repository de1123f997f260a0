package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"

	"ragd/internal/domain"
)

// Scope is the resolved target of one tool invocation.
type Scope struct {
	ProviderID string
	Tool       domain.ToolDescriptor
	Params     map[string]any
}

// scope decides which provider, tool, and parameters serve the question.
// The collection binding established at session auth time is authoritative:
// the parameter bag is built here from the session, never from caller input.
func (p *Pipeline) scope(ctx context.Context, session domain.Session, question string) (Scope, error) {
	providerID, err := p.collections.CollectionProvider(ctx, session.CollectionID)
	if err != nil {
		return Scope{}, domain.E(domain.CodeCapabilitiesUnavailable, "pipeline.scope",
			fmt.Sprintf("no provider bound to collection %s", session.CollectionID), err)
	}

	snapshot, ready := p.registry.Snapshot()
	if !ready {
		return Scope{}, domain.E(domain.CodeCapabilitiesUnavailable, "pipeline.scope",
			"capabilities not yet ready", domain.ErrRegistryNotReady)
	}

	toolName := p.queryTools[providerID]
	tool, found := snapshot.FindTool(providerID, toolName)
	if !found {
		return Scope{}, domain.E(domain.CodeCapabilitiesUnavailable, "pipeline.scope",
			fmt.Sprintf("tool %s not discovered on provider %s", toolName, providerID), domain.ErrToolNotFound)
	}

	params := map[string]any{
		"query":          question,
		"collection_ids": []any{session.CollectionID},
	}
	if err := validateParams(tool, params); err != nil {
		return Scope{}, domain.E(domain.CodeInvalidArgument, "pipeline.scope",
			fmt.Sprintf("parameters rejected by %s schema", toolName), err)
	}
	return Scope{ProviderID: providerID, Tool: tool, Params: params}, nil
}

// validateParams checks the parameter bag against the tool's advertised
// input schema, catching malformed scope decisions before the network call.
// Tools without a schema accept anything.
func validateParams(tool domain.ToolDescriptor, params map[string]any) error {
	if len(tool.InputSchema) == 0 {
		return nil
	}
	var schema jsonschema.Schema
	if err := json.Unmarshal(tool.InputSchema, &schema); err != nil {
		return fmt.Errorf("decode input schema: %w", err)
	}
	resolved, err := schema.Resolve(nil)
	if err != nil {
		return fmt.Errorf("resolve input schema: %w", err)
	}
	return resolved.Validate(params)
}
