package pipeline

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"ragd/internal/domain"
)

func TestValidateParams(t *testing.T) {
	schema := json.RawMessage(`{
		"type": "object",
		"properties": {
			"query": {"type": "string"},
			"collection_ids": {"type": "array", "items": {"type": "string"}}
		},
		"required": ["query"]
	}`)

	tool := domain.ToolDescriptor{Name: "query_knowledge_base", InputSchema: schema}

	err := validateParams(tool, map[string]any{
		"query":          "what is the retention policy?",
		"collection_ids": []any{"col-1"},
	})
	require.NoError(t, err)

	err = validateParams(tool, map[string]any{
		"collection_ids": []any{"col-1"},
	})
	require.Error(t, err, "missing required property must be rejected")

	err = validateParams(tool, map[string]any{"query": 42})
	require.Error(t, err, "wrong property type must be rejected")
}

func TestValidateParams_NoSchemaAcceptsAnything(t *testing.T) {
	tool := domain.ToolDescriptor{Name: "query_knowledge_base"}
	require.NoError(t, validateParams(tool, map[string]any{"anything": true}))
}
