package pipeline

import (
	"encoding/base64"
	"encoding/json"
	"strings"

	"go.uber.org/zap"

	"ragd/internal/domain"
)

// Raw provider payloads carry a base64-encoded context envelope inside the
// tool result text: {"context": "<base64>"} where the decoded bytes are
// {"context": [{"page_content": ..., "metadata": ...}, ...]}.
type contextEnvelope struct {
	Context string `json:"context"`
}

type contextDocument struct {
	PageContent string         `json:"page_content"`
	Metadata    map[string]any `json:"metadata"`
}

type contextPayload struct {
	Context []contextDocument `json:"context"`
}

// postProcess decodes the raw payload into an ordered passage list. Zero
// passages is a valid outcome, and so is an undecodable payload: generation
// receives empty context and degrades per its prompt contract rather than
// the question failing here.
func (p *Pipeline) postProcess(raw string) []domain.Passage {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}

	var envelope contextEnvelope
	if err := json.Unmarshal([]byte(trimmed), &envelope); err != nil || envelope.Context == "" {
		p.logger.Debug("payload has no context envelope", zap.Error(err))
		return nil
	}

	decoded, err := base64.StdEncoding.DecodeString(envelope.Context)
	if err != nil {
		p.logger.Warn("context envelope is not valid base64", zap.Error(err))
		return nil
	}

	var payload contextPayload
	if err := json.Unmarshal(decoded, &payload); err != nil {
		p.logger.Warn("context payload is not valid JSON", zap.Error(err))
		return nil
	}

	passages := make([]domain.Passage, 0, len(payload.Context))
	for _, doc := range payload.Context {
		text := strings.TrimSpace(doc.PageContent)
		if text == "" {
			continue
		}
		passages = append(passages, domain.Passage{
			Ordinal:  len(passages) + 1,
			Text:     text,
			Metadata: doc.Metadata,
		})
	}
	if len(passages) == 0 {
		return nil
	}
	return passages
}
