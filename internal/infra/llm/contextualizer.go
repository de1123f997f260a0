package llm

import (
	"context"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"

	"ragd/internal/domain"
)

// Contextualizer rewrites the latest user turn into a standalone question
// using the session's turn history.
type Contextualizer struct {
	model  model.ToolCallingChatModel
	logger *zap.Logger
}

func NewContextualizer(chatModel model.ToolCallingChatModel, logger *zap.Logger) *Contextualizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Contextualizer{model: chatModel, logger: logger.Named("contextualize")}
}

// Contextualize returns the standalone form of the last user turn. The turn
// list must already satisfy the last-turn-is-user precondition.
func (c *Contextualizer) Contextualize(ctx context.Context, turns []domain.Turn) (string, error) {
	last := turns[len(turns)-1]
	history := turns[:len(turns)-1]

	messages := make([]*schema.Message, 0, len(history)+2)
	messages = append(messages, schema.SystemMessage(contextualizeSystemPrompt))
	messages = append(messages, historyMessages(history)...)
	messages = append(messages, schema.UserMessage(last.Content))

	response, err := c.model.Generate(ctx, messages)
	if err != nil {
		return "", domain.E(domain.CodeGeneration, "llm.Contextualize", "", err)
	}

	standalone := strings.TrimSpace(response.Content)
	if standalone == "" {
		// An empty rewrite is useless; the original question is the safe
		// substitute.
		standalone = last.Content
	}
	c.logger.Debug("question contextualized", zap.Int("historyTurns", len(history)))
	return standalone, nil
}
