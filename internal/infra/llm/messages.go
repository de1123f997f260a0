package llm

import (
	"github.com/cloudwego/eino/schema"

	"ragd/internal/domain"
)

// historyMessages converts stored turns into model messages, stripping
// legacy context blocks from assistant turns. System turns are skipped: the
// system prompt is owned by the caller.
func historyMessages(turns []domain.Turn) []*schema.Message {
	messages := make([]*schema.Message, 0, len(turns))
	for _, turn := range turns {
		content := domain.HistoryContent(turn.Content)
		switch turn.Role {
		case domain.RoleUser:
			messages = append(messages, schema.UserMessage(content))
		case domain.RoleAssistant:
			messages = append(messages, schema.AssistantMessage(content, nil))
		}
	}
	return messages
}
