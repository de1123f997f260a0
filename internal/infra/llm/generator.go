package llm

import (
	"context"
	"io"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"

	"ragd/internal/domain"
)

// TokenStream yields answer text in generation order. Recv returns io.EOF
// when the answer is complete; Close releases the underlying stream and is
// safe to call at any point.
type TokenStream interface {
	Recv() (string, error)
	Close()
}

// Generator produces the streamed answer for a standalone question and a
// frozen passage set. An empty passage set is valid input: the prompt's
// degradation contract has the model state what information is missing.
type Generator struct {
	model  model.ToolCallingChatModel
	logger *zap.Logger
}

func NewGenerator(chatModel model.ToolCallingChatModel, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{model: chatModel, logger: logger.Named("generate")}
}

// Answer starts a streamed generation. The passage set is frozen for the
// lifetime of the returned stream; citation ordinals in the generated text
// resolve against exactly this set.
func (g *Generator) Answer(ctx context.Context, question string, passages []domain.Passage, history []domain.Turn) (TokenStream, error) {
	messages := make([]*schema.Message, 0, len(history)+2)
	messages = append(messages, schema.SystemMessage(BuildQAPrompt(passages)))
	messages = append(messages, historyMessages(history)...)
	messages = append(messages, schema.UserMessage(question))

	reader, err := g.model.Stream(ctx, messages)
	if err != nil {
		return nil, domain.E(domain.CodeGeneration, "llm.Answer", "", err)
	}
	return &modelTokenStream{reader: reader}, nil
}

type modelTokenStream struct {
	reader *schema.StreamReader[*schema.Message]
}

func (s *modelTokenStream) Recv() (string, error) {
	for {
		message, err := s.reader.Recv()
		if err == io.EOF {
			return "", io.EOF
		}
		if err != nil {
			return "", domain.E(domain.CodeGeneration, "llm.TokenStream", "", err)
		}
		if message.Content != "" {
			return message.Content, nil
		}
		// Tool-call or metadata-only chunks carry no answer text.
	}
}

func (s *modelTokenStream) Close() {
	s.reader.Close()
}
