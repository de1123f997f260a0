package chatws

import (
	"context"
	"io"
	"strings"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"go.uber.org/zap"

	"ragd/internal/domain"
	"ragd/internal/infra/pipeline"
)

// responder drives the start/chunk/end frame sequence for one question.
type responder struct {
	conn   *websocket.Conn
	logger *zap.Logger
}

// streamAnswer opens the response with a start frame, relays every token as
// a chunk frame, and returns the full concatenated answer. A token source
// error mid-stream surfaces as a generation error for the caller to report;
// a write failure means the peer is gone and comes back as a canceled error
// so nothing else is sent.
func (r *responder) streamAnswer(ctx context.Context, result *pipeline.Result) (string, error) {
	defer result.Stream.Close()

	if err := wsjson.Write(ctx, r.conn, domain.ServerFrame{
		Type:    domain.FrameStart,
		Message: "Generating response...",
	}); err != nil {
		return "", domain.E(domain.CodeCanceled, "chatws.stream", "connection lost before streaming", err)
	}

	var answer strings.Builder
	for {
		token, err := result.Stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			if ctx.Err() != nil {
				return "", domain.E(domain.CodeCanceled, "chatws.stream", "canceled mid-stream", ctx.Err())
			}
			r.logger.Warn("token stream failed mid-answer", zap.Error(err))
			return "", domain.E(domain.CodeGeneration, "chatws.stream", "token stream aborted", err)
		}
		answer.WriteString(token)
		if err := wsjson.Write(ctx, r.conn, domain.ServerFrame{
			Type:    domain.FrameChunk,
			Content: token,
		}); err != nil {
			return "", domain.E(domain.CodeCanceled, "chatws.stream", "connection lost mid-stream", err)
		}
	}
	return answer.String(), nil
}

// finish sends the end frame carrying the passage set and the citations
// extracted from the delivered answer. The answer is already persisted by
// the time this runs, so a write failure here is only logged.
func (r *responder) finish(ctx context.Context, passages []domain.Passage, citations []domain.Citation) {
	if err := wsjson.Write(ctx, r.conn, domain.ServerFrame{
		Type:      domain.FrameEnd,
		Passages:  passages,
		Citations: citations,
	}); err != nil {
		r.logger.Debug("end frame write failed", zap.Error(err))
	}
}
