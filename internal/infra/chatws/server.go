package chatws

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"go.uber.org/zap"

	"ragd/internal/domain"
	"ragd/internal/infra/pipeline"
)

// Close codes sent on handshake failures.
const (
	closeBadHandshake   websocket.StatusCode = 4000
	closeMissingAuth    websocket.StatusCode = 4001
	closeUnauthorized   websocket.StatusCode = 4003
	handshakeTimeout                         = 30 * time.Second
	persistTimeout                           = 10 * time.Second
)

// Authenticator resolves the durable session for a caller/collection pair.
type Authenticator interface {
	Authenticate(ctx context.Context, callerID, collectionID string) (domain.Session, error)
}

// HistoryStore is the slice of the session store the connection loop needs.
type HistoryStore interface {
	RecentTurns(ctx context.Context, sessionID string, limit int) ([]domain.Turn, error)
	AppendExchange(ctx context.Context, sessionID, question, answer string) error
}

// QuestionPipeline runs one question through the orchestration pipeline.
type QuestionPipeline interface {
	Answer(ctx context.Context, session domain.Session, turns []domain.Turn) (*pipeline.Result, error)
}

// Server owns the inbound websocket surface. One goroutine serves each
// connection; questions on a connection run strictly in order while
// different connections proceed fully concurrently.
type Server struct {
	auth            Authenticator
	history         HistoryStore
	pipeline        QuestionPipeline
	historyWindow   int
	questionTimeout time.Duration
	metrics         domain.Metrics
	logger          *zap.Logger
}

type Options struct {
	Auth            Authenticator
	History         HistoryStore
	Pipeline        QuestionPipeline
	HistoryWindow   int
	QuestionTimeout time.Duration
	Metrics         domain.Metrics
	Logger          *zap.Logger
}

func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = domain.NopMetrics{}
	}
	window := opts.HistoryWindow
	if window <= 0 {
		window = 10
	}
	timeout := opts.QuestionTimeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Server{
		auth:            opts.Auth,
		history:         opts.History,
		pipeline:        opts.Pipeline,
		historyWindow:   window,
		questionTimeout: timeout,
		metrics:         metrics,
		logger:          logger.Named("chatws"),
	}
}

// Handler returns the HTTP handler exposing the chat endpoint.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws/chat", s.handleChat)
	return mux
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket accept failed", zap.Error(err))
		return
	}
	s.metrics.AddActiveConnections(1)
	defer s.metrics.AddActiveConnections(-1)
	s.serve(r.Context(), conn)
}

// serve runs the connection loop. A dedicated reader goroutine owns all
// reads and cancels the connection context the moment the peer goes away,
// so an in-flight generation is canceled promptly instead of at the next
// write. Frames queue in order; a question in flight is finished before the
// next one starts.
func (s *Server) serve(parent context.Context, conn *websocket.Conn) {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()
	defer conn.Close(websocket.StatusNormalClosure, "")

	frames := make(chan domain.ClientFrame)
	go func() {
		defer close(frames)
		for {
			var frame domain.ClientFrame
			if err := wsjson.Read(ctx, conn, &frame); err != nil {
				cancel()
				return
			}
			select {
			case frames <- frame:
			case <-ctx.Done():
				return
			}
		}
	}()

	session, ok := s.handshake(ctx, conn, frames)
	if !ok {
		return
	}

	for frame := range frames {
		switch frame.Type {
		case domain.FrameChat:
			s.handleQuestion(ctx, conn, session, frame.Messages)
		default:
			s.writeError(ctx, conn, fmt.Sprintf("Unknown message type: %s", frame.Type))
		}
	}
	s.logger.Debug("connection closed",
		zap.String("session", session.ID),
	)
}

// handshake enforces the auth-first protocol. On failure one error frame is
// sent and the connection is closed; no further messages are processed.
func (s *Server) handshake(ctx context.Context, conn *websocket.Conn, frames <-chan domain.ClientFrame) (domain.Session, bool) {
	var frame domain.ClientFrame
	select {
	case received, open := <-frames:
		if !open {
			return domain.Session{}, false
		}
		frame = received
	case <-time.After(handshakeTimeout):
		_ = conn.Close(closeBadHandshake, "handshake timeout")
		return domain.Session{}, false
	case <-ctx.Done():
		return domain.Session{}, false
	}

	if frame.Type != domain.FrameAuth {
		s.writeError(ctx, conn, "Expected type 'auth' as first message")
		_ = conn.Close(closeBadHandshake, "auth required")
		return domain.Session{}, false
	}
	if frame.CallerID == "" || frame.CollectionID == "" {
		s.writeError(ctx, conn, "Missing caller or knowledge base ID")
		_ = conn.Close(closeMissingAuth, "missing credentials")
		return domain.Session{}, false
	}

	session, err := s.auth.Authenticate(ctx, frame.CallerID, frame.CollectionID)
	if err != nil {
		s.writeError(ctx, conn, errorMessage(err))
		_ = conn.Close(closeUnauthorized, "unauthorized")
		s.logger.Info("authentication rejected",
			zap.String("caller", frame.CallerID),
			zap.String("collection", frame.CollectionID),
		)
		return domain.Session{}, false
	}

	s.write(ctx, conn, domain.ServerFrame{
		Type:    domain.FrameInfo,
		Message: "Authentication successful",
	})
	return session, true
}

func (s *Server) handleQuestion(ctx context.Context, conn *websocket.Conn, session domain.Session, messages []domain.Turn) {
	started := time.Now()

	if err := domain.ValidateTurns(messages); err != nil {
		s.metrics.ObserveQuestion(domain.QuestionOutcomeRejected, time.Since(started))
		s.writeError(ctx, conn, validationMessage(err))
		return
	}

	turns := s.assembleTurns(ctx, session, messages)

	questionCtx, cancel := context.WithTimeout(ctx, s.questionTimeout)
	defer cancel()

	result, err := s.pipeline.Answer(questionCtx, session, turns)
	if err != nil {
		s.finishWithError(ctx, conn, session, err, started)
		return
	}

	rsp := &responder{conn: conn, logger: s.logger}
	answer, err := rsp.streamAnswer(questionCtx, result)
	if err != nil {
		s.finishWithError(ctx, conn, session, err, started)
		return
	}

	citations, dropped := domain.ExtractCitations(answer, len(result.Passages))
	if dropped > 0 {
		s.logger.Warn("citations referenced passages outside the supplied set",
			zap.String("session", session.ID),
			zap.Int("dropped", dropped),
		)
	}

	// The answer is complete: persist it before confirming to the caller.
	// context.WithoutCancel so a disconnect between the last chunk and here
	// cannot tear a finished exchange out of the history.
	persistCtx, cancelPersist := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancelPersist()
	question := messages[len(messages)-1].Content
	if err := s.history.AppendExchange(persistCtx, session.ID, question, answer); err != nil {
		s.logger.Error("persist exchange failed",
			zap.String("session", session.ID),
			zap.Error(err),
		)
	}

	rsp.finish(ctx, result.Passages, citations)

	outcome := domain.QuestionOutcomeAnswered
	if result.Fallback {
		outcome = domain.QuestionOutcomeFallback
	}
	s.metrics.ObserveQuestion(outcome, time.Since(started))
}

// assembleTurns applies the history window. A single inbound message means
// the client holds no local history, so the stored history backs the
// question instead.
func (s *Server) assembleTurns(ctx context.Context, session domain.Session, messages []domain.Turn) []domain.Turn {
	if len(messages) > 1 {
		return domain.WindowTurns(messages, s.historyWindow)
	}
	stored, err := s.history.RecentTurns(ctx, session.ID, s.historyWindow-1)
	if err != nil {
		s.logger.Warn("load history failed",
			zap.String("session", session.ID),
			zap.Error(err),
		)
		return messages
	}
	return append(stored, messages[len(messages)-1])
}

func (s *Server) finishWithError(ctx context.Context, conn *websocket.Conn, session domain.Session, err error, started time.Time) {
	code, _ := domain.CodeFrom(err)
	switch {
	case code == domain.CodeCanceled || ctx.Err() != nil:
		// Nobody is listening: cancellation and resource release only.
		s.metrics.ObserveQuestion(domain.QuestionOutcomeCanceled, time.Since(started))
		s.logger.Info("client disconnected during generation",
			zap.String("session", session.ID),
		)
	case code == domain.CodeInvalidArgument:
		s.metrics.ObserveQuestion(domain.QuestionOutcomeRejected, time.Since(started))
		s.writeError(ctx, conn, errorMessage(err))
	default:
		s.metrics.ObserveQuestion(domain.QuestionOutcomeError, time.Since(started))
		s.logger.Error("question failed",
			zap.String("session", session.ID),
			zap.String("code", string(code)),
			zap.Error(err),
		)
		s.writeError(ctx, conn, "Failed to generate response")
	}
}

func (s *Server) write(ctx context.Context, conn *websocket.Conn, frame domain.ServerFrame) {
	if err := wsjson.Write(ctx, conn, frame); err != nil {
		s.logger.Debug("frame write failed", zap.Error(err))
	}
}

func (s *Server) writeError(ctx context.Context, conn *websocket.Conn, message string) {
	s.write(ctx, conn, domain.ServerFrame{Type: domain.FrameError, Message: message})
}

func errorMessage(err error) string {
	var domainErr *domain.Error
	if errors.As(err, &domainErr) && domainErr.Message != "" {
		return domainErr.Message
	}
	return err.Error()
}

func validationMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrEmptyTurns):
		return "Missing messages"
	case errors.Is(err, domain.ErrLastTurnNotUser):
		return "Last message must be from user"
	default:
		return errorMessage(err)
	}
}
