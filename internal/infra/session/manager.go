package session

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"ragd/internal/domain"
)

// Manager owns the session lifecycle for (caller, collection) pairs.
type Manager struct {
	store  *Store
	logger *zap.Logger
}

func NewManager(store *Store, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{store: store, logger: logger.Named("session")}
}

// Authenticate validates the caller/collection binding and resolves the
// session, creating it on first contact. Authorization failure and an
// unknown collection are deliberately indistinguishable to the caller.
func (m *Manager) Authenticate(ctx context.Context, callerID, collectionID string) (domain.Session, error) {
	if strings.TrimSpace(callerID) == "" || strings.TrimSpace(collectionID) == "" {
		return domain.Session{}, domain.E(domain.CodeUnauthenticated, "session.Authenticate",
			"Missing caller or knowledge base ID", nil)
	}

	authorized, err := m.store.IsAuthorized(ctx, callerID, collectionID)
	if err != nil {
		return domain.Session{}, domain.E(domain.CodeInternal, "session.Authenticate", "", err)
	}
	if !authorized {
		return domain.Session{}, domain.E(domain.CodeUnauthenticated, "session.Authenticate",
			"Knowledge base not found or unauthorized", domain.ErrNotAuthorized)
	}

	session, err := m.store.GetOrCreateSession(ctx, callerID, collectionID)
	if err != nil {
		return domain.Session{}, domain.E(domain.CodeInternal, "session.Authenticate", "", err)
	}
	m.logger.Debug("session resolved",
		zap.String("session", session.ID),
		zap.String("caller", callerID),
		zap.String("collection", collectionID),
	)
	return session, nil
}
