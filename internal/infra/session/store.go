package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"ragd/internal/domain"
)

// Store persists sessions, turns, and the collection authorization table in
// SQLite. Get-or-create is an atomic insert-if-absent backed by a unique
// index on (caller_id, collection_id); concurrent first contacts for the
// same pair converge on a single row.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

func OpenStore(path string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure store dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	s := &Store{db: db, logger: logger.Named("store")}
	if err := s.createSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS collections (
			id TEXT PRIMARY KEY,
			owner_id TEXT NOT NULL,
			provider_id TEXT NOT NULL,
			name TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL
		);

		CREATE TABLE IF NOT EXISTS collection_shares (
			collection_id TEXT NOT NULL,
			caller_id TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			PRIMARY KEY (collection_id, caller_id),
			FOREIGN KEY (collection_id) REFERENCES collections(id)
		);

		CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			caller_id TEXT NOT NULL,
			collection_id TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			FOREIGN KEY (collection_id) REFERENCES collections(id)
		);

		CREATE UNIQUE INDEX IF NOT EXISTS idx_sessions_caller_collection
			ON sessions(caller_id, collection_id);

		CREATE TABLE IF NOT EXISTS turns (
			session_id TEXT NOT NULL,
			ordinal INTEGER NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			PRIMARY KEY (session_id, ordinal),
			FOREIGN KEY (session_id) REFERENCES sessions(id)
		);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}
	return nil
}

// CreateCollection registers a collection owned by ownerID and served by
// providerID. Collection CRUD proper is an external concern; this exists so
// the authorization table can be provisioned and tested.
func (s *Store) CreateCollection(ctx context.Context, col domain.Collection) error {
	if col.CreatedAt.IsZero() {
		col.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO collections (id, owner_id, provider_id, name, created_at) VALUES (?, ?, ?, ?, ?)`,
		col.ID, col.OwnerID, col.ProviderID, col.Name, col.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create collection: %w", err)
	}
	return nil
}

// ShareCollection grants callerID access to a collection it does not own.
func (s *Store) ShareCollection(ctx context.Context, collectionID, callerID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO collection_shares (collection_id, caller_id, created_at) VALUES (?, ?, ?)`,
		collectionID, callerID, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("share collection: %w", err)
	}
	return nil
}

// IsAuthorized reports whether callerID may open sessions against the
// collection: either as owner or through an explicit share.
func (s *Store) IsAuthorized(ctx context.Context, callerID, collectionID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `
		SELECT 1 FROM collections c
		LEFT JOIN collection_shares sh
			ON sh.collection_id = c.id AND sh.caller_id = ?
		WHERE c.id = ? AND (c.owner_id = ? OR sh.caller_id IS NOT NULL)`,
		callerID, collectionID, callerID,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("authorization lookup: %w", err)
	}
	return true, nil
}

// CollectionProvider returns the provider bound to a collection.
func (s *Store) CollectionProvider(ctx context.Context, collectionID string) (string, error) {
	var providerID string
	err := s.db.QueryRowContext(ctx,
		`SELECT provider_id FROM collections WHERE id = ?`, collectionID,
	).Scan(&providerID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", domain.ErrCollectionNotFound
	}
	if err != nil {
		return "", fmt.Errorf("collection lookup: %w", err)
	}
	return providerID, nil
}

// GetOrCreateSession returns the session for (callerID, collectionID),
// creating it on first contact. The INSERT OR IGNORE against the unique
// index makes creation idempotent under concurrency.
func (s *Store) GetOrCreateSession(ctx context.Context, callerID, collectionID string) (domain.Session, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO sessions (id, caller_id, collection_id, created_at) VALUES (?, ?, ?, ?)`,
		uuid.NewString(), callerID, collectionID, time.Now().UTC(),
	)
	if err != nil {
		return domain.Session{}, fmt.Errorf("create session: %w", err)
	}

	var session domain.Session
	err = s.db.QueryRowContext(ctx,
		`SELECT id, caller_id, collection_id, created_at FROM sessions WHERE caller_id = ? AND collection_id = ?`,
		callerID, collectionID,
	).Scan(&session.ID, &session.CallerID, &session.CollectionID, &session.CreatedAt)
	if err != nil {
		return domain.Session{}, fmt.Errorf("load session: %w", err)
	}
	return session, nil
}

// RecentTurns returns the most recent limit turns in chronological order.
func (s *Store) RecentTurns(ctx context.Context, sessionID string, limit int) ([]domain.Turn, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT role, content, ordinal FROM (
			SELECT role, content, ordinal FROM turns
			WHERE session_id = ?
			ORDER BY ordinal DESC
			LIMIT ?
		) ORDER BY ordinal ASC`,
		sessionID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("load turns: %w", err)
	}
	defer rows.Close()

	var turns []domain.Turn
	for rows.Next() {
		var turn domain.Turn
		if err := rows.Scan(&turn.Role, &turn.Content, &turn.Ordinal); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		turns = append(turns, turn)
	}
	return turns, rows.Err()
}

// AppendExchange records one completed question/answer pair in a single
// transaction. A question canceled mid-generation never reaches this point,
// so the history can never hold a partial assistant turn.
func (s *Store) AppendExchange(ctx context.Context, sessionID, question, answer string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin exchange: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var next int
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(ordinal), 0) + 1 FROM turns WHERE session_id = ?`, sessionID,
	).Scan(&next)
	if err != nil {
		return fmt.Errorf("next ordinal: %w", err)
	}

	now := time.Now().UTC()
	_, err = tx.ExecContext(ctx,
		`INSERT INTO turns (session_id, ordinal, role, content, created_at) VALUES (?, ?, ?, ?, ?), (?, ?, ?, ?, ?)`,
		sessionID, next, domain.RoleUser, question, now,
		sessionID, next+1, domain.RoleAssistant, answer, now,
	)
	if err != nil {
		return fmt.Errorf("append turns: %w", err)
	}
	return tx.Commit()
}
