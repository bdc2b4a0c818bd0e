package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"insights/internal/models"
)

// ErrNotFound is returned when a single-row lookup matches nothing
var ErrNotFound = errors.New("not found")

// Column sets scanned into the models when a query does not project explicitly
var (
	ChatMessageColumns = []string{
		"id", "site_id", "session_id", "role", "intent", "lang",
		"user_sentiment", "answer_confidence", "content", "created_at",
	}
	LeadColumns    = []string{"name", "email", "phone", "intent", "created_at"}
	ProfileColumns = []string{"id", "site_id", "domain", "plan"}
)

// Store runs read-only queries against chat_history, leads and profiles
type Store struct {
	db      *sqlx.DB
	dialect string
}

// NewStore wraps an open connection. The goqu dialect follows the driver;
// anything that is not MySQL renders PostgreSQL placeholders.
func NewStore(db *sqlx.DB) *Store {
	dialect := DriverPostgres
	if db.DriverName() == DriverMySQL {
		dialect = DriverMySQL
	}
	return &Store{db: db, dialect: dialect}
}

// DB exposes the underlying connection for health checks
func (s *Store) DB() *sqlx.DB {
	return s.db
}

// Messages returns chat_history rows matching q
func (s *Store) Messages(ctx context.Context, q Query) ([]models.ChatMessage, error) {
	if len(q.Columns) == 0 {
		q.Columns = ChatMessageColumns
	}

	query, args, err := q.ToSQL(s.dialect, TableChatHistory)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s query: %w", TableChatHistory, err)
	}

	var messages []models.ChatMessage
	if err := ExecuteReadOnlyQuery(ctx, s.db, &messages, query, args...); err != nil {
		return nil, err
	}
	return messages, nil
}

// CountMessages counts chat_history rows matching q's filters
func (s *Store) CountMessages(ctx context.Context, q Query) (int, error) {
	query, args, err := q.CountSQL(s.dialect, TableChatHistory)
	if err != nil {
		return 0, fmt.Errorf("failed to build %s count: %w", TableChatHistory, err)
	}

	var count int
	if err := ExecuteReadOnlyQuerySingle(ctx, s.db, &count, query, args...); err != nil {
		return 0, err
	}
	return count, nil
}

// Leads returns leads rows matching q
func (s *Store) Leads(ctx context.Context, q Query) ([]models.Lead, error) {
	if len(q.Columns) == 0 {
		q.Columns = LeadColumns
	}

	query, args, err := q.ToSQL(s.dialect, TableLeads)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s query: %w", TableLeads, err)
	}

	var leads []models.Lead
	if err := ExecuteReadOnlyQuery(ctx, s.db, &leads, query, args...); err != nil {
		return nil, err
	}
	return leads, nil
}

// Profile looks up the profile of an authenticated user
func (s *Store) Profile(ctx context.Context, userID string) (*models.Profile, error) {
	query, args, err := Select(ProfileColumns...).Eq("id", userID).Take(1).ToSQL(s.dialect, TableProfiles)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s query: %w", TableProfiles, err)
	}

	var profile models.Profile
	if err := ExecuteReadOnlyQuerySingle(ctx, s.db, &profile, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &profile, nil
}

// Ping verifies the store answers queries
func (s *Store) Ping(ctx context.Context) error {
	return ExecuteReadOnlyPing(ctx, s.db)
}
