package member

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"gymdesk/internal/adapters/storage"
	domain "gymdesk/internal/domain/member"
)

const memberColumns = "id, name, email, status, created_at"

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db storage.SQLDB
}

// NewSQLiteStore creates a new member store.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// GetByID retrieves a Member by its ID.
// PRE: id is non-empty
// POST: Returns the entity or storage.ErrNotFound
func (s *SQLiteStore) GetByID(ctx context.Context, id string) (domain.Member, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+memberColumns+" FROM member WHERE id = ?", id)
	m, err := scanMember(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Member{}, fmt.Errorf("member %s: %w", id, storage.ErrNotFound)
	}
	return m, err
}

// GetByEmail retrieves a Member by normalised email.
// PRE: email is non-empty
// POST: Returns the entity or storage.ErrNotFound
func (s *SQLiteStore) GetByEmail(ctx context.Context, email string) (domain.Member, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+memberColumns+" FROM member WHERE email = ?", domain.NormalizeEmail(email))
	m, err := scanMember(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Member{}, fmt.Errorf("member with email %s: %w", email, storage.ErrNotFound)
	}
	return m, err
}

// Save persists a Member (insert or update).
// PRE: entity has been validated
// POST: Entity is persisted; a clashing email returns domain.ErrDuplicateEmail
func (s *SQLiteStore) Save(ctx context.Context, entity domain.Member) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO member (`+memberColumns+`) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   name=excluded.name, email=excluded.email, status=excluded.status`,
		entity.ID, entity.Name, domain.NormalizeEmail(entity.Email), entity.Status,
		storage.FormatTimestamp(entity.CreatedAt))
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed: member.email") {
		return domain.ErrDuplicateEmail
	}
	return err
}

// List returns members ordered by name.
// PRE: filter.Limit >= 0
// POST: Returns at most Limit members (all when Limit is 0)
func (s *SQLiteStore) List(ctx context.Context, filter ListFilter) ([]domain.Member, error) {
	query := "SELECT " + memberColumns + " FROM member"
	var args []any
	if filter.Status != "" {
		query += " WHERE status = ?"
		args = append(args, filter.Status)
	}
	query += " ORDER BY name COLLATE NOCASE, id"
	if filter.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMember(row scanner) (domain.Member, error) {
	var m domain.Member
	var createdAt string
	if err := row.Scan(&m.ID, &m.Name, &m.Email, &m.Status, &createdAt); err != nil {
		return domain.Member{}, err
	}
	var err error
	if m.CreatedAt, err = storage.ParseTimestamp(createdAt); err != nil {
		return domain.Member{}, fmt.Errorf("member %s: bad created_at %q: %w", m.ID, createdAt, err)
	}
	return m, nil
}
