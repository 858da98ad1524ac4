package subscription

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"gymdesk/internal/adapters/storage"
	"gymdesk/internal/domain/billing"
	domain "gymdesk/internal/domain/subscription"
)

const subscriptionColumns = "id, member_id, cadence, anchor, expires_at, status, auto_renew, created_at, updated_at"

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db storage.SQLDB
}

// NewSQLiteStore creates a new subscription store.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// GetByID retrieves a Subscription by its ID.
// PRE: id is non-empty
// POST: Returns the entity or storage.ErrNotFound
func (s *SQLiteStore) GetByID(ctx context.Context, id string) (domain.Subscription, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+subscriptionColumns+" FROM subscription WHERE id = ?", id)
	sub, err := scanSubscription(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Subscription{}, fmt.Errorf("subscription %s: %w", id, storage.ErrNotFound)
	}
	return sub, err
}

// Save persists a Subscription (insert or update).
// PRE: entity has been validated
// POST: Entity is persisted
func (s *SQLiteStore) Save(ctx context.Context, e domain.Subscription) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO subscription (`+subscriptionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   cadence=excluded.cadence, anchor=excluded.anchor, expires_at=excluded.expires_at,
		   status=excluded.status, auto_renew=excluded.auto_renew, updated_at=excluded.updated_at`,
		e.ID, e.MemberID, string(e.Cadence), e.Anchor, formatDate(e.ExpiresAt), e.Status,
		boolToInt(e.AutoRenew), storage.FormatTimestamp(e.CreatedAt), storage.FormatTimestamp(e.UpdatedAt))
	return err
}

// SaveIfUnchanged is a compare-and-swap against the row as the caller read it:
// expiry, status and auto-renew must all still match prev.
// PRE: entity has been validated and exists; prev is the row as loaded
// POST: Row updated, or storage.ErrConflict when another writer got there first
func (s *SQLiteStore) SaveIfUnchanged(ctx context.Context, e domain.Subscription, prev domain.Subscription) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE subscription SET cadence = ?, anchor = ?, expires_at = ?, status = ?, auto_renew = ?, updated_at = ?
		 WHERE id = ? AND expires_at = ? AND status = ? AND auto_renew = ?`,
		string(e.Cadence), e.Anchor, formatDate(e.ExpiresAt), e.Status, boolToInt(e.AutoRenew),
		storage.FormatTimestamp(e.UpdatedAt),
		e.ID, formatDate(prev.ExpiresAt), prev.Status, boolToInt(prev.AutoRenew))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("subscription %s changed since it was read (was %s, expires %s): %w",
			e.ID, prev.Status, formatDate(prev.ExpiresAt), storage.ErrConflict)
	}
	return nil
}

// ListByMember returns a member's subscriptions, newest first.
func (s *SQLiteStore) ListByMember(ctx context.Context, memberID string) ([]domain.Subscription, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+subscriptionColumns+" FROM subscription WHERE member_id = ? ORDER BY created_at DESC, id",
		memberID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSubscriptions(rows)
}

// ListDue returns active or grace subscriptions whose expiry is on or before
// asOf, after the cursor.
// PRE: limit > 0
// POST: Returns up to limit rows ordered by (expires_at, id)
func (s *SQLiteStore) ListDue(ctx context.Context, asOf time.Time, after DueCursor, limit int) ([]domain.Subscription, error) {
	query := "SELECT " + subscriptionColumns + ` FROM subscription
		 WHERE status IN (?, ?) AND expires_at <= ?`
	args := []any{domain.StatusActive, domain.StatusGrace, formatDate(asOf)}
	if after.ID != "" {
		cursor := formatDate(after.ExpiresAt)
		query += " AND (expires_at > ? OR (expires_at = ? AND id > ?))"
		args = append(args, cursor, cursor, after.ID)
	}
	query += " ORDER BY expires_at, id LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSubscriptions(rows)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSubscription(row scanner) (domain.Subscription, error) {
	var sub domain.Subscription
	var cadence, expiresAt, createdAt, updatedAt string
	var autoRenew int
	if err := row.Scan(&sub.ID, &sub.MemberID, &cadence, &sub.Anchor, &expiresAt, &sub.Status,
		&autoRenew, &createdAt, &updatedAt); err != nil {
		return domain.Subscription{}, err
	}
	sub.Cadence = billing.Cadence(cadence)
	sub.AutoRenew = autoRenew != 0
	var err error
	if sub.ExpiresAt, err = time.Parse(storage.DateLayout, expiresAt); err != nil {
		return domain.Subscription{}, fmt.Errorf("subscription %s: bad expires_at %q: %w", sub.ID, expiresAt, err)
	}
	if sub.CreatedAt, err = storage.ParseTimestamp(createdAt); err != nil {
		return domain.Subscription{}, fmt.Errorf("subscription %s: bad created_at %q: %w", sub.ID, createdAt, err)
	}
	if sub.UpdatedAt, err = storage.ParseTimestamp(updatedAt); err != nil {
		return domain.Subscription{}, fmt.Errorf("subscription %s: bad updated_at %q: %w", sub.ID, updatedAt, err)
	}
	return sub, nil
}

func scanSubscriptions(rows *sql.Rows) ([]domain.Subscription, error) {
	var out []domain.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

func formatDate(t time.Time) string {
	return t.Format(storage.DateLayout)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
