package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"faceswap/internal/domain"
	"faceswap/internal/infra"
	"faceswap/internal/sqlinline"
)

// CreditRepositoryPG implements domain.CreditRepository on PostgreSQL.
type CreditRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewCreditRepository creates a new CreditRepositoryPG.
func NewCreditRepository(sql infra.SQLExecutor) *CreditRepositoryPG {
	return &CreditRepositoryPG{sql: sql}
}

// GetUser returns the cached balance row.
func (r *CreditRepositoryPG) GetUser(ctx context.Context, userID string) (*domain.UserCredits, error) {
	return scanCredits(r.sql.QueryRow(ctx, sqlinline.QSelectUserCredits, userID))
}

// EnsureUser returns the balance row, creating it with initial credits when
// the user has none yet.
func (r *CreditRepositoryPG) EnsureUser(ctx context.Context, userID string, initial int) (*domain.UserCredits, error) {
	if initial < 0 {
		initial = 0
	}
	return scanCredits(r.sql.QueryRow(ctx, sqlinline.QEnsureUserCredits, userID, initial))
}

// AppendEntry inserts one signed ledger entry.
func (r *CreditRepositoryPG) AppendEntry(ctx context.Context, entry *domain.CreditEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	_, err := r.sql.Exec(ctx, sqlinline.QInsertCreditEntry, entry.ID, entry.UserJoin, string(entry.Uses), entry.Count, entry.Timestamp)
	if err != nil {
		return fmt.Errorf("append credit entry: %w", err)
	}
	return nil
}

// UpdateRemainCount overwrites the cached balance.
func (r *CreditRepositoryPG) UpdateRemainCount(ctx context.Context, userID string, remain int) error {
	tag, err := r.sql.Exec(ctx, sqlinline.QUpdateRemainCount, userID, remain)
	if err != nil {
		return fmt.Errorf("update remain count: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user %s: %w", userID, domain.ErrNotFound)
	}
	return nil
}

func scanCredits(row interface{ Scan(dest ...any) error }) (*domain.UserCredits, error) {
	var c domain.UserCredits
	if err := row.Scan(&c.UserID, &c.RemainCount, &c.UpdatedAt); err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

var _ domain.CreditRepository = (*CreditRepositoryPG)(nil)
