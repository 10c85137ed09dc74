package domain

import (
	"context"
	"time"
)

// CreditRepository stores the credit ledger and the cached balance next to it.
type CreditRepository interface {
	GetUser(ctx context.Context, userID string) (*UserCredits, error)
	// EnsureUser creates the balance row with initial credits when missing.
	EnsureUser(ctx context.Context, userID string, initial int) (*UserCredits, error)
	AppendEntry(ctx context.Context, entry *CreditEntry) error
	UpdateRemainCount(ctx context.Context, userID string, remain int) error
}

// GenerationRepository persists generation history.
type GenerationRepository interface {
	Save(ctx context.Context, record *GenerationRecord) error
	ListActive(ctx context.Context, userID string, limit int, now time.Time) ([]GenerationRecord, error)
	DeleteExpired(ctx context.Context, userID string, now time.Time) (int64, error)
	DeleteAllExpired(ctx context.Context, now time.Time) (int64, error)
}
