package domain

import "time"

// CreditUse tags a ledger entry with what consumed or returned credits.
type CreditUse string

const (
	CreditUseFaceSwap CreditUse = "face_swap"
	CreditUseClothing CreditUse = "clothing_change"
	CreditUseVideo    CreditUse = "video"
	CreditUseRestore  CreditUse = "restore"
)

// UserCredits is the cached balance kept alongside the ledger.
type UserCredits struct {
	UserID      string    `json:"userId"`
	RemainCount int       `json:"remainCount"`
	UpdatedAt   time.Time `json:"updatedAt,omitempty"`
}

// CreditEntry is one immutable ledger row. Count is signed.
type CreditEntry struct {
	ID        string    `json:"id,omitempty"`
	UserJoin  string    `json:"userJoin"`
	Uses      CreditUse `json:"uses"`
	Count     int       `json:"count"`
	Timestamp time.Time `json:"timestamp"`
}
