package ledger

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"faceswap/internal/domain"
)

// DefaultHistoryLimit caps history reads when the caller gives no limit.
const DefaultHistoryLimit = 50

// SaveGenerationResult stores a successful run. ExpiresAt is always derived
// from CreatedAt.
func (c *Client) SaveGenerationResult(ctx context.Context, rec *domain.GenerationRecord) error {
	rec.Stamp(c.now())
	var saved domain.GenerationRecord
	if err := c.call(ctx, rec.UserID, http.MethodPost, "/v1/generations", rec, &saved); err != nil {
		return fmt.Errorf("ledger: save generation: %w", err)
	}
	if saved.ID != "" {
		rec.ID = saved.ID
	}
	return nil
}

// GetGenerationHistory lists the user's unexpired generations, newest first.
// Expired rows are dropped here too, in case the server has not purged them.
func (c *Client) GetGenerationHistory(ctx context.Context, userID string, limit int) ([]domain.GenerationRecord, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	path := "/v1/users/" + url.PathEscape(userID) + "/generations?limit=" + strconv.Itoa(limit)
	var out struct {
		Items []domain.GenerationRecord `json:"items"`
	}
	if err := c.call(ctx, userID, http.MethodGet, path, nil, &out); err != nil {
		return nil, fmt.Errorf("ledger: list generations: %w", err)
	}
	return domain.ActiveGenerations(out.Items, c.now()), nil
}

// CleanupExpired deletes the user's expired generations and returns how many
// were removed.
func (c *Client) CleanupExpired(ctx context.Context, userID string) (int64, error) {
	var out struct {
		Deleted int64 `json:"deleted"`
	}
	path := "/v1/users/" + url.PathEscape(userID) + "/generations/expired"
	if err := c.call(ctx, userID, http.MethodDelete, path, nil, &out); err != nil {
		return 0, fmt.Errorf("ledger: cleanup generations: %w", err)
	}
	return out.Deleted, nil
}
