package ledger

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"faceswap/internal/domain"
)

// Balance reads the user's current credit row.
func (c *Client) Balance(ctx context.Context, userID string) (*domain.UserCredits, error) {
	var out domain.UserCredits
	if err := c.call(ctx, userID, http.MethodGet, "/v1/users/"+url.PathEscape(userID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CheckBalance returns the user's remaining credits. A failed read is logged
// and answered with the configured default balance.
func (c *Client) CheckBalance(ctx context.Context, userID string) int {
	credits, err := c.Balance(ctx, userID)
	if err != nil {
		c.logger.Warn().Err(err).Str("user_id", userID).Int("default", c.defaultBalance).Msg("ledger: balance read failed, using default")
		return c.defaultBalance
	}
	return credits.RemainCount
}

// Debit records a -amount entry and lowers the cached balance. The entry and
// the balance update are separate writes; a failed update after a stored
// entry is a *domain.LedgerInconsistencyError.
func (c *Client) Debit(ctx context.Context, userID string, use domain.CreditUse, amount int) error {
	return c.adjust(ctx, userID, "debit", use, -amount)
}

// Restore records a compensating +amount entry and raises the balance.
func (c *Client) Restore(ctx context.Context, userID string, use domain.CreditUse, amount int) error {
	return c.adjust(ctx, userID, "restore", use, amount)
}

func (c *Client) adjust(ctx context.Context, userID, op string, use domain.CreditUse, delta int) error {
	if delta == 0 {
		return nil
	}
	current, err := c.Balance(ctx, userID)
	if err != nil {
		return fmt.Errorf("ledger: %s: read balance: %w", op, err)
	}
	entry := domain.CreditEntry{
		UserJoin:  userID,
		Uses:      use,
		Count:     delta,
		Timestamp: c.now().UTC(),
	}
	if err := c.call(ctx, userID, http.MethodPost, "/v1/credit-history", entry, nil); err != nil {
		return fmt.Errorf("ledger: %s: append entry: %w", op, err)
	}
	remain := current.RemainCount + delta
	body := map[string]int{"remainCount": remain}
	if err := c.call(ctx, userID, http.MethodPut, "/v1/users/"+url.PathEscape(userID)+"/credits", body, nil); err != nil {
		return &domain.LedgerInconsistencyError{UserID: userID, Op: op, Amount: delta, Err: err}
	}
	c.logger.Info().
		Str("user_id", userID).
		Str("op", op).
		Str("uses", string(use)).
		Int("amount", delta).
		Int("remain", remain).
		Msg("ledger: credits adjusted")
	return nil
}
