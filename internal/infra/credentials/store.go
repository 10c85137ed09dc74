// Package credentials stores provider API keys in the integration_tokens
// table so operators can rotate them without a redeploy.
package credentials

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"faceswap/internal/domain"
	"faceswap/internal/infra"
	"faceswap/internal/sqlinline"
)

const (
	ProviderGemini   = "gemini"
	ProviderQwen     = "qwen"
	ProviderFaceSwap = "faceswap"
)

// Providers lists the providers whose keys can be stored.
var Providers = []string{ProviderGemini, ProviderQwen, ProviderFaceSwap}

// Entry describes a stored key without revealing it.
type Entry struct {
	Provider  string
	UpdatedAt time.Time
}

type Store struct {
	sql infra.SQLExecutor
}

func NewStore(sql infra.SQLExecutor) *Store {
	return &Store{sql: sql}
}

// Token returns the stored key for provider, or "" when none is stored.
func (s *Store) Token(ctx context.Context, provider string) (string, error) {
	if err := validProvider(provider); err != nil {
		return "", err
	}
	row := s.sql.QueryRow(ctx, sqlinline.QSelectIntegrationToken, provider)
	var token string
	if err := row.Scan(&token); err != nil {
		if infra.IsNoRows(err) {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(token), nil
}

// Resolve prefers a key from the environment and falls back to the stored one.
func (s *Store) Resolve(ctx context.Context, provider, fromEnv string) (string, error) {
	if v := strings.TrimSpace(fromEnv); v != "" {
		return v, nil
	}
	if s == nil {
		return "", nil
	}
	return s.Token(ctx, provider)
}

// Set stores key for provider, replacing any previous one.
func (s *Store) Set(ctx context.Context, provider, key string, props map[string]any) error {
	if err := validProvider(provider); err != nil {
		return err
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return domain.NewValidationError("key", "%s api key is required", provider)
	}
	return s.upsert(ctx, provider, key, props)
}

// Delete removes the stored key for provider.
func (s *Store) Delete(ctx context.Context, provider string) error {
	if err := validProvider(provider); err != nil {
		return err
	}
	_, err := s.sql.Exec(ctx, sqlinline.QDeleteIntegrationToken, provider)
	return err
}

// List reports which providers have a stored key.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.sql.Query(ctx, sqlinline.QListIntegrationProviders)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Provider, &e.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) upsert(ctx context.Context, provider, token string, props map[string]any) error {
	payload := props
	if payload == nil {
		payload = map[string]any{}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = s.sql.Exec(ctx, sqlinline.QUpsertIntegrationToken, provider, token, raw)
	return err
}

func validProvider(provider string) error {
	for _, p := range Providers {
		if p == provider {
			return nil
		}
	}
	return domain.NewValidationError("provider", "unknown provider %q", provider)
}
