package credentials

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type stubExecutor struct {
	token string
	err   error
	exec  struct {
		query string
		args  []any
	}
}

func (s *stubExecutor) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	s.exec.query = query
	s.exec.args = args
	return pgconn.CommandTag{}, s.err
}

func (s *stubExecutor) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	return stubRow{token: s.token, err: s.err}
}

func (s *stubExecutor) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

type stubRow struct {
	token string
	err   error
}

func (r stubRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) == 0 {
		return errors.New("no dest")
	}
	ptr, ok := dest[0].(*string)
	if !ok {
		return errors.New("invalid dest")
	}
	*ptr = r.token
	return nil
}

func TestTokenTrimsStoredKey(t *testing.T) {
	for _, provider := range Providers {
		store := NewStore(&stubExecutor{token: " abc123 "})
		key, err := store.Token(context.Background(), provider)
		if err != nil {
			t.Fatalf("%s token error: %v", provider, err)
		}
		if key != "abc123" {
			t.Fatalf("%s: expected abc123, got %q", provider, key)
		}
	}
}

func TestTokenNoRows(t *testing.T) {
	store := NewStore(&stubExecutor{err: pgx.ErrNoRows})
	key, err := store.Token(context.Background(), ProviderQwen)
	if err != nil {
		t.Fatalf("Token error: %v", err)
	}
	if key != "" {
		t.Fatalf("expected empty key, got %q", key)
	}
}

func TestTokenUnknownProvider(t *testing.T) {
	store := NewStore(&stubExecutor{token: "x"})
	if _, err := store.Token(context.Background(), "openai"); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}

func TestResolvePrefersEnvironment(t *testing.T) {
	store := NewStore(&stubExecutor{token: "stored"})
	tests := []struct {
		env  string
		want string
	}{
		{env: " from-env ", want: "from-env"},
		{env: "", want: "stored"},
	}
	for _, tt := range tests {
		got, err := store.Resolve(context.Background(), ProviderFaceSwap, tt.env)
		if err != nil {
			t.Fatalf("Resolve error: %v", err)
		}
		if got != tt.want {
			t.Fatalf("Resolve(%q) = %q, want %q", tt.env, got, tt.want)
		}
	}

	var none *Store
	if got, err := none.Resolve(context.Background(), ProviderGemini, ""); err != nil || got != "" {
		t.Fatalf("nil store Resolve = %q, %v", got, err)
	}
}

func TestSet(t *testing.T) {
	exec := &stubExecutor{}
	store := NewStore(exec)
	if err := store.Set(context.Background(), ProviderGemini, "secret", map[string]any{"rotatedBy": "ops"}); err != nil {
		t.Fatalf("Set error: %v", err)
	}
	if len(exec.exec.args) != 3 {
		t.Fatalf("expected 3 args, got %d", len(exec.exec.args))
	}
	if v, ok := exec.exec.args[1].(string); !ok || v != "secret" {
		t.Fatalf("expected secret argument, got %T %v", exec.exec.args[1], exec.exec.args[1])
	}
	if raw, ok := exec.exec.args[2].([]byte); !ok || string(raw) != `{"rotatedBy":"ops"}` {
		t.Fatalf("unexpected properties %v", exec.exec.args[2])
	}
}

func TestSetEmpty(t *testing.T) {
	store := NewStore(&stubExecutor{})
	if err := store.Set(context.Background(), ProviderQwen, " ", nil); err == nil {
		t.Fatal("expected error for empty key")
	}
}

func TestDelete(t *testing.T) {
	exec := &stubExecutor{}
	if err := NewStore(exec).Delete(context.Background(), ProviderFaceSwap); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if len(exec.exec.args) != 1 || exec.exec.args[0] != ProviderFaceSwap {
		t.Fatalf("unexpected args %v", exec.exec.args)
	}
}
