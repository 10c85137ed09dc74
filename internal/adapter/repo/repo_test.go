package repo

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"faceswap/internal/domain"
	"faceswap/internal/sqlinline"
)

func TestCreditRepositoryGetUser(t *testing.T) {
	updated := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	sql := &stubSQL{row: []any{"u1", 7, updated}}
	got, err := NewCreditRepository(sql).GetUser(context.Background(), "u1")
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if got.UserID != "u1" || got.RemainCount != 7 || !got.UpdatedAt.Equal(updated) {
		t.Fatalf("credits = %+v", got)
	}
	if sql.calls[0].query != sqlinline.QSelectUserCredits {
		t.Fatalf("unexpected query %q", sql.calls[0].query)
	}
}

func TestCreditRepositoryMissingUserIsNotFound(t *testing.T) {
	_, err := NewCreditRepository(&stubSQL{}).GetUser(context.Background(), "ghost")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestCreditRepositoryEnsureUserClampsInitial(t *testing.T) {
	sql := &stubSQL{row: []any{"u1", 0, time.Now()}}
	if _, err := NewCreditRepository(sql).EnsureUser(context.Background(), "u1", -4); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if got := sql.calls[0].args[1]; got != 0 {
		t.Fatalf("initial arg = %v, want 0", got)
	}
}

func TestCreditRepositoryAppendEntryFillsIDAndTimestamp(t *testing.T) {
	sql := &stubSQL{tag: "INSERT 0 1"}
	entry := &domain.CreditEntry{UserJoin: "u1", Uses: domain.CreditUseVideo, Count: -5}
	if err := NewCreditRepository(sql).AppendEntry(context.Background(), entry); err != nil {
		t.Fatalf("append: %v", err)
	}
	if entry.ID == "" || entry.Timestamp.IsZero() {
		t.Fatalf("entry not filled: %+v", entry)
	}
	args := sql.calls[0].args
	if args[2] != "video" || args[3] != -5 {
		t.Fatalf("args = %v", args)
	}
}

func TestCreditRepositoryUpdateRemainCount(t *testing.T) {
	tests := []struct {
		name    string
		tag     string
		err     error
		wantErr error
	}{
		{name: "updated", tag: "UPDATE 1"},
		{name: "missing user", tag: "UPDATE 0", wantErr: domain.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewCreditRepository(&stubSQL{tag: tt.tag}).UpdateRemainCount(context.Background(), "u1", 3)
			if tt.wantErr == nil && err != nil {
				t.Fatalf("err = %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestGenerationRepositorySaveStampsExpiry(t *testing.T) {
	sql := &stubSQL{tag: "INSERT 0 1"}
	created := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	rec := &domain.GenerationRecord{UserID: "u1", Type: domain.GenerationTypeImage, ResultURL: "https://cdn/x.png", CreatedAt: created}
	if err := NewGenerationRepository(sql).Save(context.Background(), rec); err != nil {
		t.Fatalf("save: %v", err)
	}
	if rec.ID == "" {
		t.Fatal("id not assigned")
	}
	want := created.Add(domain.GenerationRetention)
	if !rec.ExpiresAt.Equal(want) {
		t.Fatalf("expiresAt = %v, want %v", rec.ExpiresAt, want)
	}
	args := sql.calls[0].args
	if len(args) != 11 || args[10] != want {
		t.Fatalf("args = %v", args)
	}
}

func TestGenerationRepositoryListActive(t *testing.T) {
	now := time.Date(2026, 5, 2, 0, 0, 0, 0, time.UTC)
	created := now.Add(-time.Hour)
	sql := &stubSQL{rows: [][]any{
		{"g1", "u1", "image", "https://cdn/o.png", "https://cdn/r.png", "p", "", "qwen", 1, created, created.Add(domain.GenerationRetention)},
		{"g2", "u1", "video", "", "https://cdn/v.mp4", "walk", "", "veo", 5, created, created.Add(domain.GenerationRetention)},
	}}
	items, err := NewGenerationRepository(sql).ListActive(context.Background(), "u1", 10, now)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 2 || items[1].Type != domain.GenerationTypeVideo || items[0].Method != "qwen" {
		t.Fatalf("items = %+v", items)
	}
	if args := sql.calls[0].args; args[1] != now || args[2] != 10 {
		t.Fatalf("args = %v", args)
	}
}

func TestGenerationRepositoryDeleteExpiredCounts(t *testing.T) {
	sql := &stubSQL{tag: "DELETE 3"}
	repo := NewGenerationRepository(sql)
	n, err := repo.DeleteExpired(context.Background(), "u1", time.Now())
	if err != nil || n != 3 {
		t.Fatalf("delete = %d, %v", n, err)
	}
	n, err = repo.DeleteAllExpired(context.Background(), time.Now())
	if err != nil || n != 3 {
		t.Fatalf("delete all = %d, %v", n, err)
	}
	if sql.calls[1].query != sqlinline.QDeleteExpiredGenerations {
		t.Fatalf("unexpected query %q", sql.calls[1].query)
	}
}

func TestMigrateRunsEveryStatement(t *testing.T) {
	sql := &stubSQL{}
	if err := Migrate(context.Background(), sql); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if len(sql.calls) != len(sqlinline.Schema) {
		t.Fatalf("calls = %d, want %d", len(sql.calls), len(sqlinline.Schema))
	}
	for _, c := range sql.calls {
		if !strings.HasPrefix(c.query, "--sql ") {
			t.Fatalf("statement without marker: %q", c.query)
		}
	}
}
