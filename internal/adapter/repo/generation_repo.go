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

// GenerationRepositoryPG implements domain.GenerationRepository on PostgreSQL.
type GenerationRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewGenerationRepository creates a new GenerationRepositoryPG.
func NewGenerationRepository(sql infra.SQLExecutor) *GenerationRepositoryPG {
	return &GenerationRepositoryPG{sql: sql}
}

// Save inserts a generation record. The expiry is derived from CreatedAt.
func (r *GenerationRepositoryPG) Save(ctx context.Context, rec *domain.GenerationRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	rec.Stamp(time.Now())
	_, err := r.sql.Exec(ctx, sqlinline.QInsertGeneration,
		rec.ID,
		rec.UserID,
		string(rec.Type),
		rec.OriginalURL,
		rec.ResultURL,
		rec.Prompt,
		rec.ClothingPrompt,
		rec.Method,
		rec.Credits,
		rec.CreatedAt,
		rec.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("insert generation: %w", err)
	}
	return nil
}

// ListActive returns the user's unexpired records, newest first.
func (r *GenerationRepositoryPG) ListActive(ctx context.Context, userID string, limit int, now time.Time) ([]domain.GenerationRecord, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QListActiveGenerations, userID, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.GenerationRecord
	for rows.Next() {
		var rec domain.GenerationRecord
		var typ string
		if err := rows.Scan(
			&rec.ID,
			&rec.UserID,
			&typ,
			&rec.OriginalURL,
			&rec.ResultURL,
			&rec.Prompt,
			&rec.ClothingPrompt,
			&rec.Method,
			&rec.Credits,
			&rec.CreatedAt,
			&rec.ExpiresAt,
		); err != nil {
			return nil, err
		}
		rec.Type = domain.GenerationType(typ)
		items = append(items, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// DeleteExpired removes the user's records whose expiry is at or before now.
func (r *GenerationRepositoryPG) DeleteExpired(ctx context.Context, userID string, now time.Time) (int64, error) {
	tag, err := r.sql.Exec(ctx, sqlinline.QDeleteExpiredGenerationsForUser, userID, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired generations: %w", err)
	}
	return tag.RowsAffected(), nil
}

// DeleteAllExpired removes every expired record; the worker's sweep calls it.
func (r *GenerationRepositoryPG) DeleteAllExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.sql.Exec(ctx, sqlinline.QDeleteExpiredGenerations, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired generations: %w", err)
	}
	return tag.RowsAffected(), nil
}

var _ domain.GenerationRepository = (*GenerationRepositoryPG)(nil)
