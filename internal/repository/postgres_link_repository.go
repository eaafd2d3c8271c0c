package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/SergeiKhy/shortlink/internal/models"
	"github.com/jackc/pgx/v5"
)

type postgresLinkRepository struct {
	db *PostgresDB
}

func NewPostgresLinkRepository(db *PostgresDB) LinkRepository {
	return &postgresLinkRepository{db: db}
}

func (r *postgresLinkRepository) Create(ctx context.Context, link *models.Link) error {
	// Условная запись: ON CONFLICT DO NOTHING вместо read-then-write
	query := `
		INSERT INTO links (short_code, original_url, owner, created_at, expires_at, clicks)
		VALUES ($1, $2, $3, $4, $5, 0)
		ON CONFLICT (short_code) DO NOTHING
	`

	tag, err := r.db.Pool.Exec(ctx, query,
		link.ShortCode,
		link.OriginalURL,
		link.Owner,
		link.CreatedAt,
		link.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create link: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrCodeExists
	}

	return nil
}

func (r *postgresLinkRepository) GetByShortCode(ctx context.Context, code string) (*models.Link, error) {
	query := `
		SELECT short_code, original_url, owner, created_at, expires_at, clicks
		FROM links
		WHERE short_code = $1
	`

	link := &models.Link{}
	err := r.db.Pool.QueryRow(ctx, query, code).Scan(
		&link.ShortCode,
		&link.OriginalURL,
		&link.Owner,
		&link.CreatedAt,
		&link.ExpiresAt,
		&link.Clicks,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLinkNotFound
		}
		return nil, fmt.Errorf("failed to get link: %w", err)
	}

	return link, nil
}

func (r *postgresLinkRepository) IncrementClicks(ctx context.Context, code string, by int64) (int64, error) {
	// Один атомарный UPDATE, конкурентные инкременты не теряются
	query := `
		UPDATE links SET clicks = clicks + $2
		WHERE short_code = $1
		RETURNING clicks
	`

	var clicks int64
	err := r.db.Pool.QueryRow(ctx, query, code, by).Scan(&clicks)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrLinkNotFound
		}
		return 0, fmt.Errorf("failed to increment clicks: %w", err)
	}

	return clicks, nil
}

func (r *postgresLinkRepository) ScanExpired(ctx context.Context, before time.Time, limit int) ([]string, error) {
	query := `
		SELECT short_code FROM links
		WHERE expires_at <= $1
		ORDER BY expires_at
		LIMIT $2
	`

	rows, err := r.db.Pool.Query(ctx, query, before, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to scan expired links: %w", err)
	}
	defer rows.Close()

	var codes []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, fmt.Errorf("failed to scan expired code: %w", err)
		}
		codes = append(codes, code)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating expired links: %w", err)
	}

	return codes, nil
}

func (r *postgresLinkRepository) Delete(ctx context.Context, code string) (bool, error) {
	query := `DELETE FROM links WHERE short_code = $1`

	tag, err := r.db.Pool.Exec(ctx, query, code)
	if err != nil {
		return false, fmt.Errorf("failed to delete link: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

func (r *postgresLinkRepository) NextSequence(ctx context.Context) (int64, error) {
	query := `UPDATE code_sequence SET value = value + 1 WHERE id = 1 RETURNING value`

	var next int64
	if err := r.db.Pool.QueryRow(ctx, query).Scan(&next); err != nil {
		return 0, fmt.Errorf("failed to increment sequence: %w", err)
	}

	return next, nil
}
