package source

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// feedbackQuery pages through the feedback table in timestamp order.
// The id tiebreak keeps pagination stable for equal timestamps.
const feedbackQuery = `
	SELECT id, body, nps, username, submitted_at
	FROM feedback
	WHERE submitted_at >= $1
	ORDER BY submitted_at, id
	LIMIT $2 OFFSET $3
`

// Postgres reads verbatims from a feedback table.
type Postgres struct {
	pool     *pgxpool.Pool
	pageSize int
}

// NewPostgres creates a Postgres source with a connection pool.
func NewPostgres(ctx context.Context, databaseURL string, pageSize int) (*Postgres, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	// Connection pool settings
	config.MaxConns = 4
	config.MinConns = 1

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Postgres{pool: pool, pageSize: pageSize}, nil
}

// NewerThan returns one page of feedback rows submitted at or after since.
func (p *Postgres) NewerThan(ctx context.Context, since time.Time, pageIndex int) ([]RawVerbatim, error) {
	rows, err := p.pool.Query(ctx, feedbackQuery, since, p.pageSize, pageIndex*p.pageSize)
	if err != nil {
		return nil, fmt.Errorf("query feedback: %w", err)
	}
	defer rows.Close()

	var page []RawVerbatim
	for rows.Next() {
		var raw RawVerbatim
		if err := rows.Scan(&raw.ID, &raw.Text, &raw.NPS, &raw.Username, &raw.Timestamp); err != nil {
			return nil, fmt.Errorf("scan feedback row: %w", err)
		}
		page = append(page, raw)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate feedback rows: %w", err)
	}
	return page, nil
}

// Ping checks database connectivity.
func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// Close closes the connection pool.
func (p *Postgres) Close() {
	p.pool.Close()
}
