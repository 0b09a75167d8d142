package loader

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/Adithya-Monish-Kumar-K/minisearch/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/minisearch/pkg/errors"
)

// DB is the part of *postgres.Client the loader needs.
type DB interface {
	ReadOnly(ctx context.Context, fn func(tx *sql.Tx) error) error
}

// Querier runs the document query. *sql.Tx satisfies it.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Postgres loads documents from a table inside one read-only transaction.
// The query must select (id, title, body) ordered by id.
type Postgres struct {
	db     DB
	query  string
	logger *slog.Logger
}

func NewPostgres(db DB, query string) *Postgres {
	return &Postgres{
		db:     db,
		query:  query,
		logger: slog.Default().With("component", "loader", "source", "postgres"),
	}
}

func (p *Postgres) Name() string {
	return "postgres"
}

// Ping checks the database when the underlying DB supports it.
func (p *Postgres) Ping(ctx context.Context) error {
	if pinger, ok := p.db.(interface{ Ping(context.Context) error }); ok {
		return pinger.Ping(ctx)
	}
	return nil
}

func (p *Postgres) Load(ctx context.Context, emit func(index.Document) error) error {
	began := false
	err := p.db.ReadOnly(ctx, func(tx *sql.Tx) error {
		began = true
		return p.scan(ctx, tx, emit)
	})
	if err != nil && !began {
		return apperrors.IndexUnavailablef("opening document snapshot: %v", err)
	}
	return err
}

func (p *Postgres) scan(ctx context.Context, q Querier, emit func(index.Document) error) error {
	rows, err := q.QueryContext(ctx, p.query)
	if err != nil {
		return apperrors.IndexUnavailablef("querying documents: %v", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id    int64
			title sql.NullString
			body  sql.NullString
		)
		if err := rows.Scan(&id, &title, &body); err != nil {
			return fmt.Errorf("scanning document row: %w", err)
		}
		if !utf8.ValidString(title.String) || !utf8.ValidString(body.String) {
			p.logger.Warn("skipping document", "id", id, "error", "invalid UTF-8")
			continue
		}
		doc := index.Document{
			Filename: fmt.Sprintf("%d", id),
			Path:     fmt.Sprintf("postgres:documents/%d", id),
			Title:    title.String,
			Body:     body.String,
			Size:     int64(len(body.String)),
		}
		if err := emit(doc); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating document rows: %w", err)
	}
	return nil
}
