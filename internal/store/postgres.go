package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// Postgres stores each collection snapshot as one JSONB row of the
// collections table.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres creates a Postgres store from a DSN. Caller must call Close when done.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

// Close closes the connection pool.
func (p *Postgres) Close() {
	p.pool.Close()
}

// Read implements Store.Read.
func (p *Postgres) Read(ctx context.Context, c Collection) (json.RawMessage, error) {
	if err := checkCollection(c); err != nil {
		return nil, err
	}
	query, args, err := readQuery(c)
	if err != nil {
		return nil, fmt.Errorf("build read %s: %w", c, err)
	}

	var raw []byte
	if err := p.pool.QueryRow(ctx, query, args...).Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMissing
		}
		return nil, fmt.Errorf("read %s: %w", c, err)
	}
	if !isArray(raw) {
		return nil, fmt.Errorf("%w: %s", ErrInvalid, c)
	}
	return raw, nil
}

// Write implements Store.Write as a single upsert statement.
func (p *Postgres) Write(ctx context.Context, c Collection, snapshot json.RawMessage) error {
	if err := checkCollection(c); err != nil {
		return err
	}
	if !isArray(snapshot) {
		return fmt.Errorf("write %s: %w", c, ErrInvalid)
	}
	query, args, err := writeQuery(c, snapshot)
	if err != nil {
		return fmt.Errorf("build write %s: %w", c, err)
	}
	if _, err := p.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("write %s: %w", c, err)
	}
	return nil
}

func readQuery(c Collection) (string, []any, error) {
	return psql.Select("snapshot").
		From("collections").
		Where(sq.Eq{"name": string(c)}).
		ToSql()
}

func writeQuery(c Collection, snapshot json.RawMessage) (string, []any, error) {
	return psql.Insert("collections").
		Columns("name", "snapshot", "updated_at").
		Values(string(c), string(snapshot), sq.Expr("NOW()")).
		Suffix("ON CONFLICT (name) DO UPDATE SET snapshot = EXCLUDED.snapshot, updated_at = EXCLUDED.updated_at").
		ToSql()
}

// Ensure implements Store.Ensure.
func (p *Postgres) Ensure(ctx context.Context, c Collection, def json.RawMessage) (bool, error) {
	return ensureWith(ctx, p, c, def)
}
