package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresProvider serves listings from a local PostgreSQL index. It exists
// for self-hosted deployments that mirror the listing feed into their own
// database instead of a managed search service.
type PostgresProvider struct {
	pool *pgxpool.Pool
}

func NewPostgresProvider(ctx context.Context, databaseURL string) (*PostgresProvider, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresProvider{pool: pool}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector;`,
		`CREATE TABLE IF NOT EXISTS listings (
			id TEXT PRIMARY KEY,
			reference_number TEXT NOT NULL UNIQUE,
			title TEXT NOT NULL,
			property_type TEXT NOT NULL,
			location TEXT NOT NULL,
			price NUMERIC NOT NULL,
			bedrooms INT NOT NULL DEFAULT 0,
			bathrooms INT NOT NULL DEFAULT 0,
			url TEXT NOT NULL DEFAULT '',
			image_url TEXT NOT NULL DEFAULT '',
			content_vector vector(3072)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_listings_location ON listings (location);`,
		`CREATE INDEX IF NOT EXISTS idx_listings_price ON listings (price);`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

func (p *PostgresProvider) Search(ctx context.Context, q Query) (Result, error) {
	top := q.Top
	if top <= 0 {
		top = 10
	}

	var (
		conds []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if len(q.SearchFields) == 1 && q.SearchFields[0] == "reference_number" {
		conds = append(conds, fmt.Sprintf("reference_number ILIKE %s", arg(strings.TrimSpace(q.Text))))
	} else if text := strings.TrimSpace(q.Text); text != "" {
		var termConds []string
		for _, term := range strings.Fields(text) {
			ph := arg("%" + term + "%")
			termConds = append(termConds, fmt.Sprintf(
				"(title ILIKE %[1]s OR location ILIKE %[1]s OR property_type ILIKE %[1]s OR reference_number ILIKE %[1]s)", ph))
		}
		conds = append(conds, "("+strings.Join(termConds, " OR ")+")")
	}

	f := q.Filters
	if f.PropertyType != "" {
		conds = append(conds, fmt.Sprintf("property_type = %s", arg(f.PropertyType)))
	}
	if f.Location != "" {
		conds = append(conds, fmt.Sprintf("location ILIKE %s", arg("%"+f.Location+"%")))
	}
	if f.MinPrice != nil {
		conds = append(conds, fmt.Sprintf("price >= %s", arg(*f.MinPrice)))
	}
	if f.MaxPrice != nil {
		conds = append(conds, fmt.Sprintf("price <= %s", arg(*f.MaxPrice)))
	}
	if f.Bedrooms != nil {
		conds = append(conds, fmt.Sprintf("bedrooms = %s", arg(*f.Bedrooms)))
	}

	order := "reference_number"
	if len(q.Vector) > 0 {
		order = fmt.Sprintf("content_vector <=> %s::vector", arg(vectorLiteral(q.Vector)))
	}

	sql := `SELECT id, reference_number, title, property_type, location, price, bedrooms, bathrooms, url, image_url, COUNT(*) OVER() AS total
		FROM listings`
	if len(conds) > 0 {
		sql += " WHERE " + strings.Join(conds, " AND ")
	}
	sql += " ORDER BY " + order
	sql += fmt.Sprintf(" LIMIT %s", arg(top))

	rows, err := p.pool.Query(ctx, sql, args...)
	if err != nil {
		return Result{}, fmt.Errorf("query listings: %w", err)
	}
	defer rows.Close()

	var out Result
	for rows.Next() {
		var l Listing
		if err := rows.Scan(&l.ID, &l.ReferenceNumber, &l.Title, &l.PropertyType, &l.Location,
			&l.Price, &l.Bedrooms, &l.Bathrooms, &l.URL, &l.ImageURL, &out.Total); err != nil {
			return Result{}, fmt.Errorf("scan listing row: %w", err)
		}
		out.Listings = append(out.Listings, l)
	}
	if err := rows.Err(); err != nil {
		return Result{}, fmt.Errorf("iterate listing rows: %w", err)
	}
	return out, nil
}

func (p *PostgresProvider) Close() error {
	p.pool.Close()
	return nil
}

// vectorLiteral renders a pgvector input literal, e.g. "[0.1,0.2]".
func vectorLiteral(v []float32) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, f := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%g", f)
	}
	b.WriteByte(']')
	return b.String()
}
