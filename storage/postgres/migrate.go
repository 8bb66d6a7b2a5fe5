// Package pgstore persists wallet accounts and challenge nonces in Postgres via pgx.
package pgstore

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/PaulFidika/walletauth/roles"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schemaSQL string

// Migrate creates the profiles schema, tables and role rows. It is idempotent.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	for _, slug := range roles.All {
		if _, err := pool.Exec(ctx,
			`INSERT INTO profiles.roles (id, slug) VALUES ($1, $2) ON CONFLICT (slug) DO NOTHING`,
			roles.IDFromSlug(slug), slug,
		); err != nil {
			return fmt.Errorf("seed role %q: %w", slug, err)
		}
	}
	return nil
}
