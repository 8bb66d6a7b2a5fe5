package pgstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/PaulFidika/walletauth/walletsig"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// NonceStore keeps one row per wallet in profiles.wallet_nonces. Expiry is
// evaluated against the database clock; rows outlive their TTL until SweepExpired runs.
type NonceStore struct {
	db *pgxpool.Pool
}

var _ walletsig.NonceStore = (*NonceStore)(nil)

func NewNonceStore(db *pgxpool.Pool) *NonceStore {
	return &NonceStore{db: db}
}

func (s *NonceStore) Put(ctx context.Context, address, nonce string, ttl time.Duration) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO profiles.wallet_nonces (wallet_address, nonce, expires_at)
		VALUES ($1, $2, now() + make_interval(secs => $3))
		ON CONFLICT (wallet_address) DO UPDATE
		SET nonce = EXCLUDED.nonce, expires_at = EXCLUDED.expires_at`,
		address, nonce, ttl.Seconds(),
	)
	if err != nil {
		return fmt.Errorf("put nonce: %w", err)
	}
	return nil
}

func (s *NonceStore) Get(ctx context.Context, address string) (string, bool, error) {
	var nonce string
	err := s.db.QueryRow(ctx,
		`SELECT nonce FROM profiles.wallet_nonces WHERE wallet_address = $1 AND expires_at > now()`,
		address,
	).Scan(&nonce)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get nonce: %w", err)
	}
	return nonce, true, nil
}

func (s *NonceStore) Delete(ctx context.Context, address string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM profiles.wallet_nonces WHERE wallet_address = $1`, address); err != nil {
		return fmt.Errorf("delete nonce: %w", err)
	}
	return nil
}

// SweepExpired deletes up to limit expired rows and returns how many were removed.
// Expiry is re-checked on delete so a row refreshed by a concurrent Put survives.
func (s *NonceStore) SweepExpired(ctx context.Context, limit int) (int64, error) {
	if limit <= 0 {
		limit = 1000
	}
	tag, err := s.db.Exec(ctx, `
		DELETE FROM profiles.wallet_nonces
		WHERE wallet_address IN (
			SELECT wallet_address FROM profiles.wallet_nonces
			WHERE expires_at <= now()
			ORDER BY expires_at
			LIMIT $1
		)
		AND expires_at <= now()`, limit)
	if err != nil {
		return 0, fmt.Errorf("sweep nonces: %w", err)
	}
	return tag.RowsAffected(), nil
}
