package pgstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/PaulFidika/walletauth/core"
	"github.com/PaulFidika/walletauth/roles"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	uniqueViolation         = "23505"
	constraintWalletAddress = "users_wallet_address_key"
	constraintUsername      = "users_username_key"
	accountColumns          = `id, wallet_address, COALESCE(name, ''), username, role, created_at, updated_at`
)

// Accounts implements core.AccountRepository on profiles.users.
type Accounts struct {
	db *pgxpool.Pool
}

var _ core.AccountRepository = (*Accounts)(nil)

func NewAccounts(db *pgxpool.Pool) *Accounts {
	return &Accounts{db: db}
}

func (r *Accounts) GetByWallet(ctx context.Context, walletAddress string) (*core.Account, error) {
	return r.getOne(ctx, `SELECT `+accountColumns+` FROM profiles.users WHERE wallet_address = $1`, walletAddress)
}

func (r *Accounts) GetByUsername(ctx context.Context, username string) (*core.Account, error) {
	return r.getOne(ctx, `SELECT `+accountColumns+` FROM profiles.users WHERE username = $1`, username)
}

func (r *Accounts) Create(ctx context.Context, p core.CreateAccountParams) (*core.Account, error) {
	role := p.Role
	if role == "" {
		role = roles.Default
	}
	if !roles.Valid(role) {
		return nil, fmt.Errorf("%w: unknown role %q", core.ErrInvalidRequest, role)
	}
	var name *string
	if p.Name != "" {
		name = &p.Name
	}
	now := time.Now().UTC()
	row := r.db.QueryRow(ctx, `
		INSERT INTO profiles.users (id, wallet_address, name, username, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		RETURNING `+accountColumns,
		uuid.New(), p.WalletAddress, name, p.Username, role, now,
	)
	a, err := scanAccount(row)
	if err != nil {
		return nil, mapCreateError(err)
	}
	return a, nil
}

func (r *Accounts) getOne(ctx context.Context, query string, arg string) (*core.Account, error) {
	a, err := scanAccount(r.db.QueryRow(ctx, query, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

func scanAccount(row pgx.Row) (*core.Account, error) {
	var (
		id uuid.UUID
		a  core.Account
	)
	if err := row.Scan(&id, &a.WalletAddress, &a.Name, &a.Username, &a.Role, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	a.ID = id.String()
	a.CreatedAt = a.CreatedAt.UTC()
	a.UpdatedAt = a.UpdatedAt.UTC()
	return &a, nil
}

// mapCreateError translates unique violations into the repository contract errors.
func mapCreateError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		switch pgErr.ConstraintName {
		case constraintWalletAddress:
			return core.ErrAccountExists
		case constraintUsername:
			return core.ErrUsernameTaken
		}
	}
	return fmt.Errorf("insert account: %w", err)
}
