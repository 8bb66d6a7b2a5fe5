package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/PaulFidika/walletauth/roles"
)

type AuthAction string

const (
	ActionLogin  AuthAction = "login"
	ActionSignup AuthAction = "signup"
)

// AuthOutcome is a terminal, successful result of wallet authentication.
type AuthOutcome struct {
	Action  AuthAction
	Account *Account
}

// ResolveAccount logs a verified wallet into its account or, when none exists,
// creates one with the supplied username. A missing, invalid or taken username is
// reported as ErrSignupRequiresUsername, ErrUsernameInvalid or ErrUsernameTaken.
func (s *Service) ResolveAccount(ctx context.Context, res VerificationResult, walletName, username string) (AuthOutcome, error) {
	if !res.Verified || res.WalletAddress == "" {
		return AuthOutcome{}, ErrInvalidSignature
	}
	if s.accounts == nil {
		return AuthOutcome{}, fmt.Errorf("%w: account repository not configured", ErrPersistence)
	}

	acct, err := s.accounts.GetByWallet(ctx, res.WalletAddress)
	if err != nil {
		return AuthOutcome{}, fmt.Errorf("%w: lookup by wallet: %v", ErrPersistence, err)
	}
	if acct != nil {
		return AuthOutcome{Action: ActionLogin, Account: acct}, nil
	}

	if strings.TrimSpace(username) == "" {
		return AuthOutcome{}, ErrSignupRequiresUsername
	}
	uname, err := ValidateUsername(username)
	if err != nil {
		return AuthOutcome{}, err
	}
	taken, err := s.accounts.GetByUsername(ctx, uname)
	if err != nil {
		return AuthOutcome{}, fmt.Errorf("%w: lookup by username: %v", ErrPersistence, err)
	}
	if taken != nil {
		return AuthOutcome{}, ErrUsernameTaken
	}

	created, err := s.accounts.Create(ctx, CreateAccountParams{
		WalletAddress: res.WalletAddress,
		Name:          strings.TrimSpace(walletName),
		Username:      uname,
		Role:          roles.Default,
	})
	switch {
	case err == nil:
		return AuthOutcome{Action: ActionSignup, Account: created}, nil
	case errors.Is(err, ErrUsernameTaken):
		return AuthOutcome{}, ErrUsernameTaken
	case errors.Is(err, ErrAccountExists):
		// Lost a race with a concurrent signup for the same wallet.
		acct, lerr := s.accounts.GetByWallet(ctx, res.WalletAddress)
		if lerr != nil || acct == nil {
			return AuthOutcome{}, fmt.Errorf("%w: account vanished after conflict", ErrPersistence)
		}
		return AuthOutcome{Action: ActionLogin, Account: acct}, nil
	default:
		return AuthOutcome{}, fmt.Errorf("%w: create account: %v", ErrPersistence, err)
	}
}
