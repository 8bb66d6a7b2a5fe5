package core

import "errors"

var (
	// ErrInvalidRequest means a required field was missing.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrChallengeExpired means no live nonce exists for the wallet.
	ErrChallengeExpired = errors.New("challenge expired or not found")
	// ErrInvalidChallenge means the submitted nonce differs from the stored one.
	ErrInvalidChallenge = errors.New("invalid challenge")
	// ErrInvalidSignature covers undecodable addresses/signatures and cryptographic mismatch.
	ErrInvalidSignature = errors.New("invalid signature")

	ErrSignupRequiresUsername = errors.New("username required for new account")
	ErrUsernameInvalid        = errors.New("invalid username")
	ErrUsernameTaken          = errors.New("username already taken")

	// ErrAccountExists is returned by AccountRepository.Create when the wallet is already registered.
	ErrAccountExists = errors.New("account already exists for wallet")

	ErrStoreUnavailable = errors.New("nonce store unavailable")
	ErrPersistence      = errors.New("account persistence failure")
)

// UsernameError describes why a username was rejected. It matches ErrUsernameInvalid.
type UsernameError struct {
	Reason string
}

func (e *UsernameError) Error() string { return e.Reason }

func (e *UsernameError) Is(target error) bool { return target == ErrUsernameInvalid }

// IsUsernameNegotiation reports whether err is a recoverable signup outcome: the caller
// may resubmit the same signature with a (different) username.
func IsUsernameNegotiation(err error) bool {
	return errors.Is(err, ErrSignupRequiresUsername) ||
		errors.Is(err, ErrUsernameInvalid) ||
		errors.Is(err, ErrUsernameTaken)
}

// IsAuthFailure reports whether err is a hard authentication failure (401).
func IsAuthFailure(err error) bool {
	return errors.Is(err, ErrChallengeExpired) ||
		errors.Is(err, ErrInvalidChallenge) ||
		errors.Is(err, ErrInvalidSignature)
}
