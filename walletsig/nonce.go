package walletsig

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// NonceSize is the number of random bytes in a challenge nonce (hex encoded on the wire).
const NonceSize = 32

// DefaultNonceTTL is how long an issued challenge stays redeemable.
const DefaultNonceTTL = 300 * time.Second

// NewNonce returns NonceSize bytes from crypto/rand, hex encoded.
func NewNonce() (string, error) {
	b := make([]byte, NonceSize)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// NonceStore holds at most one live nonce per wallet address.
//
// Put overwrites any previous nonce for the address. Get never returns an
// expired value; a missing or expired entry is ("", false, nil). Delete is
// idempotent. Implementations must expire entries on their own, either natively
// or with a sweep they own.
type NonceStore interface {
	Put(ctx context.Context, address, nonce string, ttl time.Duration) error
	Get(ctx context.Context, address string) (string, bool, error)
	Delete(ctx context.Context, address string) error
}
