package core

import (
	"context"
	"time"

	"github.com/PaulFidika/walletauth/walletsig"
)

type EphemeralMode string

const (
	EphemeralMemory   EphemeralMode = "memory"
	EphemeralRedis    EphemeralMode = "redis"
	EphemeralPostgres EphemeralMode = "postgres"
)

// NonceKeyPrefix namespaces wallet nonces inside a shared key-value store.
const NonceKeyPrefix = "auth:nonce:"

// EphemeralStore is a minimal key-value interface used for short-lived auth state.
// Implementations should honor TTL on Set and treat missing keys as (found=false, err=nil).
type EphemeralStore interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}

// WithEphemeralStore backs the nonce store with a TTL key-value store.
func (s *Service) WithEphemeralStore(store EphemeralStore, mode EphemeralMode) *Service {
	if mode == "" {
		mode = EphemeralMemory
	}
	s.ephemeralMode = mode
	if store != nil {
		s.nonces = NewKVNonceStore(store)
	}
	return s
}

// EphemeralMode reports which kind of nonce store is configured. Only
// EphemeralMemory is process-local.
func (s *Service) EphemeralMode() EphemeralMode {
	if s == nil || s.ephemeralMode == "" {
		return EphemeralMemory
	}
	return s.ephemeralMode
}

// NonceKey returns the store key holding the live nonce for a wallet.
func NonceKey(walletAddress string) string { return NonceKeyPrefix + walletAddress }

// KVNonceStore adapts an EphemeralStore to walletsig.NonceStore.
type KVNonceStore struct {
	kv EphemeralStore
}

var _ walletsig.NonceStore = (*KVNonceStore)(nil)

func NewKVNonceStore(kv EphemeralStore) *KVNonceStore { return &KVNonceStore{kv: kv} }

func (n *KVNonceStore) Put(ctx context.Context, address, nonce string, ttl time.Duration) error {
	return n.kv.Set(ctx, NonceKey(address), []byte(nonce), ttl)
}

func (n *KVNonceStore) Get(ctx context.Context, address string) (string, bool, error) {
	b, ok, err := n.kv.Get(ctx, NonceKey(address))
	if err != nil || !ok {
		return "", false, err
	}
	return string(b), true, nil
}

func (n *KVNonceStore) Delete(ctx context.Context, address string) error {
	return n.kv.Del(ctx, NonceKey(address))
}
