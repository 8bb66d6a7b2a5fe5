package core

import (
	"context"
	"testing"
	"time"

	"github.com/PaulFidika/walletauth/walletsig"
	"github.com/stretchr/testify/require"
)

func TestIssueChallenge(t *testing.T) {
	env := newTestEnv(t)
	w := newTestWallet(t)

	ch, err := env.svc.IssueChallenge(context.Background(), w.address)
	require.NoError(t, err)
	require.Len(t, ch.Nonce, walletsig.NonceSize*2)
	require.Equal(t, env.clock.Now().UnixMilli(), ch.Timestamp)
	require.Equal(t, walletsig.BuildMessage(w.address, ch.Nonce, ch.Timestamp), ch.Message)
	require.Contains(t, ch.Message, "will not trigger a blockchain transaction")

	stored, ok, err := env.svc.nonces.Get(context.Background(), w.address)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, ch.Nonce, stored)

	require.Equal(t, 1, env.metrics.issued[string(walletsig.SchemeSolana)])
	require.Equal(t, []AuthEventType{EventChallengeIssued}, env.events.types())
}

func TestIssueChallenge_RequiresAddress(t *testing.T) {
	env := newTestEnv(t)
	for _, addr := range []string{"", "   "} {
		_, err := env.svc.IssueChallenge(context.Background(), addr)
		require.ErrorIs(t, err, ErrInvalidRequest)
	}
}

func TestIssueChallenge_OverwritesPrevious(t *testing.T) {
	env := newTestEnv(t)
	w := newTestWallet(t)
	ctx := context.Background()

	first, err := env.svc.IssueChallenge(ctx, w.address)
	require.NoError(t, err)
	second, err := env.svc.IssueChallenge(ctx, w.address)
	require.NoError(t, err)
	require.NotEqual(t, first.Nonce, second.Nonce)

	_, err = env.svc.AuthenticateWallet(ctx, w.answer(first))
	require.ErrorIs(t, err, ErrInvalidChallenge)
}

func TestIssueChallenge_StoreUnavailable(t *testing.T) {
	svc := NewService(Options{}).WithEphemeralStore(brokenStore{}, EphemeralRedis)
	_, err := svc.IssueChallenge(context.Background(), "wallet")
	require.ErrorIs(t, err, ErrStoreUnavailable)

	_, err = NewService(Options{}).IssueChallenge(context.Background(), "wallet")
	require.ErrorIs(t, err, ErrStoreUnavailable)
}

func TestNewFromConfig(t *testing.T) {
	svc, err := NewFromConfig(Config{})
	require.NoError(t, err)
	require.Equal(t, walletsig.DefaultNonceTTL, svc.Options().NonceTTL)

	svc, err = NewFromConfig(Config{NonceTTL: time.Minute})
	require.NoError(t, err)
	require.Equal(t, time.Minute, svc.Options().NonceTTL)

	_, err = NewFromConfig(Config{NonceTTL: time.Millisecond})
	require.Error(t, err)
}

func TestEphemeralMode(t *testing.T) {
	svc := NewService(Options{})
	require.Equal(t, EphemeralMemory, svc.EphemeralMode())
	svc.WithEphemeralStore(brokenStore{}, EphemeralRedis)
	require.Equal(t, EphemeralRedis, svc.EphemeralMode())
}

type mapNonces map[string]string

func (m mapNonces) Put(_ context.Context, address, nonce string, _ time.Duration) error {
	m[address] = nonce
	return nil
}

func (m mapNonces) Get(_ context.Context, address string) (string, bool, error) {
	n, ok := m[address]
	return n, ok, nil
}

func (m mapNonces) Delete(_ context.Context, address string) error {
	delete(m, address)
	return nil
}

func TestWithNonceStore(t *testing.T) {
	nonces := mapNonces{}
	svc := NewService(Options{}).WithNonceStore(nonces, EphemeralPostgres)
	require.Equal(t, EphemeralPostgres, svc.EphemeralMode())

	ch, err := svc.IssueChallenge(context.Background(), "wallet-1")
	require.NoError(t, err)
	require.Equal(t, ch.Nonce, nonces["wallet-1"])
}
