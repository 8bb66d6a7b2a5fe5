package core

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/PaulFidika/walletauth/walletsig"
	"github.com/stretchr/testify/require"
)

func TestVerifyWalletSignature_ConsumesNonce(t *testing.T) {
	env := newTestEnv(t)
	w := newTestWallet(t)
	ctx := context.Background()

	ch, err := env.svc.IssueChallenge(ctx, w.address)
	require.NoError(t, err)

	res, err := env.svc.VerifyWalletSignature(ctx, w.answer(ch))
	require.NoError(t, err)
	require.True(t, res.Verified)
	require.Equal(t, w.address, res.WalletAddress)
	require.Equal(t, walletsig.SchemeSolana, res.Scheme)
	require.False(t, env.nonceLive(t, w.address))

	// Replay of the identical request.
	_, err = env.svc.VerifyWalletSignature(ctx, w.answer(ch))
	require.ErrorIs(t, err, ErrChallengeExpired)
}

func TestVerifyWalletSignature_MissingFields(t *testing.T) {
	env := newTestEnv(t)
	w := newTestWallet(t)
	ch, err := env.svc.IssueChallenge(context.Background(), w.address)
	require.NoError(t, err)
	good := w.answer(ch)

	mutations := map[string]func(r *VerifyRequest){
		"address":   func(r *VerifyRequest) { r.WalletAddress = "" },
		"signature": func(r *VerifyRequest) { r.Signature = walletsig.Signature{} },
		"nonce":     func(r *VerifyRequest) { r.Nonce = "" },
		"timestamp": func(r *VerifyRequest) { r.Timestamp = 0 },
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			req := good
			mutate(&req)
			_, err := env.svc.VerifyWalletSignature(context.Background(), req)
			require.ErrorIs(t, err, ErrInvalidRequest)
		})
	}
	// Request validation never touches the store.
	require.True(t, env.nonceLive(t, w.address))
}

func TestVerifyWalletSignature_MutatedFieldsFail(t *testing.T) {
	ctx := context.Background()

	t.Run("timestamp", func(t *testing.T) {
		env := newTestEnv(t)
		w := newTestWallet(t)
		ch, err := env.svc.IssueChallenge(ctx, w.address)
		require.NoError(t, err)
		req := w.answer(ch)
		req.Timestamp++
		_, err = env.svc.VerifyWalletSignature(ctx, req)
		require.ErrorIs(t, err, ErrInvalidSignature)
	})

	t.Run("nonce", func(t *testing.T) {
		env := newTestEnv(t)
		w := newTestWallet(t)
		ch, err := env.svc.IssueChallenge(ctx, w.address)
		require.NoError(t, err)
		req := w.answer(ch)
		req.Nonce = ch.Nonce[:len(ch.Nonce)-1] + "0"
		if req.Nonce == ch.Nonce {
			req.Nonce = ch.Nonce[:len(ch.Nonce)-1] + "1"
		}
		_, err = env.svc.VerifyWalletSignature(ctx, req)
		require.ErrorIs(t, err, ErrInvalidChallenge)
		require.False(t, env.nonceLive(t, w.address))
	})
}

func TestVerifyWalletSignature_InvalidSignatureBurnsNonce(t *testing.T) {
	env := newTestEnv(t)
	w := newTestWallet(t)
	ctx := context.Background()

	ch, err := env.svc.IssueChallenge(ctx, w.address)
	require.NoError(t, err)

	// Signed over a message embedding a different nonce.
	tampered := walletsig.BuildMessage(w.address, "0000", ch.Timestamp)
	req := w.answer(ch)
	req.Signature = w.sign(tampered)
	_, err = env.svc.VerifyWalletSignature(ctx, req)
	require.ErrorIs(t, err, ErrInvalidSignature)
	require.False(t, env.nonceLive(t, w.address))

	_, err = env.svc.VerifyWalletSignature(ctx, w.answer(ch))
	require.ErrorIs(t, err, ErrChallengeExpired)

	require.Equal(t, 1, env.metrics.outcomes[OutcomeInvalidSignature])
	require.Equal(t, 1, env.metrics.outcomes[OutcomeChallengeExpired])
}

func TestVerifyWalletSignature_UndecodableSignatureBurnsNonce(t *testing.T) {
	env := newTestEnv(t)
	w := newTestWallet(t)
	ctx := context.Background()

	ch, err := env.svc.IssueChallenge(ctx, w.address)
	require.NoError(t, err)
	req := w.answer(ch)
	require.NoError(t, json.Unmarshal([]byte(`[256,1,2]`), &req.Signature))

	_, err = env.svc.VerifyWalletSignature(ctx, req)
	require.ErrorIs(t, err, ErrInvalidSignature)
	require.False(t, env.nonceLive(t, w.address))

	_, err = env.svc.VerifyWalletSignature(ctx, w.answer(ch))
	require.ErrorIs(t, err, ErrChallengeExpired)
}

func TestVerifyWalletSignature_WrongKey(t *testing.T) {
	env := newTestEnv(t)
	w := newTestWallet(t)
	other := newTestWallet(t)
	ctx := context.Background()

	ch, err := env.svc.IssueChallenge(ctx, w.address)
	require.NoError(t, err)
	req := w.answer(ch)
	req.Signature = other.sign(ch.Message)
	_, err = env.svc.VerifyWalletSignature(ctx, req)
	require.ErrorIs(t, err, ErrInvalidSignature)
}

func TestVerifyWalletSignature_UndecodableAddress(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	ch, err := env.svc.IssueChallenge(ctx, "not-a-wallet")
	require.NoError(t, err)
	_, err = env.svc.VerifyWalletSignature(ctx, VerifyRequest{
		WalletAddress: "not-a-wallet",
		Signature:     walletsig.SignatureFromBytes(make([]byte, 64)),
		Nonce:         ch.Nonce,
		Timestamp:     ch.Timestamp,
	})
	require.ErrorIs(t, err, ErrInvalidSignature)
	require.False(t, env.nonceLive(t, "not-a-wallet"))
}

func TestVerifyWalletSignature_Expired(t *testing.T) {
	env := newTestEnv(t)
	w := newTestWallet(t)
	ctx := context.Background()

	ch, err := env.svc.IssueChallenge(ctx, w.address)
	require.NoError(t, err)
	env.clock.Advance(301 * time.Second)

	_, err = env.svc.VerifyWalletSignature(ctx, w.answer(ch))
	require.ErrorIs(t, err, ErrChallengeExpired)
}

func TestVerifyWalletSignature_StoreUnavailable(t *testing.T) {
	svc := NewService(Options{}).WithEphemeralStore(brokenStore{}, EphemeralRedis)
	w := newTestWallet(t)
	_, err := svc.VerifyWalletSignature(context.Background(), VerifyRequest{
		WalletAddress: w.address,
		Signature:     walletsig.SignatureFromBytes(make([]byte, 64)),
		Nonce:         "abc",
		Timestamp:     1,
	})
	require.ErrorIs(t, err, ErrStoreUnavailable)
}
