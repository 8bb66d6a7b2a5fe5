package core

import (
	"context"
	"testing"

	"github.com/PaulFidika/walletauth/roles"
	"github.com/PaulFidika/walletauth/walletsig"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

func TestAuthenticateWallet_SignupThenLogin(t *testing.T) {
	env := newTestEnv(t)
	w := newTestWallet(t)
	ctx := context.Background()

	ch, err := env.svc.IssueChallenge(ctx, w.address)
	require.NoError(t, err)
	req := w.answer(ch)

	_, err = env.svc.AuthenticateWallet(ctx, req)
	require.ErrorIs(t, err, ErrSignupRequiresUsername)
	require.True(t, env.nonceLive(t, w.address))

	req.Username = "alice"
	req.WalletName = "Phantom"
	out, err := env.svc.AuthenticateWallet(ctx, req)
	require.NoError(t, err)
	require.Equal(t, ActionSignup, out.Action)
	require.Equal(t, "alice", out.Account.Username)
	require.Equal(t, w.address, out.Account.WalletAddress)
	require.Equal(t, "Phantom", out.Account.Name)
	require.Equal(t, roles.Default, out.Account.Role)
	require.NotEmpty(t, out.Account.ID)
	require.False(t, env.nonceLive(t, w.address))

	// Replay of the signup request.
	_, err = env.svc.AuthenticateWallet(ctx, req)
	require.ErrorIs(t, err, ErrChallengeExpired)

	ch2, err := env.svc.IssueChallenge(ctx, w.address)
	require.NoError(t, err)
	out2, err := env.svc.AuthenticateWallet(ctx, w.answer(ch2))
	require.NoError(t, err)
	require.Equal(t, ActionLogin, out2.Action)
	require.Equal(t, out.Account.ID, out2.Account.ID)
	require.Equal(t, 1, env.accounts.Len())

	require.Equal(t, []AuthEventType{
		EventChallengeIssued, EventSignupPending, EventSignup, EventVerifyFailed, EventChallengeIssued, EventLogin,
	}, env.events.types())
	require.Equal(t, 1, env.metrics.outcomes[OutcomeSignup])
	require.Equal(t, 1, env.metrics.outcomes[OutcomeLogin])
	require.Equal(t, 1, env.metrics.outcomes[OutcomeUsernameRequired])
}

func TestAuthenticateWallet_UsernameNegotiationReusesSignature(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	existing := newTestWallet(t)
	_, err := env.accounts.Create(ctx, CreateAccountParams{WalletAddress: existing.address, Username: "bob", Role: roles.Default})
	require.NoError(t, err)

	w := newTestWallet(t)
	ch, err := env.svc.IssueChallenge(ctx, w.address)
	require.NoError(t, err)
	req := w.answer(ch)

	req.Username = "ab"
	_, err = env.svc.AuthenticateWallet(ctx, req)
	require.ErrorIs(t, err, ErrUsernameInvalid)

	req.Username = "bob"
	_, err = env.svc.AuthenticateWallet(ctx, req)
	require.ErrorIs(t, err, ErrUsernameTaken)

	req.Username = "  carol  "
	out, err := env.svc.AuthenticateWallet(ctx, req)
	require.NoError(t, err)
	require.Equal(t, ActionSignup, out.Action)
	require.Equal(t, "carol", out.Account.Username)
}

func TestAuthenticateWallet_InvalidSignatureIsHardFailure(t *testing.T) {
	env := newTestEnv(t)
	w := newTestWallet(t)
	ctx := context.Background()

	ch, err := env.svc.IssueChallenge(ctx, w.address)
	require.NoError(t, err)
	req := w.answer(ch)
	req.Signature = w.sign(ch.Message + " ")
	req.Username = "alice"

	_, err = env.svc.AuthenticateWallet(ctx, req)
	require.ErrorIs(t, err, ErrInvalidSignature)
	require.True(t, IsAuthFailure(err))
	require.Equal(t, 0, env.accounts.Len())
}

func TestAuthenticateWallet_Ethereum(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	addr := crypto.PubkeyToAddress(key.PublicKey).Hex()

	ch, err := env.svc.IssueChallenge(ctx, addr)
	require.NoError(t, err)
	sig, err := crypto.Sign(accounts.TextHash([]byte(ch.Message)), key)
	require.NoError(t, err)
	sig[64] += 27

	out, err := env.svc.AuthenticateWallet(ctx, VerifyRequest{
		WalletAddress: addr,
		Signature:     walletsig.SignatureFromBytes(sig),
		Nonce:         ch.Nonce,
		Timestamp:     ch.Timestamp,
		Username:      "vitalik",
	})
	require.NoError(t, err)
	require.Equal(t, ActionSignup, out.Action)
	require.Equal(t, addr, out.Account.WalletAddress)
	require.Equal(t, 1, env.metrics.issued["ethereum"])
}

func TestAuthenticateWallet_AuditSinkErrorsIgnored(t *testing.T) {
	env := newTestEnv(t)
	env.events.err = errBoom
	w := newTestWallet(t)
	ctx := context.Background()

	ch, err := env.svc.IssueChallenge(ctx, w.address)
	require.NoError(t, err)
	req := w.answer(ch)
	req.Username = "dave"
	_, err = env.svc.AuthenticateWallet(ctx, req)
	require.NoError(t, err)
}

func TestAuthenticateWallet_RequestMetaOnEvents(t *testing.T) {
	env := newTestEnv(t)
	ctx := WithRequestMeta(context.Background(), "203.0.113.7", "test-agent")

	_, err := env.svc.IssueChallenge(ctx, newTestWallet(t).address)
	require.NoError(t, err)
	require.Len(t, env.events.events, 1)
	e := env.events.events[0]
	require.Equal(t, "203.0.113.7", e.IPAddr)
	require.Equal(t, "test-agent", e.UserAgent)
	require.NotEmpty(t, e.ID)
	require.Equal(t, env.clock.Now().UTC(), e.OccurredAt)
}
