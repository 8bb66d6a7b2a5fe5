package client

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/PaulFidika/walletauth/adapters/wire"
	core "github.com/PaulFidika/walletauth/core"
	"github.com/PaulFidika/walletauth/walletsig"
	"github.com/stretchr/testify/require"
)

type fakeWallet struct {
	address      string
	signErr      error
	signs        int
	disconnected int
}

func (w *fakeWallet) Address() string { return w.address }
func (w *fakeWallet) Name() string    { return "Fake" }

func (w *fakeWallet) SignMessage(ctx context.Context, msg []byte) ([]byte, error) {
	w.signs++
	if w.signErr != nil {
		return nil, w.signErr
	}
	return []byte("sig:" + string(msg[:4])), nil
}

func (w *fakeWallet) Disconnect(context.Context) error {
	w.disconnected++
	return nil
}

// scriptedAPI replies to Verify from a queue of canned results.
type scriptedAPI struct {
	mu           sync.Mutex
	challengeErr error
	message      func(ch wire.ChallengeResponse) string
	replies      []func(wire.VerifyRequest) (wire.VerifyResponse, error)
	verifies     []wire.VerifyRequest
}

func (a *scriptedAPI) Challenge(_ context.Context, address string) (wire.ChallengeResponse, error) {
	if a.challengeErr != nil {
		return wire.ChallengeResponse{}, a.challengeErr
	}
	ch := wire.ChallengeResponse{Nonce: "ab12", Timestamp: 1_700_000_000_000}
	ch.Message = walletsig.BuildMessage(address, ch.Nonce, ch.Timestamp)
	if a.message != nil {
		ch.Message = a.message(ch)
	}
	return ch, nil
}

func (a *scriptedAPI) Verify(_ context.Context, req wire.VerifyRequest) (wire.VerifyResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.verifies = append(a.verifies, req)
	next := a.replies[0]
	a.replies = a.replies[1:]
	return next(req)
}

func reply(resp wire.VerifyResponse, err error) func(wire.VerifyRequest) (wire.VerifyResponse, error) {
	return func(wire.VerifyRequest) (wire.VerifyResponse, error) { return resp, err }
}

func needsUsername() func(wire.VerifyRequest) (wire.VerifyResponse, error) {
	return reply(wire.VerifyResponse{}, &StatusError{Status: http.StatusBadRequest, Body: wire.VerifyResponse{
		Action: wire.ActionSignupRequired, Message: wire.MsgUsernameRequired, RequiresUsername: true,
	}})
}

func signedUp(username string) func(wire.VerifyRequest) (wire.VerifyResponse, error) {
	return func(req wire.VerifyRequest) (wire.VerifyResponse, error) {
		return wire.VerifyResponse{
			Action:  wire.ActionSignup,
			Message: wire.MsgSignupSuccessful,
			User:    &wire.User{ID: "u1", WalletAddress: req.WalletAddress, Username: username},
		}, nil
	}
}

type notices struct {
	mu  sync.Mutex
	all []Notice
}

func (n *notices) Notify(x Notice) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.all = append(n.all, x)
}

func (n *notices) last() Notice {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.all[len(n.all)-1]
}

const addr = "11111111111111111111111111111111"

func TestConnect_Login(t *testing.T) {
	api := &scriptedAPI{replies: []func(wire.VerifyRequest) (wire.VerifyResponse, error){
		reply(wire.VerifyResponse{Action: wire.ActionLogin, User: &wire.User{ID: "u1", WalletAddress: addr, Username: "alice"}}, nil),
	}}
	n := &notices{}
	o := New(api, WithNotifier(n))
	w := &fakeWallet{address: addr}

	st, err := o.Connect(context.Background(), w)
	require.NoError(t, err)
	require.Equal(t, StateAuthenticated, st)
	require.Equal(t, "alice", o.Account().Username)
	require.Equal(t, addr, o.WalletAddress())
	require.Equal(t, MsgWelcomeBack, n.last().Message)
	require.Equal(t, 1, w.signs)
	require.Equal(t, "Fake", api.verifies[0].WalletName)
	require.Empty(t, api.verifies[0].Username)
}

func TestConnect_UsernameNegotiationReusesSignature(t *testing.T) {
	api := &scriptedAPI{replies: []func(wire.VerifyRequest) (wire.VerifyResponse, error){
		needsUsername(),
		reply(wire.VerifyResponse{}, &StatusError{Status: http.StatusBadRequest, Body: wire.VerifyResponse{
			Action: wire.ActionSignupRequired, Message: wire.MsgUsernameTaken, UsernameError: true,
		}}),
		signedUp("alice2"),
	}}
	n := &notices{}
	o := New(api, WithNotifier(n))
	w := &fakeWallet{address: addr}
	ctx := context.Background()

	st, err := o.Connect(ctx, w)
	require.NoError(t, err)
	require.Equal(t, StateAwaitingUsername, st)
	require.Equal(t, wire.MsgUsernameRequired, n.last().Message)

	st, err = o.SubmitUsername(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, StateAwaitingUsername, st)
	require.Equal(t, wire.MsgUsernameTaken, n.last().Message)

	// Local validation never reaches the server.
	st, err = o.SubmitUsername(ctx, "al")
	require.ErrorIs(t, err, core.ErrUsernameInvalid)
	require.Equal(t, StateAwaitingUsername, st)
	st, err = o.SubmitUsername(ctx, "   ")
	require.ErrorIs(t, err, core.ErrSignupRequiresUsername)
	require.Equal(t, StateAwaitingUsername, st)
	require.Equal(t, MsgUsernameRequired, n.last().Message)

	st, err = o.SubmitUsername(ctx, " alice2 ")
	require.NoError(t, err)
	require.Equal(t, StateAuthenticated, st)
	require.Equal(t, MsgAccountCreated, n.last().Message)

	require.Equal(t, 1, w.signs)
	require.Len(t, api.verifies, 3)
	for _, v := range api.verifies {
		require.Equal(t, api.verifies[0].Signature, v.Signature)
		require.Equal(t, "ab12", v.Nonce)
	}
	require.Equal(t, "alice2", api.verifies[2].Username)
	require.Zero(t, w.disconnected)
}

func TestConnect_SignatureRejected(t *testing.T) {
	n := &notices{}
	o := New(&scriptedAPI{}, WithNotifier(n))
	w := &fakeWallet{address: addr, signErr: errors.New("user rejected")}

	st, err := o.Connect(context.Background(), w)
	require.Error(t, err)
	require.Equal(t, StateFailed, st)
	require.Equal(t, MsgSignatureDenied, n.last().Message)
	require.Equal(t, 1, w.disconnected)
	require.Empty(t, o.WalletAddress())
}

func TestConnect_HardFailuresDisconnect(t *testing.T) {
	cases := map[string]struct {
		api *scriptedAPI
		msg string
	}{
		"challenge_network": {
			api: &scriptedAPI{challengeErr: errors.New("dial tcp: refused")},
			msg: MsgServerUnreachable,
		},
		"challenge_500": {
			api: &scriptedAPI{challengeErr: &StatusError{Status: 500, Body: wire.VerifyResponse{Message: wire.MsgChallengeFailed}}},
			msg: wire.MsgChallengeFailed,
		},
		"expired": {
			api: &scriptedAPI{replies: []func(wire.VerifyRequest) (wire.VerifyResponse, error){
				reply(wire.VerifyResponse{}, &StatusError{Status: 401, Body: wire.VerifyResponse{Message: wire.MsgChallengeExpired}}),
			}},
			msg: wire.MsgChallengeExpired,
		},
		"garbled_success": {
			api: &scriptedAPI{replies: []func(wire.VerifyRequest) (wire.VerifyResponse, error){
				reply(wire.VerifyResponse{}, ErrUnexpectedResponse),
			}},
			msg: MsgUnexpected,
		},
		"tampered_message": {
			api: &scriptedAPI{message: func(ch wire.ChallengeResponse) string {
				return walletsig.BuildMessage("someone-else", ch.Nonce, ch.Timestamp)
			}},
			msg: MsgUnexpected,
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			n := &notices{}
			o := New(tc.api, WithNotifier(n))
			w := &fakeWallet{address: addr}

			st, err := o.Connect(context.Background(), w)
			require.Error(t, err)
			require.Equal(t, StateFailed, st)
			require.Equal(t, tc.msg, n.last().Message)
			require.Equal(t, 1, w.disconnected)
			require.Nil(t, o.Account())
		})
	}
}

func TestSubmitUsername_WithoutPendingSignature(t *testing.T) {
	n := &notices{}
	o := New(&scriptedAPI{}, WithNotifier(n))

	st, err := o.SubmitUsername(context.Background(), "alice")
	require.ErrorIs(t, err, ErrNoPendingSignature)
	require.Equal(t, StateFailed, st)
	require.Equal(t, MsgSessionExpired, n.last().Message)
}

func TestCancel_AwaitingUsername(t *testing.T) {
	api := &scriptedAPI{replies: []func(wire.VerifyRequest) (wire.VerifyResponse, error){needsUsername()}}
	o := New(api)
	w := &fakeWallet{address: addr}
	ctx := context.Background()

	require.False(t, o.Cancel(ctx))
	st, err := o.Connect(ctx, w)
	require.NoError(t, err)
	require.Equal(t, StateAwaitingUsername, st)

	// A second Connect must not discard the pending signature silently.
	_, err = o.Connect(ctx, w)
	require.ErrorIs(t, err, ErrBusy)

	require.True(t, o.Cancel(ctx))
	require.Equal(t, StateFailed, o.State())
	require.Equal(t, 1, w.disconnected)

	st, err = o.SubmitUsername(ctx, "alice")
	require.ErrorIs(t, err, ErrNoPendingSignature)
	require.Equal(t, StateFailed, st)
	require.Len(t, api.verifies, 1)
}

type blockingWallet struct {
	fakeWallet
	started chan struct{}
	release chan struct{}
}

func (w *blockingWallet) SignMessage(ctx context.Context, msg []byte) ([]byte, error) {
	close(w.started)
	select {
	case <-w.release:
		return []byte("sig"), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestDisconnect_SupersedesInFlightAttempt(t *testing.T) {
	api := &scriptedAPI{}
	o := New(api)
	w := &blockingWallet{fakeWallet: fakeWallet{address: addr}, started: make(chan struct{}), release: make(chan struct{})}

	done := make(chan error, 1)
	go func() {
		_, err := o.Connect(context.Background(), w)
		done <- err
	}()
	<-w.started
	require.Equal(t, StateSigning, o.State())
	o.Disconnect(context.Background())
	close(w.release)

	require.ErrorIs(t, <-done, ErrSuperseded)
	require.Equal(t, StateIdle, o.State())
	require.Empty(t, api.verifies)
}

func TestConnect_SignTimeout(t *testing.T) {
	o := New(&scriptedAPI{}, WithSignTimeout(10*time.Millisecond))
	w := &blockingWallet{fakeWallet: fakeWallet{address: addr}, started: make(chan struct{}), release: make(chan struct{})}

	st, err := o.Connect(context.Background(), w)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Equal(t, StateFailed, st)
	require.Equal(t, 1, w.disconnected)
}

func TestSubmitUsername_ConcurrentSubmitIsBusy(t *testing.T) {
	release := make(chan struct{})
	inFlight := make(chan struct{})
	api := &scriptedAPI{replies: []func(wire.VerifyRequest) (wire.VerifyResponse, error){
		needsUsername(),
		func(req wire.VerifyRequest) (wire.VerifyResponse, error) {
			close(inFlight)
			<-release
			return signedUp("alice")(req)
		},
	}}
	o := New(api)
	w := &fakeWallet{address: addr}
	ctx := context.Background()

	_, err := o.Connect(ctx, w)
	require.NoError(t, err)

	done := make(chan State, 1)
	go func() {
		st, _ := o.SubmitUsername(ctx, "alice")
		done <- st
	}()
	<-inFlight

	st, err := o.SubmitUsername(ctx, "alice")
	require.ErrorIs(t, err, ErrBusy)
	require.Equal(t, StateVerifying, st)

	close(release)
	require.Equal(t, StateAuthenticated, <-done)
	require.Equal(t, "alice", o.Account().Username)
	require.Zero(t, w.disconnected)
}
