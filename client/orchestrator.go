// Package client drives wallet sign-in from the caller's side: it requests a
// challenge, has the connected wallet sign it, submits the signature, and holds
// that signature across a username prompt when the server needs one to finish
// signup. The wallet is asked to sign exactly once per attempt.
package client

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/PaulFidika/walletauth/adapters/wire"
	core "github.com/PaulFidika/walletauth/core"
	"github.com/PaulFidika/walletauth/walletsig"
	"github.com/sirupsen/logrus"
)

const (
	DefaultRequestTimeout = 15 * time.Second
	DefaultSignTimeout    = 2 * time.Minute
)

// Messages surfaced through the Notifier.
const (
	MsgWelcomeBack       = "Welcome back!"
	MsgAccountCreated    = "Account created successfully"
	MsgChooseUsername    = "Create a username to finish signup"
	MsgSignatureDenied   = "Signature rejected. Please try again."
	MsgServerUnreachable = "Failed to connect to server"
	MsgUnexpected        = "Unexpected server response"
	MsgSessionExpired    = "Authentication session expired. Please reconnect your wallet."
	MsgUsernameRequired  = "Username is required"
	MsgAuthFailed        = "Authentication failed"
	MsgCancelled         = "Sign-in cancelled"
)

var (
	// ErrBusy is returned when an operation is attempted while a round trip is in flight.
	ErrBusy = errors.New("walletauth client: authentication in progress")
	// ErrNoPendingSignature is returned by SubmitUsername when there is no signature to reuse.
	ErrNoPendingSignature = errors.New("walletauth client: no pending signature")
	// ErrSuperseded is returned when Disconnect or Cancel ended the attempt mid-flight.
	ErrSuperseded = errors.New("walletauth client: attempt superseded")
	// ErrChallengeMismatch is returned when the challenge message does not match its own fields.
	ErrChallengeMismatch = errors.New("walletauth client: challenge message does not match request")
)

// pendingSignature is a verified-but-unconsumed signature held while a username is collected.
type pendingSignature struct {
	signature []byte
	nonce     string
	timestamp int64
}

// Orchestrator is safe for concurrent use; only one attempt runs at a time.
type Orchestrator struct {
	api            API
	notifier       Notifier
	log            logrus.FieldLogger
	requestTimeout time.Duration
	signTimeout    time.Duration

	mu      sync.Mutex
	state   State
	attempt uint64
	wallet  Wallet
	pending *pendingSignature
	account *wire.User
}

type Option func(*Orchestrator)

func WithNotifier(n Notifier) Option { return func(o *Orchestrator) { o.notifier = n } }

func WithLogger(l logrus.FieldLogger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.log = l
		}
	}
}

func WithRequestTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.requestTimeout = d
		}
	}
}

func WithSignTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.signTimeout = d
		}
	}
}

// New returns an orchestrator in StateIdle.
func New(api API, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		api:            api,
		log:            logrus.StandardLogger(),
		requestTimeout: DefaultRequestTimeout,
		signTimeout:    DefaultSignTimeout,
		state:          StateIdle,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Account returns the signed-in user, or nil unless the state is StateAuthenticated.
func (o *Orchestrator) Account() *wire.User {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.account == nil {
		return nil
	}
	u := *o.account
	return &u
}

// WalletAddress returns the connected wallet's address, or "".
func (o *Orchestrator) WalletAddress() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.wallet == nil {
		return ""
	}
	return o.wallet.Address()
}

// Connect starts a fresh attempt for w: challenge, sign, verify. It returns the
// resulting state; the error is non-nil only when the attempt ended in StateFailed
// or could not start.
func (o *Orchestrator) Connect(ctx context.Context, w Wallet) (State, error) {
	if w == nil || w.Address() == "" {
		return o.State(), errors.New("walletauth client: wallet not connected")
	}

	o.mu.Lock()
	if o.state.busy() || o.state == StateAwaitingUsername {
		st := o.state
		o.mu.Unlock()
		return st, ErrBusy
	}
	o.attempt++
	id := o.attempt
	o.wallet = w
	o.pending = nil
	o.account = nil
	o.state = StateChallengeRequested
	o.mu.Unlock()

	rctx, cancel := context.WithTimeout(ctx, o.requestTimeout)
	ch, err := o.api.Challenge(rctx, w.Address())
	cancel()
	if err != nil {
		return o.fail(ctx, id, messageFor(err, MsgServerUnreachable), err)
	}
	if err := checkChallenge(w.Address(), ch); err != nil {
		return o.fail(ctx, id, MsgUnexpected, err)
	}

	if !o.advance(id, StateSigning) {
		return o.State(), ErrSuperseded
	}
	sctx, cancel := context.WithTimeout(ctx, o.signTimeout)
	sig, err := w.SignMessage(sctx, []byte(ch.Message))
	cancel()
	if err != nil {
		return o.fail(ctx, id, MsgSignatureDenied, err)
	}

	return o.verify(ctx, id, pendingSignature{signature: sig, nonce: ch.Nonce, timestamp: ch.Timestamp}, "")
}

// SubmitUsername resubmits the pending signature with username. A username that
// fails the local length check leaves the orchestrator in StateAwaitingUsername.
func (o *Orchestrator) SubmitUsername(ctx context.Context, username string) (State, error) {
	o.mu.Lock()
	if o.state.busy() {
		st := o.state
		o.mu.Unlock()
		return st, ErrBusy
	}
	if o.state == StateAuthenticated {
		o.mu.Unlock()
		return StateAuthenticated, ErrNoPendingSignature
	}
	if o.state != StateAwaitingUsername || o.pending == nil {
		id := o.attempt
		o.mu.Unlock()
		return o.fail(ctx, id, MsgSessionExpired, ErrNoPendingSignature)
	}
	if strings.TrimSpace(username) == "" {
		o.mu.Unlock()
		o.notify(Notice{State: StateAwaitingUsername, Message: MsgUsernameRequired, Err: core.ErrSignupRequiresUsername})
		return StateAwaitingUsername, core.ErrSignupRequiresUsername
	}
	name, err := core.ValidateUsername(username)
	if err != nil {
		o.mu.Unlock()
		o.notify(Notice{State: StateAwaitingUsername, Message: err.Error(), Err: err})
		return StateAwaitingUsername, err
	}
	// Claimed under the same lock as the pending check so a concurrent submit sees ErrBusy.
	id := o.attempt
	ps := *o.pending
	o.state = StateVerifying
	o.mu.Unlock()

	return o.verify(ctx, id, ps, name)
}

// Cancel abandons a username prompt: the wallet is disconnected and the state becomes
// StateFailed. It reports whether there was a prompt to cancel.
func (o *Orchestrator) Cancel(ctx context.Context) bool {
	o.mu.Lock()
	if o.state != StateAwaitingUsername {
		o.mu.Unlock()
		return false
	}
	id := o.attempt
	o.mu.Unlock()
	_, _ = o.fail(ctx, id, MsgCancelled, context.Canceled)
	return true
}

// Disconnect signs out locally: any in-flight attempt is abandoned, the wallet is
// disconnected and the orchestrator returns to StateIdle.
func (o *Orchestrator) Disconnect(ctx context.Context) {
	o.mu.Lock()
	o.attempt++
	w := o.wallet
	o.reset(StateIdle)
	o.mu.Unlock()
	o.disconnect(ctx, w)
}

func (o *Orchestrator) verify(ctx context.Context, id uint64, ps pendingSignature, username string) (State, error) {
	o.mu.Lock()
	if o.attempt != id {
		st := o.state
		o.mu.Unlock()
		return st, ErrSuperseded
	}
	w := o.wallet
	o.state = StateVerifying
	o.mu.Unlock()

	req := wire.VerifyRequest{
		WalletAddress: w.Address(),
		Signature:     walletsig.SignatureFromBytes(ps.signature),
		Nonce:         ps.nonce,
		Timestamp:     ps.timestamp,
		WalletName:    w.Name(),
		Username:      username,
	}
	rctx, cancel := context.WithTimeout(ctx, o.requestTimeout)
	resp, err := o.api.Verify(rctx, req)
	cancel()

	if err != nil {
		var se *StatusError
		if errors.As(err, &se) && se.UsernameNegotiation() {
			return o.awaitUsername(id, ps, se.Body.Message)
		}
		return o.fail(ctx, id, messageFor(err, MsgServerUnreachable), err)
	}

	switch resp.Action {
	case wire.ActionLogin, wire.ActionSignup:
		if resp.User == nil {
			return o.fail(ctx, id, MsgUnexpected, ErrUnexpectedResponse)
		}
		o.mu.Lock()
		if o.attempt != id {
			st := o.state
			o.mu.Unlock()
			return st, ErrSuperseded
		}
		u := *resp.User
		o.account = &u
		o.pending = nil
		o.state = StateAuthenticated
		o.mu.Unlock()
		msg := MsgWelcomeBack
		if resp.Action == wire.ActionSignup {
			msg = MsgAccountCreated
		}
		o.notify(Notice{State: StateAuthenticated, Message: msg})
		return StateAuthenticated, nil
	case wire.ActionSignupRequired:
		if resp.RequiresUsername || resp.UsernameError {
			return o.awaitUsername(id, ps, resp.Message)
		}
	}
	msg := resp.Message
	if msg == "" {
		msg = MsgAuthFailed
	}
	return o.fail(ctx, id, msg, ErrUnexpectedResponse)
}

func (o *Orchestrator) awaitUsername(id uint64, ps pendingSignature, msg string) (State, error) {
	o.mu.Lock()
	if o.attempt != id {
		st := o.state
		o.mu.Unlock()
		return st, ErrSuperseded
	}
	o.pending = &ps
	o.state = StateAwaitingUsername
	o.mu.Unlock()
	if msg == "" {
		msg = MsgChooseUsername
	}
	o.notify(Notice{State: StateAwaitingUsername, Message: msg})
	return StateAwaitingUsername, nil
}

// fail ends attempt id: local auth state is cleared and the wallet disconnected.
func (o *Orchestrator) fail(ctx context.Context, id uint64, msg string, cause error) (State, error) {
	o.mu.Lock()
	if o.attempt != id {
		st := o.state
		o.mu.Unlock()
		return st, ErrSuperseded
	}
	o.attempt++
	w := o.wallet
	o.reset(StateFailed)
	o.mu.Unlock()

	o.disconnect(ctx, w)
	o.notify(Notice{State: StateFailed, Message: msg, Err: cause})
	if cause == nil {
		cause = errors.New(msg)
	}
	return StateFailed, fmt.Errorf("%s: %w", msg, cause)
}

// advance moves attempt id to next unless it was superseded.
func (o *Orchestrator) advance(id uint64, next State) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.attempt != id {
		return false
	}
	o.state = next
	return true
}

// reset must be called with o.mu held.
func (o *Orchestrator) reset(st State) {
	o.state = st
	o.wallet = nil
	o.pending = nil
	o.account = nil
}

func (o *Orchestrator) disconnect(ctx context.Context, w Wallet) {
	if w == nil {
		return
	}
	if err := w.Disconnect(context.WithoutCancel(ctx)); err != nil {
		o.log.WithError(err).WithField("wallet", w.Address()).Warn("walletauth client: wallet disconnect failed")
	}
}

func (o *Orchestrator) notify(n Notice) {
	if o.notifier != nil {
		o.notifier.Notify(n)
	}
}

// checkChallenge refuses to sign a message whose embedded fields differ from the
// challenge that carried it or that names another wallet.
func checkChallenge(address string, ch wire.ChallengeResponse) error {
	f, err := walletsig.ParseMessage(ch.Message)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrChallengeMismatch, err)
	}
	if f.Address != address || f.Nonce != ch.Nonce || f.Timestamp != ch.Timestamp {
		return ErrChallengeMismatch
	}
	return nil
}

// messageFor prefers the server's message, then fallback.
func messageFor(err error, fallback string) string {
	var se *StatusError
	if errors.As(err, &se) && se.Body.Message != "" {
		return se.Body.Message
	}
	if errors.Is(err, ErrUnexpectedResponse) {
		return MsgUnexpected
	}
	return fallback
}
