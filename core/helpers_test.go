package core

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"sync"
	"testing"
	"time"

	memorystore "github.com/PaulFidika/walletauth/storage/memory"
	"github.com/PaulFidika/walletauth/walletsig"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock { return &fakeClock{t: time.UnixMilli(1_700_000_000_000)} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type testWallet struct {
	address string
	priv    ed25519.PrivateKey
}

func newTestWallet(t *testing.T) testWallet {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	return testWallet{address: walletsig.PublicKeyToBase58(pub), priv: priv}
}

func (w testWallet) sign(msg string) walletsig.Signature {
	return walletsig.SignatureFromBytes(ed25519.Sign(w.priv, []byte(msg)))
}

// answer builds the VerifyRequest a well-behaved client sends for ch.
func (w testWallet) answer(ch Challenge) VerifyRequest {
	return VerifyRequest{
		WalletAddress: w.address,
		Signature:     w.sign(ch.Message),
		Nonce:         ch.Nonce,
		Timestamp:     ch.Timestamp,
	}
}

type testEnv struct {
	svc      *Service
	kv       *memorystore.KV
	accounts *MemoryAccounts
	clock    *fakeClock
	events   *recordingLogger
	metrics  *recordingMetrics
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	clock := newFakeClock()
	kv := memorystore.NewKV(memorystore.WithClock(clock.Now))
	accounts := NewMemoryAccounts()
	events := &recordingLogger{}
	metrics := &recordingMetrics{}
	svc, err := NewFromConfig(Config{Clock: clock.Now})
	require.NoError(t, err)
	svc.WithEphemeralStore(kv, EphemeralMemory).
		WithAccounts(accounts).
		WithAuthLogger(events).
		WithMetrics(metrics)
	return &testEnv{svc: svc, kv: kv, accounts: accounts, clock: clock, events: events, metrics: metrics}
}

func (e *testEnv) nonceLive(t *testing.T, address string) bool {
	t.Helper()
	_, ok, err := e.kv.Get(context.Background(), NonceKey(address))
	require.NoError(t, err)
	return ok
}

type recordingLogger struct {
	mu     sync.Mutex
	events []AuthEvent
	err    error
}

func (r *recordingLogger) LogAuthEvent(_ context.Context, e AuthEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return r.err
}

func (r *recordingLogger) types() []AuthEventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]AuthEventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Event)
	}
	return out
}

type recordingMetrics struct {
	mu       sync.Mutex
	issued   map[string]int
	outcomes map[string]int
}

func (r *recordingMetrics) ChallengeIssued(scheme string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.issued == nil {
		r.issued = map[string]int{}
	}
	r.issued[scheme]++
}

func (r *recordingMetrics) VerificationOutcome(outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.outcomes == nil {
		r.outcomes = map[string]int{}
	}
	r.outcomes[outcome]++
}

var errBoom = errors.New("boom")

// brokenStore fails every operation.
type brokenStore struct{}

func (brokenStore) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errBoom
}

func (brokenStore) Set(context.Context, string, []byte, time.Duration) error {
	return errBoom
}

func (brokenStore) Del(context.Context, string) error {
	return errBoom
}
