// Package testing provides an in-process walletauth server and software wallets
// for exercising the full sign-in flow without external services.
package testing

import (
	"context"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	authhttp "github.com/PaulFidika/walletauth/adapters/http"
	core "github.com/PaulFidika/walletauth/core"
	memorystore "github.com/PaulFidika/walletauth/storage/memory"
	"github.com/PaulFidika/walletauth/walletsig"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/crypto"
)

// Clock is a manually advanced clock shared by the server and its nonce store.
type Clock struct {
	mu sync.Mutex
	t  time.Time
}

func NewClock(start time.Time) *Clock { return &Clock{t: start} }

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// Server is a walletauth API served by httptest with in-memory stores.
type Server struct {
	*httptest.Server
	Clock    *Clock
	Accounts *core.MemoryAccounts
	Core     *core.Service
}

// NewServer starts a server; its API lives at URL + "/api/auth". Callers Close it.
func NewServer() (*Server, error) {
	clock := NewClock(time.Now())
	coreSvc, err := core.NewFromConfig(core.Config{Clock: clock.Now})
	if err != nil {
		return nil, err
	}
	accts := core.NewMemoryAccounts()
	coreSvc.
		WithEphemeralStore(memorystore.NewKV(memorystore.WithClock(clock.Now)), core.EphemeralMemory).
		WithAccounts(accts)

	api := authhttp.Wrap(coreSvc).DisableRateLimiter().APIHandler()
	mux := http.NewServeMux()
	mux.Handle("/api/auth/", http.StripPrefix("/api/auth", api))
	return &Server{
		Server:   httptest.NewServer(mux),
		Clock:    clock,
		Accounts: accts,
		Core:     coreSvc,
	}, nil
}

// APIURL is the base URL to hand to client.NewHTTPAPI.
func (s *Server) APIURL() string { return s.URL + "/api/auth" }

// SolanaWallet is an ed25519 software wallet.
type SolanaWallet struct {
	name string
	priv ed25519.PrivateKey
	addr string

	mu           sync.Mutex
	signed       [][]byte
	Disconnected int
	// BeforeSign, when set, runs before every signature (e.g. to advance a clock).
	BeforeSign func(msg []byte) []byte
}

func NewSolanaWallet(name string) (*SolanaWallet, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	return &SolanaWallet{name: name, priv: priv, addr: walletsig.PublicKeyToBase58(pub)}, nil
}

func (w *SolanaWallet) Address() string { return w.addr }
func (w *SolanaWallet) Name() string    { return w.name }

func (w *SolanaWallet) SignMessage(ctx context.Context, msg []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	w.mu.Lock()
	w.signed = append(w.signed, append([]byte(nil), msg...))
	hook := w.BeforeSign
	w.mu.Unlock()
	if hook != nil {
		msg = hook(msg)
	}
	return ed25519.Sign(w.priv, msg), nil
}

// Sign signs msg directly, bypassing hooks.
func (w *SolanaWallet) Sign(msg []byte) []byte { return ed25519.Sign(w.priv, msg) }

// Signed returns every message the wallet was asked to sign.
func (w *SolanaWallet) Signed() [][]byte {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([][]byte(nil), w.signed...)
}

func (w *SolanaWallet) Disconnect(context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.Disconnected++
	return nil
}

// EthereumWallet signs with personal_sign (EIP-191) over a secp256k1 key.
type EthereumWallet struct {
	key  *ecdsa.PrivateKey
	addr string
}

func NewEthereumWallet() (*EthereumWallet, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, err
	}
	return &EthereumWallet{key: key, addr: crypto.PubkeyToAddress(key.PublicKey).Hex()}, nil
}

func (w *EthereumWallet) Address() string { return w.addr }
func (w *EthereumWallet) Name() string    { return "MetaMask" }

func (w *EthereumWallet) SignMessage(ctx context.Context, msg []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sig, err := crypto.Sign(accounts.TextHash(msg), w.key)
	if err != nil {
		return nil, fmt.Errorf("personal_sign: %w", err)
	}
	sig[64] += 27
	return sig, nil
}

func (w *EthereumWallet) Disconnect(context.Context) error { return nil }
