package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/PaulFidika/walletauth/adapters/wire"
)

// API is the server side of the wallet sign-in protocol as seen by the orchestrator.
type API interface {
	Challenge(ctx context.Context, walletAddress string) (wire.ChallengeResponse, error)
	Verify(ctx context.Context, req wire.VerifyRequest) (wire.VerifyResponse, error)
}

// ErrUnexpectedResponse is returned when a 2xx body cannot be decoded.
var ErrUnexpectedResponse = errors.New("unexpected server response")

// StatusError is a non-2xx reply. Body holds whatever the server sent in the
// /verify response shape; /challenge errors only populate Body.Message.
type StatusError struct {
	Status int
	Body   wire.VerifyResponse
}

func (e *StatusError) Error() string {
	if e.Body.Message != "" {
		return fmt.Sprintf("walletauth: %d: %s", e.Status, e.Body.Message)
	}
	return fmt.Sprintf("walletauth: %d", e.Status)
}

// UsernameNegotiation reports whether the reply asks the caller to (re)submit a username.
func (e *StatusError) UsernameNegotiation() bool {
	return e.Body.Action == wire.ActionSignupRequired && (e.Body.RequiresUsername || e.Body.UsernameError)
}

// HTTPAPI speaks the JSON contract of a walletauth server mounted at BaseURL.
type HTTPAPI struct {
	baseURL string
	hc      *http.Client
}

// NewHTTPAPI returns an API client for baseURL (e.g. "https://example.com/api/auth").
// A nil hc uses http.DefaultClient; per-call deadlines come from the context.
func NewHTTPAPI(baseURL string, hc *http.Client) *HTTPAPI {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &HTTPAPI{baseURL: strings.TrimRight(baseURL, "/"), hc: hc}
}

func (a *HTTPAPI) Challenge(ctx context.Context, walletAddress string) (wire.ChallengeResponse, error) {
	var out wire.ChallengeResponse
	err := a.post(ctx, "/challenge", wire.ChallengeRequest{WalletAddress: walletAddress}, &out)
	return out, err
}

func (a *HTTPAPI) Verify(ctx context.Context, req wire.VerifyRequest) (wire.VerifyResponse, error) {
	var out wire.VerifyResponse
	err := a.post(ctx, "/verify", req, &out)
	return out, err
}

func (a *HTTPAPI) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := a.hc.Do(req)
	if err != nil {
		return fmt.Errorf("walletauth: POST %s: %w", path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("walletauth: read %s response: %w", path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		se := &StatusError{Status: resp.StatusCode}
		_ = json.Unmarshal(raw, &se.Body)
		return se
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: %v", ErrUnexpectedResponse, err)
	}
	return nil
}
