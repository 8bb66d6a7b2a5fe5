package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/PaulFidika/walletauth/walletsig"
)

// Challenge is returned to the caller for out-of-band signing.
type Challenge struct {
	Message   string
	Nonce     string
	Timestamp int64 // milliseconds since epoch
}

// IssueChallenge generates a fresh nonce for walletAddress, stores it with the
// configured TTL (replacing any previous one) and renders the message to sign.
func (s *Service) IssueChallenge(ctx context.Context, walletAddress string) (Challenge, error) {
	if strings.TrimSpace(walletAddress) == "" {
		return Challenge{}, fmt.Errorf("%w: wallet address is required", ErrInvalidRequest)
	}
	if s.nonces == nil {
		return Challenge{}, fmt.Errorf("%w: not configured", ErrStoreUnavailable)
	}

	nonce, err := walletsig.NewNonce()
	if err != nil {
		return Challenge{}, fmt.Errorf("generate nonce: %w", err)
	}
	ts := s.now().UnixMilli()

	if err := s.nonces.Put(ctx, walletAddress, nonce, s.opts.nonceTTL()); err != nil {
		s.log.WithError(err).WithField("wallet", walletAddress).Warn("walletauth: failed to store nonce")
		return Challenge{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	scheme := walletsig.DetectScheme(walletAddress)
	if s.metrics != nil {
		s.metrics.ChallengeIssued(string(scheme))
	}
	s.logEvent(ctx, AuthEvent{Event: EventChallengeIssued, WalletAddress: walletAddress, Scheme: string(scheme)})

	return Challenge{
		Message:   walletsig.BuildMessage(walletAddress, nonce, ts),
		Nonce:     nonce,
		Timestamp: ts,
	}, nil
}
