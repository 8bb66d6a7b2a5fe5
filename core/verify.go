package core

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"

	"github.com/PaulFidika/walletauth/walletsig"
)

// VerifyRequest carries the fields a wallet returns after signing a challenge.
type VerifyRequest struct {
	WalletAddress string
	Signature     walletsig.Signature
	Nonce         string
	Timestamp     int64 // milliseconds since epoch, as issued
	WalletName    string
	Username      string
}

// VerificationResult is only ever returned with Verified set; failures are errors.
type VerificationResult struct {
	Verified      bool
	WalletAddress string
	Scheme        walletsig.Scheme
}

// VerifyWalletSignature checks the signature against the stored challenge and
// consumes the nonce on success, so the same signature cannot be replayed.
func (s *Service) VerifyWalletSignature(ctx context.Context, req VerifyRequest) (VerificationResult, error) {
	res, err := s.checkSignature(ctx, req)
	if err != nil {
		s.recordFailure(ctx, req.WalletAddress, err)
		return VerificationResult{}, err
	}
	if err := s.consumeNonce(ctx, req.WalletAddress); err != nil {
		return VerificationResult{}, err
	}
	if s.metrics != nil {
		s.metrics.VerificationOutcome(OutcomeVerified)
	}
	return res, nil
}

// checkSignature runs every verification step except consumption. The nonce is
// deleted on InvalidChallenge and InvalidSignature so a burnt challenge cannot be retried.
func (s *Service) checkSignature(ctx context.Context, req VerifyRequest) (VerificationResult, error) {
	// Decoded up front but only reported after the nonce check, so an
	// undecodable signature burns the challenge like a wrong one.
	sig, sigErr := req.Signature.Bytes()
	if strings.TrimSpace(req.WalletAddress) == "" || (sigErr == nil && len(sig) == 0) || req.Nonce == "" || req.Timestamp <= 0 {
		return VerificationResult{}, fmt.Errorf("%w: missing required fields", ErrInvalidRequest)
	}
	if s.nonces == nil {
		return VerificationResult{}, fmt.Errorf("%w: not configured", ErrStoreUnavailable)
	}

	stored, ok, err := s.nonces.Get(ctx, req.WalletAddress)
	if err != nil {
		s.log.WithError(err).WithField("wallet", req.WalletAddress).Warn("walletauth: nonce lookup failed")
		return VerificationResult{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if !ok {
		return VerificationResult{}, ErrChallengeExpired
	}
	if subtle.ConstantTimeCompare([]byte(stored), []byte(req.Nonce)) != 1 {
		s.discardNonce(ctx, req.WalletAddress)
		return VerificationResult{}, ErrInvalidChallenge
	}

	if sigErr != nil {
		s.discardNonce(ctx, req.WalletAddress)
		return VerificationResult{}, fmt.Errorf("%w: %v", ErrInvalidSignature, sigErr)
	}

	msg := walletsig.BuildMessage(req.WalletAddress, req.Nonce, req.Timestamp)
	if err := walletsig.Verify(req.WalletAddress, []byte(msg), sig); err != nil {
		s.discardNonce(ctx, req.WalletAddress)
		return VerificationResult{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	return VerificationResult{
		Verified:      true,
		WalletAddress: req.WalletAddress,
		Scheme:        walletsig.DetectScheme(req.WalletAddress),
	}, nil
}

// consumeNonce deletes the nonce after a successful verification. A failed delete
// fails the attempt: the signature would otherwise stay replayable.
func (s *Service) consumeNonce(ctx context.Context, walletAddress string) error {
	if err := s.nonces.Delete(ctx, walletAddress); err != nil {
		s.log.WithError(err).WithField("wallet", walletAddress).Warn("walletauth: failed to consume nonce")
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// discardNonce deletes a burnt nonce on a failure path. The original failure is
// what the caller sees, so delete errors are only logged.
func (s *Service) discardNonce(ctx context.Context, walletAddress string) {
	if err := s.nonces.Delete(ctx, walletAddress); err != nil {
		s.log.WithError(err).WithField("wallet", walletAddress).Warn("walletauth: failed to discard nonce")
	}
}

func (s *Service) recordFailure(ctx context.Context, walletAddress string, err error) {
	outcome := OutcomeOf(err)
	if s.metrics != nil {
		s.metrics.VerificationOutcome(outcome)
	}
	if errors.Is(err, ErrInvalidRequest) {
		return
	}
	s.logEvent(ctx, AuthEvent{Event: EventVerifyFailed, WalletAddress: walletAddress, Reason: outcome})
}
