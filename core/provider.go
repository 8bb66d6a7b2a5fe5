package core

import "context"

// Provider is the auth surface needed by the built-in HTTP handlers.
// It is implemented by *Service and is the integration boundary for applications
// that want to wrap or fake the service.
type Provider interface {
	IssueChallenge(ctx context.Context, walletAddress string) (Challenge, error)
	AuthenticateWallet(ctx context.Context, req VerifyRequest) (AuthOutcome, error)
	VerifyWalletSignature(ctx context.Context, req VerifyRequest) (VerificationResult, error)
}

var _ Provider = (*Service)(nil)
