package core

import "context"

// AuthenticateWallet verifies the signature and resolves the account in one call.
//
// The nonce is consumed only once a Login or Signup is returned. Username
// negotiation outcomes leave it live until its TTL, so the caller can resubmit the
// same signature with a username instead of signing again.
func (s *Service) AuthenticateWallet(ctx context.Context, req VerifyRequest) (AuthOutcome, error) {
	res, err := s.checkSignature(ctx, req)
	if err != nil {
		s.recordFailure(ctx, req.WalletAddress, err)
		return AuthOutcome{}, err
	}

	out, err := s.ResolveAccount(ctx, res, req.WalletName, req.Username)
	if err != nil {
		if s.metrics != nil {
			s.metrics.VerificationOutcome(OutcomeOf(err))
		}
		if IsUsernameNegotiation(err) {
			s.logEvent(ctx, AuthEvent{Event: EventSignupPending, WalletAddress: req.WalletAddress, Scheme: string(res.Scheme), Reason: OutcomeOf(err)})
		}
		return AuthOutcome{}, err
	}

	if err := s.consumeNonce(ctx, req.WalletAddress); err != nil {
		if s.metrics != nil {
			s.metrics.VerificationOutcome(OutcomeOf(err))
		}
		return AuthOutcome{}, err
	}

	if s.metrics != nil {
		s.metrics.VerificationOutcome(string(out.Action))
	}
	ev := EventLogin
	if out.Action == ActionSignup {
		ev = EventSignup
	}
	s.logEvent(ctx, AuthEvent{Event: ev, WalletAddress: req.WalletAddress, AccountID: out.Account.ID, Scheme: string(res.Scheme)})
	return out, nil
}
