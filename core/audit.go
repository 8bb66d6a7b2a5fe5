package core

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// AuthEventType identifies a wallet authentication event.
type AuthEventType string

const (
	EventChallengeIssued AuthEventType = "challenge_issued"
	EventLogin           AuthEventType = "login"
	EventSignup          AuthEventType = "signup"
	EventSignupPending   AuthEventType = "signup_pending"
	EventVerifyFailed    AuthEventType = "verify_failed"
)

// Verification outcomes, as reported to MetricsRecorder and in AuthEvent.Reason.
const (
	OutcomeVerified          = "verified"
	OutcomeLogin             = string(ActionLogin)
	OutcomeSignup            = string(ActionSignup)
	OutcomeInvalidRequest    = "invalid_request"
	OutcomeChallengeExpired  = "challenge_expired"
	OutcomeInvalidChallenge  = "invalid_challenge"
	OutcomeInvalidSignature  = "invalid_signature"
	OutcomeUsernameRequired  = "username_required"
	OutcomeUsernameInvalid   = "username_invalid"
	OutcomeUsernameTaken     = "username_taken"
	OutcomeStoreUnavailable  = "store_unavailable"
	OutcomePersistenceFailed = "persistence_failure"
	OutcomeError             = "error"
)

// AuthEvent is a best-effort, append-only record intended for external sinks.
// It never carries nonces or signatures.
type AuthEvent struct {
	ID            string
	OccurredAt    time.Time
	Event         AuthEventType
	WalletAddress string
	AccountID     string
	Scheme        string
	Reason        string
	IPAddr        string
	UserAgent     string
}

// AuthEventLogger records authentication events to an external sink (e.g., a message stream).
// Implementations should be non-blocking and best-effort.
type AuthEventLogger interface {
	LogAuthEvent(ctx context.Context, e AuthEvent) error
}

// MetricsRecorder receives counters for issued challenges and verification outcomes.
type MetricsRecorder interface {
	ChallengeIssued(scheme string)
	VerificationOutcome(outcome string)
}

// OutcomeOf maps a verification error to its outcome label.
func OutcomeOf(err error) string {
	switch {
	case err == nil:
		return OutcomeVerified
	case errors.Is(err, ErrInvalidRequest):
		return OutcomeInvalidRequest
	case errors.Is(err, ErrChallengeExpired):
		return OutcomeChallengeExpired
	case errors.Is(err, ErrInvalidChallenge):
		return OutcomeInvalidChallenge
	case errors.Is(err, ErrInvalidSignature):
		return OutcomeInvalidSignature
	case errors.Is(err, ErrSignupRequiresUsername):
		return OutcomeUsernameRequired
	case errors.Is(err, ErrUsernameInvalid):
		return OutcomeUsernameInvalid
	case errors.Is(err, ErrUsernameTaken):
		return OutcomeUsernameTaken
	case errors.Is(err, ErrStoreUnavailable):
		return OutcomeStoreUnavailable
	case errors.Is(err, ErrPersistence):
		return OutcomePersistenceFailed
	default:
		return OutcomeError
	}
}

func (s *Service) logEvent(ctx context.Context, e AuthEvent) {
	if s.authlog == nil {
		return
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = s.now().UTC()
	}
	if meta, ok := requestMetaFromContext(ctx); ok {
		e.IPAddr = meta.ip
		e.UserAgent = meta.userAgent
	}
	if err := s.authlog.LogAuthEvent(ctx, e); err != nil {
		s.log.WithError(err).WithField("event", string(e.Event)).Warn("walletauth: audit sink failed")
	}
}
