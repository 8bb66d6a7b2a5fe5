package client

// State is the orchestrator's position in the sign-in protocol.
type State string

const (
	StateIdle               State = "idle"
	StateChallengeRequested State = "challenge_requested"
	StateSigning            State = "signing"
	StateVerifying          State = "verifying"
	StateAwaitingUsername   State = "awaiting_username"
	StateAuthenticated      State = "authenticated"
	StateFailed             State = "failed"
)

// busy reports whether a round trip is in flight.
func (s State) busy() bool {
	return s == StateChallengeRequested || s == StateSigning || s == StateVerifying
}
