package wire

import (
	"errors"
	"net/http"

	"github.com/PaulFidika/walletauth/core"
)

// ChallengeError maps an IssueChallenge error to a status code and body.
func ChallengeError(err error) (int, ErrorResponse) {
	if errors.Is(err, core.ErrInvalidRequest) {
		return http.StatusBadRequest, ErrorResponse{Message: MsgWalletAddressRequired}
	}
	return http.StatusInternalServerError, ErrorResponse{Message: MsgChallengeFailed}
}

// VerifyError maps an AuthenticateWallet error to a status code and body.
func VerifyError(err error) (int, VerifyResponse) {
	var uerr *core.UsernameError
	switch {
	case errors.Is(err, core.ErrInvalidRequest):
		return http.StatusBadRequest, VerifyResponse{Message: MsgMissingFields}
	case core.IsAuthFailure(err):
		return http.StatusUnauthorized, VerifyResponse{Message: authFailureMessage(err)}
	case errors.Is(err, core.ErrSignupRequiresUsername):
		return http.StatusBadRequest, VerifyResponse{
			Action:           ActionSignupRequired,
			Message:          MsgUsernameRequired,
			RequiresUsername: true,
		}
	case errors.Is(err, core.ErrUsernameTaken):
		return http.StatusBadRequest, VerifyResponse{
			Action:        ActionSignupRequired,
			Message:       MsgUsernameTaken,
			UsernameError: true,
		}
	case errors.As(err, &uerr):
		return http.StatusBadRequest, VerifyResponse{
			Action:        ActionSignupRequired,
			Message:       uerr.Reason,
			UsernameError: true,
		}
	case errors.Is(err, core.ErrUsernameInvalid):
		return http.StatusBadRequest, VerifyResponse{
			Action:        ActionSignupRequired,
			Message:       MsgUsernameLength,
			UsernameError: true,
		}
	default:
		return http.StatusInternalServerError, VerifyResponse{Message: MsgAuthFailed}
	}
}

func authFailureMessage(err error) string {
	switch {
	case errors.Is(err, core.ErrInvalidChallenge):
		return MsgInvalidChallenge
	case errors.Is(err, core.ErrInvalidSignature):
		return MsgInvalidSignature
	default:
		return MsgChallengeExpired
	}
}

// IsServerError reports whether status should be logged as an unexpected failure.
func IsServerError(status int) bool { return status >= http.StatusInternalServerError }
