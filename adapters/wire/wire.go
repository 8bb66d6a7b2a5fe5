// Package wire defines the JSON bodies of the /challenge and /verify endpoints and
// the mapping from core errors to HTTP status codes and messages. Server adapters
// and the client share it so both ends agree on the contract.
package wire

import (
	"time"

	"github.com/PaulFidika/walletauth/core"
	"github.com/PaulFidika/walletauth/walletsig"
)

const (
	ActionLogin          = "login"
	ActionSignup         = "signup"
	ActionSignupRequired = "signup_required"
)

type ChallengeRequest struct {
	WalletAddress string `json:"walletAddress"`
}

type ChallengeResponse struct {
	Message   string `json:"message"`
	Nonce     string `json:"nonce"`
	Timestamp int64  `json:"timestamp"`
}

type VerifyRequest struct {
	WalletAddress string              `json:"walletAddress"`
	Signature     walletsig.Signature `json:"signature"`
	Nonce         string              `json:"nonce"`
	Timestamp     int64               `json:"timestamp"`
	WalletName    string              `json:"walletname,omitempty"`
	Username      string              `json:"username,omitempty"`
}

type User struct {
	ID            string    `json:"id"`
	WalletAddress string    `json:"walletAddress"`
	Username      string    `json:"username"`
	Name          string    `json:"name,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

// VerifyResponse is the body of every /verify reply. Hard failures only set Message.
type VerifyResponse struct {
	Action           string `json:"action,omitempty"`
	Message          string `json:"message"`
	User             *User  `json:"user,omitempty"`
	RequiresUsername bool   `json:"requiresUsername,omitempty"`
	UsernameError    bool   `json:"usernameError,omitempty"`
}

type ErrorResponse struct {
	Message string `json:"message"`
}

// Human-readable messages returned to callers.
const (
	MsgWalletAddressRequired = "Wallet address is required"
	MsgChallengeFailed       = "Failed to generate authentication challenge"
	MsgInvalidBody           = "Invalid request body"
	MsgMissingFields         = "Missing required fields"
	MsgChallengeExpired      = "Authentication challenge expired or not found. Please try again."
	MsgInvalidChallenge      = "Invalid authentication challenge"
	MsgInvalidSignature      = "Invalid signature. Authentication failed."
	MsgUsernameRequired      = "Username required for new user registration"
	MsgUsernameTaken         = "Username already taken"
	MsgUsernameLength        = "Username must be between 3 and 20 characters"
	MsgAuthFailed            = "Authentication failed. Please try again."
	MsgLoginSuccessful       = "Login successful"
	MsgSignupSuccessful      = "Account created successfully"
	MsgTooManyRequests       = "Too many requests"
)

func (r VerifyRequest) ToCore() core.VerifyRequest {
	return core.VerifyRequest{
		WalletAddress: r.WalletAddress,
		Signature:     r.Signature,
		Nonce:         r.Nonce,
		Timestamp:     r.Timestamp,
		WalletName:    r.WalletName,
		Username:      r.Username,
	}
}

func ChallengeFromCore(ch core.Challenge) ChallengeResponse {
	return ChallengeResponse{Message: ch.Message, Nonce: ch.Nonce, Timestamp: ch.Timestamp}
}

func UserFromAccount(a *core.Account) *User {
	if a == nil {
		return nil
	}
	return &User{
		ID:            a.ID,
		WalletAddress: a.WalletAddress,
		Username:      a.Username,
		Name:          a.Name,
		CreatedAt:     a.CreatedAt,
	}
}

// VerifySuccess renders a terminal login/signup outcome (always 200).
func VerifySuccess(out core.AuthOutcome) VerifyResponse {
	msg := MsgLoginSuccessful
	if out.Action == core.ActionSignup {
		msg = MsgSignupSuccessful
	}
	return VerifyResponse{Action: string(out.Action), Message: msg, User: UserFromAccount(out.Account)}
}
