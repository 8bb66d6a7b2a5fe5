package authhttp

import (
	"net/http"

	"github.com/PaulFidika/walletauth/adapters/wire"
	"github.com/sirupsen/logrus"
)

func (s *Service) handleWalletChallengePOST(w http.ResponseWriter, r *http.Request) {
	if !s.allow(r, RLWalletChallenge) {
		tooMany(w)
		return
	}

	var req wire.ChallengeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, wire.MsgInvalidBody)
		return
	}

	ctx := s.requestContext(r)
	ch, err := s.svc.IssueChallenge(ctx, req.WalletAddress)
	if err != nil {
		status, body := wire.ChallengeError(err)
		if wire.IsServerError(status) {
			s.logger().WithError(err).WithFields(logrus.Fields{
				"route":  "challenge",
				"wallet": req.WalletAddress,
			}).Error("walletauth: challenge failed")
		}
		writeJSON(w, status, body)
		return
	}
	writeJSON(w, http.StatusOK, wire.ChallengeFromCore(ch))
}
