package authhttp

import (
	"net/http"

	"github.com/PaulFidika/walletauth/adapters/wire"
	"github.com/sirupsen/logrus"
)

func (s *Service) handleWalletVerifyPOST(w http.ResponseWriter, r *http.Request) {
	if !s.allow(r, RLWalletVerify) {
		tooMany(w)
		return
	}

	var req wire.VerifyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, wire.MsgInvalidBody)
		return
	}

	ctx := s.requestContext(r)
	out, err := s.svc.AuthenticateWallet(ctx, req.ToCore())
	if err != nil {
		status, body := wire.VerifyError(err)
		if wire.IsServerError(status) {
			s.logger().WithError(err).WithFields(logrus.Fields{
				"route":  "verify",
				"wallet": req.WalletAddress,
			}).Error("walletauth: verify failed")
		}
		writeJSON(w, status, body)
		return
	}
	writeJSON(w, http.StatusOK, wire.VerifySuccess(out))
}
