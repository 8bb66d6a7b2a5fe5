package handlers

import (
	"net/http"

	"github.com/PaulFidika/walletauth/adapters/ginutil"
	"github.com/PaulFidika/walletauth/adapters/wire"
	core "github.com/PaulFidika/walletauth/core"
	"github.com/gin-gonic/gin"
)

// HandleWalletChallengePOST handles POST /challenge.
// Issues a fresh nonce for the wallet and returns the message to sign.
func HandleWalletChallengePOST(svc core.Provider, rl ginutil.RateLimiter, clientIP ginutil.ClientIPFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !ginutil.AllowNamed(c, rl, ginutil.RLWalletChallenge, clientIP) {
			ginutil.TooMany(c)
			return
		}

		var req wire.ChallengeRequest
		if err := ginutil.BindJSON(c, &req); err != nil {
			ginutil.BadRequest(c, wire.MsgInvalidBody)
			return
		}

		ch, err := svc.IssueChallenge(ginutil.RequestContext(c, clientIP), req.WalletAddress)
		if err != nil {
			status, body := wire.ChallengeError(err)
			if wire.IsServerError(status) {
				ginutil.LogServerErr(c, err, "failed to issue wallet challenge")
			}
			c.AbortWithStatusJSON(status, body)
			return
		}
		c.JSON(http.StatusOK, wire.ChallengeFromCore(ch))
	}
}
