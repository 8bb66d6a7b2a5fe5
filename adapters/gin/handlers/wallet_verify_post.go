package handlers

import (
	"net/http"

	"github.com/PaulFidika/walletauth/adapters/ginutil"
	"github.com/PaulFidika/walletauth/adapters/wire"
	core "github.com/PaulFidika/walletauth/core"
	"github.com/gin-gonic/gin"
)

// HandleWalletVerifyPOST handles POST /verify.
// Verifies the signed challenge, then logs the wallet in or signs it up when a username is supplied.
func HandleWalletVerifyPOST(svc core.Provider, rl ginutil.RateLimiter, clientIP ginutil.ClientIPFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !ginutil.AllowNamed(c, rl, ginutil.RLWalletVerify, clientIP) {
			ginutil.TooMany(c)
			return
		}

		var req wire.VerifyRequest
		if err := ginutil.BindJSON(c, &req); err != nil {
			ginutil.BadRequest(c, wire.MsgInvalidBody)
			return
		}

		out, err := svc.AuthenticateWallet(ginutil.RequestContext(c, clientIP), req.ToCore())
		if err != nil {
			status, body := wire.VerifyError(err)
			if wire.IsServerError(status) {
				ginutil.LogServerErr(c, err, "wallet verification failed")
			}
			c.AbortWithStatusJSON(status, body)
			return
		}
		c.JSON(http.StatusOK, wire.VerifySuccess(out))
	}
}
