package ginutil

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/PaulFidika/walletauth/adapters/wire"
	core "github.com/PaulFidika/walletauth/core"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// RateLimiter is a minimal interface used by adapters.
type RateLimiter interface {
	AllowNamed(bucket string, key string) (bool, error)
}

// Bucket names used by walletauth endpoints.
const (
	RLWalletChallenge = "wallet_challenge"
	RLWalletVerify    = "wallet_verify"
)

// ClientIPFunc resolves the address rate limits and audit events are keyed on.
type ClientIPFunc func(c *gin.Context) string

// RemoteIP is the peer address with forwarded headers ignored. It is the
// default: gin trusts X-Forwarded-For from any peer until the engine's
// SetTrustedProxies is called.
func RemoteIP(c *gin.Context) string { return c.RemoteIP() }

// ForwardedClientIP is gin's ClientIP. Use it only on an engine configured
// with SetTrustedProxies.
func ForwardedClientIP(c *gin.Context) string { return c.ClientIP() }

func clientIP(c *gin.Context, fn ClientIPFunc) string {
	if fn == nil {
		fn = RemoteIP
	}
	return fn(c)
}

// AllowNamed applies a per-IP limit using the provided bucket name.
// It fails open on limiter error.
func AllowNamed(c *gin.Context, rl RateLimiter, bucket string, ipFn ClientIPFunc) bool {
	if rl == nil {
		return true
	}
	ip := clientIP(c, ipFn)
	if strings.TrimSpace(ip) == "" {
		return true
	}
	key := "auth:" + bucket + ":ip:" + ip
	ok, err := rl.AllowNamed(bucket, key)
	if err != nil {
		log.WithContext(c.Request.Context()).WithError(err).WithField("bucket", bucket).
			Warn("walletauth: rate limiter unavailable, allowing request")
		return true
	}
	return ok
}

// RequestContext returns the request context annotated with the client IP and user agent.
func RequestContext(c *gin.Context, ipFn ClientIPFunc) context.Context {
	return core.WithRequestMeta(c.Request.Context(), clientIP(c, ipFn), c.Request.UserAgent())
}

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 64 << 10

// BindJSON decodes exactly one JSON value from the request body.
func BindJSON(c *gin.Context, dst any) error {
	if c.Request == nil || c.Request.Body == nil {
		return errors.New("missing_body")
	}
	dec := json.NewDecoder(http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return err
	}
	// Reject trailing garbage.
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errors.New("invalid_json")
	}
	return nil
}

// Error helpers
func SendMessage(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, wire.ErrorResponse{Message: msg})
}

func BadRequest(c *gin.Context, msg string) { SendMessage(c, http.StatusBadRequest, msg) }

func TooMany(c *gin.Context) {
	SendMessage(c, http.StatusTooManyRequests, wire.MsgTooManyRequests)
}

// LogServerErr logs the underlying error with route context. Callers still write the response.
func LogServerErr(c *gin.Context, err error, message string) {
	entry := log.WithContext(c.Request.Context()).WithFields(log.Fields{
		"path":   c.FullPath(),
		"method": c.Request.Method,
	})
	if err != nil {
		entry = entry.WithError(err)
	}
	if strings.TrimSpace(message) == "" {
		message = "walletauth server error"
	}
	entry.Error(message)
}
