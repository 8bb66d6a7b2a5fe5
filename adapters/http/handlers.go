package authhttp

import (
	"net/http"

	"github.com/PaulFidika/walletauth/adapters/wire"
	core "github.com/PaulFidika/walletauth/core"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// APIHandler returns a handler that serves the wallet auth JSON API:
//
//	POST /challenge
//	POST /verify
//
// It is intended to be mounted under the host's mux/router at any prefix.
func (s *Service) APIHandler() http.Handler {
	if s == nil || s.svc == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sendMessage(w, http.StatusInternalServerError, wire.MsgAuthFailed)
		})
	}
	if !core.IsDevEnvironment() {
		if s.svc.EphemeralMode() == core.EphemeralMemory {
			panic("walletauth: a shared nonce store (redis or postgres) is required in production")
		}
	}

	mux := http.NewServeMux()
	mux.Handle("POST /challenge", http.HandlerFunc(s.handleWalletChallengePOST))
	mux.Handle("POST /verify", http.HandlerFunc(s.handleWalletVerifyPOST))
	return mux
}

// MetricsHandler serves the Prometheus text exposition for g (nil uses the default gatherer).
func MetricsHandler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
