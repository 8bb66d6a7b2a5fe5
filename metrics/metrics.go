// Package metrics exposes wallet authentication counters to Prometheus.
package metrics

import (
	"github.com/PaulFidika/walletauth/core"
	"github.com/prometheus/client_golang/prometheus"
)

// Recorder implements core.MetricsRecorder.
type Recorder struct {
	challenges    *prometheus.CounterVec
	verifications *prometheus.CounterVec
}

var _ core.MetricsRecorder = (*Recorder)(nil)

// New creates the counters and registers them with reg. A nil reg uses prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer) (*Recorder, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	r := &Recorder{
		challenges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "walletauth",
			Name:      "challenges_issued_total",
			Help:      "Wallet authentication challenges issued, by wallet scheme.",
		}, []string{"scheme"}),
		verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "walletauth",
			Name:      "verifications_total",
			Help:      "Wallet signature verification attempts, by outcome.",
		}, []string{"outcome"}),
	}
	for _, c := range []prometheus.Collector{r.challenges, r.verifications} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Recorder) ChallengeIssued(scheme string) {
	r.challenges.WithLabelValues(scheme).Inc()
}

func (r *Recorder) VerificationOutcome(outcome string) {
	r.verifications.WithLabelValues(outcome).Inc()
}
