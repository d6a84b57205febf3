package application

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	methodPassword = "password"
	methodGoogle   = "google"
	methodToken    = "token"
	methodRegister = "register"
)

// AuthAttempts counts authentication attempts by method and outcome.
var AuthAttempts = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "auth_attempts_total",
		Help: "Total number of authentication attempts",
	},
	[]string{"method", "outcome"},
)

func observeAttempt(method string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	AuthAttempts.WithLabelValues(method, outcome).Inc()
}
