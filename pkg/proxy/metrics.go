package proxy

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Request outcomes.
const (
	outcomeHit               = "hit"
	outcomeMiss              = "miss"
	outcomeFavicon           = "favicon"
	outcomeUnsupportedMethod = "unsupported_method"
	outcomeBackendError      = "backend_error"
	outcomeCacheError        = "cache_error"
	outcomeError             = "error"
)

var requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "replay_proxy_requests_total",
	Help: "Total inbound requests by outcome",
}, []string{"outcome"})
