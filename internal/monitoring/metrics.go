package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

var (
	DomainResolutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "domain_resolutions_total",
			Help: "Total number of domain resolutions by outcome",
		},
		[]string{"outcome"}, // hit, miss, super_admin, not_trusted, inactive, error
	)
	ResolutionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "domain_resolution_duration_seconds",
			Help:    "Duration of domain resolution in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		},
	)
	CacheEvictions = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "domain_cache_evictions_total",
			Help: "Total number of domain cache entries evicted by the size cap",
		},
	)
	TokensIssued = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tokens_issued_total",
			Help: "Total number of tokens issued by scope",
		},
		[]string{"scope"}, // tenant, super_admin
	)
	TokensRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tokens_rejected_total",
			Help: "Total number of token verifications rejected by reason",
		},
		[]string{"reason"}, // invalid, expired
	)
	TenantsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tenants_created_total",
			Help: "Total number of tenant creations by result",
		},
		[]string{"result"}, // ok, rolled_back, rejected
	)
)

func InitMetrics() {
	collectors := []prometheus.Collector{
		DomainResolutions,
		ResolutionDuration,
		CacheEvictions,
		TokensIssued,
		TokensRejected,
		TenantsCreated,
	}
	for _, c := range collectors {
		if err := prometheus.Register(c); err != nil {
			log.Error().Err(err).Msg("Failed to register metric")
		}
	}
}
