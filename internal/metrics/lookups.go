package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	NameLookups = "lookups_total"
	LabelResult = "result"

	LookupHit  = "hit"
	LookupMiss = "miss"
)

var Lookups = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name:      NameLookups,
		Help:      "Section cache entry lookups served by the read cache",
		Namespace: Namespace,
	},
	[]string{LabelResult},
)
