package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	NameRefreshes         = "refreshes_total"
	NameReconciledEntries = "reconciled_entries_total"
	NameEntries           = "entries"
	LabelStatus           = "status"
	LabelObjectType       = "object_type"

	StatusSucceeded = "succeeded"
	StatusConflict  = "conflict"
	StatusFailed    = "failed"
)

var Refreshes = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name:      NameRefreshes,
		Help:      "Refresh cycles by outcome",
		Namespace: Namespace,
	},
	[]string{LabelStatus},
)

var ReconciledEntries = promauto.NewCounter(
	prometheus.CounterOpts{
		Name:      NameReconciledEntries,
		Help:      "Section cache entries removed by reconciliation",
		Namespace: Namespace,
	},
)

var Entries = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name:      NameEntries,
		Help:      "Sections produced by the last refresh cycle",
		Namespace: Namespace,
	},
	[]string{LabelObjectType},
)
