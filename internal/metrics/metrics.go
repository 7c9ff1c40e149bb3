// Package metrics 定義服務的 prometheus 指標。
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "mun_dashboard"

// Metrics 集中所有 collector，方便以不同 registry 建立 (測試時使用獨立 registry)
type Metrics struct {
	PersistWrites  *prometheus.CounterVec
	OpenSessions   *prometheus.GaugeVec
	VotesCompleted *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		PersistWrites: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persist_writes_total",
			Help:      "Document writes by target (local, remote) and result (ok, error, stale).",
		}, []string{"target", "result"}),
		OpenSessions: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "open_sessions",
			Help:      "Currently open sessions by kind (chair, delegate).",
		}, []string{"kind"}),
		VotesCompleted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "votes_completed_total",
			Help:      "Completed votes by outcome.",
		}, []string{"result"}),
	}
}

// Discard 回傳掛在私有 registry 上的指標，給不關心指標的呼叫端與測試使用
func Discard() *Metrics {
	return New(prometheus.NewRegistry())
}
