package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// LedgerMetrics records settlement ledger activity.
type LedgerMetrics struct {
	nonceCommits   *prometheus.CounterVec
	saltRotations  prometheus.Counter
	saltsInvalid   prometheus.Counter
	batches        *prometheus.CounterVec
	batchIntents   prometheus.Histogram
	wordsReclaimed prometheus.Counter
}

var (
	ledgerOnce     sync.Once
	ledgerRegistry *LedgerMetrics
)

// Ledger returns the lazily-initialised ledger metrics registry.
func Ledger() *LedgerMetrics {
	ledgerOnce.Do(func() {
		ledgerRegistry = &LedgerMetrics{
			nonceCommits: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "ledger_nonce_commits_total",
				Help: "Count of nonce commit attempts by outcome.",
			}, []string{"outcome"}),
			saltRotations: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "ledger_salt_rotations_total",
				Help: "Count of salt rotations.",
			}),
			saltsInvalid: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "ledger_salts_invalidated_total",
				Help: "Count of salts revoked by an authorized caller.",
			}),
			batches: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "ledger_batches_total",
				Help: "Count of settlement batches by outcome.",
			}, []string{"outcome"}),
			batchIntents: prometheus.NewHistogram(prometheus.HistogramOpts{
				Name:    "ledger_batch_intents",
				Help:    "Distribution of intent counts per settlement batch.",
				Buckets: []float64{1, 2, 4, 8, 16, 32, 64},
			}),
			wordsReclaimed: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "ledger_nonce_words_reclaimed_total",
				Help: "Count of expired nonce bitmap words reclaimed.",
			}),
		}
		prometheus.MustRegister(
			ledgerRegistry.nonceCommits,
			ledgerRegistry.saltRotations,
			ledgerRegistry.saltsInvalid,
			ledgerRegistry.batches,
			ledgerRegistry.batchIntents,
			ledgerRegistry.wordsReclaimed,
		)
	})
	return ledgerRegistry
}

func (m *LedgerMetrics) ObserveNonceCommit(outcome string) {
	if m == nil {
		return
	}
	if outcome == "" {
		outcome = "unknown"
	}
	m.nonceCommits.WithLabelValues(outcome).Inc()
}

func (m *LedgerMetrics) ObserveSaltRotation() {
	if m == nil {
		return
	}
	m.saltRotations.Inc()
}

func (m *LedgerMetrics) ObserveSaltsInvalidated(count int) {
	if m == nil || count <= 0 {
		return
	}
	m.saltsInvalid.Add(float64(count))
}

func (m *LedgerMetrics) ObserveBatch(outcome string, intents int) {
	if m == nil {
		return
	}
	if outcome == "" {
		outcome = "unknown"
	}
	m.batches.WithLabelValues(outcome).Inc()
	m.batchIntents.Observe(float64(intents))
}

func (m *LedgerMetrics) ObserveWordsReclaimed(count int) {
	if m == nil || count <= 0 {
		return
	}
	m.wordsReclaimed.Add(float64(count))
}
