package promadapter

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ReplicationMetrics counts every classified replication outcome.
type ReplicationMetrics struct {
	EventsTotal          *prometheus.CounterVec
	SignatureFailures    prometheus.Counter
	SnapshotImports      *prometheus.CounterVec
	SnapshotItemsSkipped *prometheus.CounterVec
	OutboxDeliveries     *prometheus.CounterVec
}

// NewReplicationMetrics registers the counters on registry, or on the default
// registerer when registry is nil.
func NewReplicationMetrics(registry prometheus.Registerer) *ReplicationMetrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	return &ReplicationMetrics{
		EventsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fedsync_events_total",
			Help: "Inbound federation events by outcome",
		}, []string{"outcome"}),
		SignatureFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "fedsync_signature_failures_total",
			Help: "Inbound requests rejected by signature verification",
		}),
		SnapshotImports: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fedsync_snapshot_imports_total",
			Help: "Snapshot imports by result",
		}, []string{"result"}),
		SnapshotItemsSkipped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fedsync_snapshot_items_skipped_total",
			Help: "Snapshot channels and messages skipped during import",
		}, []string{"kind"}),
		OutboxDeliveries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fedsync_outbox_deliveries_total",
			Help: "Outbound event delivery attempts by result",
		}, []string{"result"}),
	}
}

func (m *ReplicationMetrics) ObserveEvent(outcome string) {
	m.EventsTotal.WithLabelValues(outcome).Inc()
}

func (m *ReplicationMetrics) ObserveSignatureFailure() {
	m.SignatureFailures.Inc()
}

func (m *ReplicationMetrics) ObserveSnapshotImport(result string) {
	m.SnapshotImports.WithLabelValues(result).Inc()
}

func (m *ReplicationMetrics) ObserveSnapshotItemSkipped(kind string) {
	m.SnapshotItemsSkipped.WithLabelValues(kind).Inc()
}

func (m *ReplicationMetrics) ObserveOutboxDelivery(result string) {
	m.OutboxDeliveries.WithLabelValues(result).Inc()
}
