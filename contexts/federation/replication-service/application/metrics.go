package application

import "fedsync/contexts/federation/replication-service/ports"

// ResolveMetrics returns a no-op recorder when metrics are not wired.
func ResolveMetrics(metrics ports.ReplicationMetrics) ports.ReplicationMetrics {
	if metrics != nil {
		return metrics
	}
	return noopMetrics{}
}

type noopMetrics struct{}

func (noopMetrics) ObserveEvent(string)               {}
func (noopMetrics) ObserveSignatureFailure()          {}
func (noopMetrics) ObserveSnapshotImport(string)      {}
func (noopMetrics) ObserveSnapshotItemSkipped(string) {}
func (noopMetrics) ObserveOutboxDelivery(string)      {}
