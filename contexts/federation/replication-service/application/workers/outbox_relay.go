package workers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	application "fedsync/contexts/federation/replication-service/application"
	domainerrors "fedsync/contexts/federation/replication-service/domain/errors"
	"fedsync/contexts/federation/replication-service/ports"
)

const (
	defaultOutboxBatchSize   = 100
	defaultOutboxMaxAttempts = 10
)

// OutboxRelay pushes pending events to peers in stream order. A failed row
// holds back later rows of the same (peer, stream) until the next cycle.
type OutboxRelay struct {
	Outbox      ports.OutboxRepository
	Peers       ports.PeerDirectory
	Transport   ports.PeerTransport
	Clock       ports.Clock
	Metrics     ports.ReplicationMetrics
	BatchSize   int
	MaxAttempts int
	Logger      *slog.Logger
}

func (r OutboxRelay) RunOnce(ctx context.Context) error {
	logger := application.ResolveLogger(r.Logger)
	metrics := application.ResolveMetrics(r.Metrics)
	limit := r.BatchSize
	if limit <= 0 {
		limit = defaultOutboxBatchSize
	}

	pending, err := r.Outbox.ListPendingOutbox(ctx, limit)
	if err != nil {
		logger.Error("outbox list pending failed",
			"event", "federation_outbox_list_failed",
			"module", application.ModuleName,
			"layer", "worker",
			"error", err.Error(),
		)
		return err
	}

	now := time.Now().UTC()
	if r.Clock != nil {
		now = r.Clock.Now().UTC()
	}

	blocked := make(map[string]bool)
	sent := 0
	for _, message := range pending {
		lane := message.PeerDomain + "|" + message.StreamID
		if blocked[lane] {
			continue
		}

		result, deliveryErr := r.deliver(ctx, message)
		metrics.ObserveOutboxDelivery(result)
		switch result {
		case "delivered", "gap_reported":
			if err := r.Outbox.MarkOutboxSent(ctx, message.OutboxID, now); err != nil {
				logger.Error("outbox mark sent failed",
					"event", "federation_outbox_mark_sent_failed",
					"module", application.ModuleName,
					"layer", "worker",
					"outbox_id", message.OutboxID,
					"error", err.Error(),
				)
				return err
			}
			sent++
		default:
			failed := result == "rejected" || message.RetryCount+1 >= r.maxAttempts()
			if !failed {
				blocked[lane] = true
			}
			logger.Warn("outbox delivery failed",
				"event", "federation_outbox_delivery_failed",
				"module", application.ModuleName,
				"layer", "worker",
				"outbox_id", message.OutboxID,
				"peer_domain", message.PeerDomain,
				"stream_id", message.StreamID,
				"sequence", message.Sequence,
				"retry_count", message.RetryCount+1,
				"failed", failed,
				"error", deliveryErr.Error(),
			)
			if err := r.Outbox.MarkOutboxRetry(ctx, message.OutboxID, deliveryErr.Error(), failed, now); err != nil {
				return err
			}
		}
	}

	if sent > 0 {
		logger.Info("outbox relay cycle completed",
			"event", "federation_outbox_relay_completed",
			"module", application.ModuleName,
			"layer", "worker",
			"sent_count", sent,
		)
	}
	return nil
}

// deliver classifies one attempt as delivered, gap_reported, rejected or retry.
func (r OutboxRelay) deliver(ctx context.Context, message ports.OutboxMessage) (string, error) {
	peer, err := r.Peers.PeerByDomain(ctx, message.PeerDomain)
	if err != nil {
		if errors.Is(err, domainerrors.ErrPeerUnknown) {
			return "rejected", err
		}
		return "retry", err
	}

	status, err := r.Transport.DeliverEvent(ctx, peer, message.Payload)
	if err != nil {
		return "retry", err
	}
	switch {
	case status >= 200 && status < 300:
		return "delivered", nil
	case status == http.StatusConflict:
		// The peer detected a gap and will reconcile through a snapshot pull.
		return "gap_reported", nil
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return "rejected", fmt.Errorf("peer %s rejected event: status %d", peer.Domain, status)
	default:
		return "retry", fmt.Errorf("peer %s answered status %d", peer.Domain, status)
	}
}

func (r OutboxRelay) maxAttempts() int {
	if r.MaxAttempts <= 0 {
		return defaultOutboxMaxAttempts
	}
	return r.MaxAttempts
}
