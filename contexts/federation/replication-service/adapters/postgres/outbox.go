package postgresadapter

import (
	"context"
	"strings"
	"time"

	domainerrors "fedsync/contexts/federation/replication-service/domain/errors"
	"fedsync/contexts/federation/replication-service/ports"

	"gorm.io/gorm"
)

const (
	outboxStatusPending = "pending"
	outboxStatusSent    = "sent"
	outboxStatusFailed  = "failed"
)

// EnqueueStreamEvent bumps the stream counter and writes the outbox rows in
// one transaction, so a sequence is never assigned without its deliveries.
func (r *Repository) EnqueueStreamEvent(
	ctx context.Context,
	streamID string,
	build func(sequence int64) ([]ports.OutboxMessage, error),
) (int64, error) {
	streamID = strings.TrimSpace(streamID)
	if streamID == "" {
		return 0, domainerrors.ErrInvalidRequest
	}

	var sequence int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Raw(`
			INSERT INTO federation_stream_sequences (stream_id, last_sequence)
			VALUES (?, 1)
			ON CONFLICT (stream_id)
			DO UPDATE SET last_sequence = federation_stream_sequences.last_sequence + 1
			RETURNING last_sequence`, streamID).
			Scan(&sequence).
			Error; err != nil {
			return err
		}

		messages, err := build(sequence)
		if err != nil {
			return err
		}
		if len(messages) == 0 {
			return nil
		}
		rows := make([]outboxModel, 0, len(messages))
		for _, message := range messages {
			rows = append(rows, outboxModel{
				OutboxID:   message.OutboxID,
				PeerDomain: message.PeerDomain,
				EventID:    message.EventID,
				EventType:  message.EventType,
				StreamID:   message.StreamID,
				Sequence:   message.Sequence,
				Payload:    message.Payload,
				Status:     outboxStatusPending,
				CreatedAt:  message.CreatedAt.UTC(),
				UpdatedAt:  message.CreatedAt.UTC(),
			})
		}
		if err := tx.Create(&rows).Error; err != nil {
			if isUniqueViolation(err) {
				return domainerrors.ErrRepositoryInvariantBroke
			}
			return err
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return sequence, nil
}

func (r *Repository) CurrentSequence(ctx context.Context, streamID string) (int64, error) {
	var rows []streamSequenceModel
	if err := r.db.WithContext(ctx).
		Where("stream_id = ?", strings.TrimSpace(streamID)).
		Limit(1).
		Find(&rows).
		Error; err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return rows[0].LastSequence, nil
}

func (r *Repository) ListPendingOutbox(ctx context.Context, limit int) ([]ports.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}

	var rows []outboxModel
	if err := r.db.WithContext(ctx).
		Where("status = ?", outboxStatusPending).
		Order("created_at ASC, sequence ASC").
		Limit(limit).
		Find(&rows).
		Error; err != nil {
		return nil, err
	}

	items := make([]ports.OutboxMessage, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toPort())
	}
	return items, nil
}

func (r *Repository) MarkOutboxSent(ctx context.Context, outboxID string, sentAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&outboxModel{}).
		Where("outbox_id = ?", outboxID).
		Updates(map[string]any{
			"status":     outboxStatusSent,
			"sent_at":    sentAt.UTC(),
			"updated_at": sentAt.UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrRepositoryInvariantBroke
	}
	return nil
}

func (r *Repository) MarkOutboxRetry(
	ctx context.Context,
	outboxID string,
	lastError string,
	failed bool,
	at time.Time,
) error {
	updates := map[string]any{
		"retry_count": gorm.Expr("retry_count + 1"),
		"last_error":  lastError,
		"updated_at":  at.UTC(),
	}
	if failed {
		updates["status"] = outboxStatusFailed
	}
	result := r.db.WithContext(ctx).
		Model(&outboxModel{}).
		Where("outbox_id = ?", outboxID).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrRepositoryInvariantBroke
	}
	return nil
}
