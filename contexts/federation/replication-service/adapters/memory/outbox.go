package memory

import (
	"context"
	"strings"
	"time"

	domainerrors "fedsync/contexts/federation/replication-service/domain/errors"
	"fedsync/contexts/federation/replication-service/ports"
)

// EnqueueStreamEvent holds the store lock while build runs, so build must not
// call back into the store except through NewID.
func (s *Store) EnqueueStreamEvent(
	_ context.Context,
	streamID string,
	build func(sequence int64) ([]ports.OutboxMessage, error),
) (int64, error) {
	streamID = strings.TrimSpace(streamID)
	if streamID == "" {
		return 0, domainerrors.ErrInvalidRequest
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.streamSequences[streamID] + 1
	messages, err := build(next)
	if err != nil {
		return 0, err
	}
	for _, message := range messages {
		if _, exists := s.outbox[message.OutboxID]; exists {
			return 0, domainerrors.ErrRepositoryInvariantBroke
		}
	}
	for _, message := range messages {
		message.Payload = append([]byte(nil), message.Payload...)
		s.outbox[message.OutboxID] = outboxRecord{message: message, status: outboxStatusPending}
		s.outboxOrder = append(s.outboxOrder, message.OutboxID)
	}
	s.streamSequences[streamID] = next
	return next, nil
}

func (s *Store) CurrentSequence(_ context.Context, streamID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.streamSequences[strings.TrimSpace(streamID)], nil
}

func (s *Store) ListPendingOutbox(_ context.Context, limit int) ([]ports.OutboxMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}
	messages := make([]ports.OutboxMessage, 0, limit)
	for _, id := range s.outboxOrder {
		record, ok := s.outbox[id]
		if !ok || record.status != outboxStatusPending {
			continue
		}
		messages = append(messages, record.message)
		if len(messages) >= limit {
			break
		}
	}
	return messages, nil
}

func (s *Store) MarkOutboxSent(_ context.Context, outboxID string, sentAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.outbox[outboxID]
	if !ok {
		return domainerrors.ErrRepositoryInvariantBroke
	}
	record.status = outboxStatusSent
	record.sentAt = sentAt.UTC()
	s.outbox[outboxID] = record
	return nil
}

func (s *Store) MarkOutboxRetry(_ context.Context, outboxID string, lastError string, failed bool, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.outbox[outboxID]
	if !ok {
		return domainerrors.ErrRepositoryInvariantBroke
	}
	record.message.RetryCount++
	record.message.LastError = lastError
	if failed {
		record.status = outboxStatusFailed
	}
	s.outbox[outboxID] = record
	return nil
}

// OutboxEvents returns every outbox row in enqueue order.
func (s *Store) OutboxEvents() []ports.OutboxMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events := make([]ports.OutboxMessage, 0, len(s.outboxOrder))
	for _, id := range s.outboxOrder {
		if record, ok := s.outbox[id]; ok {
			events = append(events, record.message)
		}
	}
	return events
}
