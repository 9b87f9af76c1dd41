package commands

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	application "fedsync/contexts/federation/replication-service/application"
	"fedsync/contexts/federation/replication-service/domain/entities"
	domainerrors "fedsync/contexts/federation/replication-service/domain/errors"
	"fedsync/contexts/federation/replication-service/domain/services"
	"fedsync/contexts/federation/replication-service/ports"
	contractsv1 "fedsync/contracts/gen/events/v1"
	federationv1 "fedsync/contracts/gen/federation/v1"
)

const (
	SequenceGapTopic     = "federation.sequence_gap"
	sequenceGapEventType = "federation.sequence_gap"
)

type ReceiveEventCommand struct {
	Event federationv1.Event
	// AuthenticatedDomain is the peer that signed the delivery. When set, the
	// event must originate from it.
	AuthenticatedDomain string
}

// ReceiveEventUseCase is the event applier: classify against the ledger, then
// apply the typed mutation and advance the cursor under the stream lock.
type ReceiveEventUseCase struct {
	Store          ports.MirrorStore
	Ledger         ports.SequenceLedger
	Locker         ports.StreamLocker
	Clock          ports.Clock
	IDGenerator    ports.IDGenerator
	Publisher      ports.EventPublisher
	Metrics        ports.ReplicationMetrics
	AcceptBaseline bool
	Logger         *slog.Logger
}

func (u ReceiveEventUseCase) Execute(ctx context.Context, cmd ReceiveEventCommand) (entities.ReceiveResult, error) {
	logger := application.ResolveLogger(u.Logger)
	metrics := application.ResolveMetrics(u.Metrics)

	event, err := application.DecodeEvent(cmd.Event)
	if err != nil {
		outcome := "malformed"
		if errors.Is(err, domainerrors.ErrUnknownEventType) {
			outcome = "unknown_event_type"
		}
		metrics.ObserveEvent(outcome)
		logger.Warn("federation event rejected",
			"event", "federation_event_rejected",
			"module", application.ModuleName,
			"layer", "application",
			"origin_domain", cmd.Event.OriginDomain,
			"stream_id", cmd.Event.StreamID,
			"sequence", cmd.Event.Sequence,
			"event_id", cmd.Event.EventID,
			"event_type", cmd.Event.EventType,
			"error", err.Error(),
		)
		return entities.ReceiveResult{}, err
	}

	if authenticated := entities.NormalizeDomain(cmd.AuthenticatedDomain); authenticated != "" &&
		authenticated != event.OriginDomain {
		metrics.ObserveEvent("unauthorized")
		logger.Warn("federation event origin does not match signer",
			"event", "federation_event_origin_mismatch",
			"module", application.ModuleName,
			"layer", "application",
			"origin_domain", event.OriginDomain,
			"peer_domain", authenticated,
			"event_id", event.EventID,
		)
		return entities.ReceiveResult{}, domainerrors.ErrUnauthorized
	}

	var result entities.ReceiveResult
	err = u.Locker.WithStreamLock(ctx, event.Key(), func(ctx context.Context) error {
		var applyErr error
		result, applyErr = u.applyLocked(ctx, event)
		return applyErr
	})
	if err != nil {
		var gapErr *domainerrors.SequenceGapError
		switch {
		case errors.As(err, &gapErr):
			metrics.ObserveEvent("sequence_gap")
			logger.Warn("federation sequence gap",
				"event", "federation_sequence_gap",
				"module", application.ModuleName,
				"layer", "application",
				"origin_domain", event.OriginDomain,
				"stream_id", event.StreamID,
				"expected_sequence", gapErr.Expected,
				"sequence", event.Sequence,
				"event_id", event.EventID,
			)
			u.publishGap(ctx, event, gapErr)
		case errors.Is(err, domainerrors.ErrMalformedPayload), errors.Is(err, domainerrors.ErrOriginMismatch):
			metrics.ObserveEvent("rejected")
			logger.Warn("federation event mutation rejected",
				"event", "federation_event_mutation_rejected",
				"module", application.ModuleName,
				"layer", "application",
				"origin_domain", event.OriginDomain,
				"stream_id", event.StreamID,
				"sequence", event.Sequence,
				"event_id", event.EventID,
				"error", err.Error(),
			)
		default:
			metrics.ObserveEvent("error")
			logger.Error("federation event apply failed",
				"event", "federation_event_apply_failed",
				"module", application.ModuleName,
				"layer", "application",
				"origin_domain", event.OriginDomain,
				"stream_id", event.StreamID,
				"sequence", event.Sequence,
				"event_id", event.EventID,
				"error", err.Error(),
			)
		}
		return entities.ReceiveResult{}, err
	}

	metrics.ObserveEvent(string(result.Outcome))
	if result.Outcome == entities.EventOutcomeApplied {
		logger.Info("federation event applied",
			"event", "federation_event_applied",
			"module", application.ModuleName,
			"layer", "application",
			"origin_domain", event.OriginDomain,
			"stream_id", event.StreamID,
			"sequence", event.Sequence,
			"event_id", event.EventID,
			"event_type", string(event.Payload.EventType()),
		)
	} else {
		logger.Debug("federation event ignored",
			"event", "federation_event_"+string(result.Outcome),
			"module", application.ModuleName,
			"layer", "application",
			"origin_domain", event.OriginDomain,
			"stream_id", event.StreamID,
			"sequence", event.Sequence,
			"last_applied_sequence", result.LastAppliedSequence,
			"event_id", event.EventID,
		)
	}
	return result, nil
}

func (u ReceiveEventUseCase) applyLocked(ctx context.Context, event entities.Event) (entities.ReceiveResult, error) {
	result := entities.ReceiveResult{
		EventID:      event.EventID,
		OriginDomain: event.OriginDomain,
		StreamID:     event.StreamID,
		Sequence:     event.Sequence,
	}

	cursor, found, err := u.Ledger.GetCursor(ctx, event.Key())
	if err != nil {
		return entities.ReceiveResult{}, err
	}
	var current *entities.SequenceCursor
	if found {
		current = &cursor
		result.LastAppliedSequence = cursor.LastAppliedSequence
	}

	decision, err := services.ClassifySequence(event.Key(), current, event.EventID, event.Sequence, u.AcceptBaseline)
	if err != nil {
		return entities.ReceiveResult{}, err
	}
	switch decision {
	case services.SequenceDecisionDuplicate:
		result.Outcome = entities.EventOutcomeDuplicate
		return result, nil
	case services.SequenceDecisionStale:
		result.Outcome = entities.EventOutcomeStale
		return result, nil
	}

	now := u.now()
	if err := ApplyPayload(ctx, u.Store, event.OriginDomain, event.Payload, now); err != nil {
		return entities.ReceiveResult{}, err
	}

	next := entities.SequenceCursor{OriginDomain: event.OriginDomain, StreamID: event.StreamID}
	if found {
		next = cursor.Clone()
	}
	next = next.Advance(event.Sequence, event.EventID, now)
	if err := u.Ledger.SaveCursor(ctx, next, cursor.LastAppliedSequence, found); err != nil {
		if errors.Is(err, domainerrors.ErrCursorConflict) {
			// Another writer advanced the stream first; the mutation was an idempotent upsert.
			result.Outcome = entities.EventOutcomeDuplicate
			return result, nil
		}
		return entities.ReceiveResult{}, err
	}

	result.Outcome = entities.EventOutcomeApplied
	result.LastAppliedSequence = event.Sequence
	return result, nil
}

func (u ReceiveEventUseCase) publishGap(ctx context.Context, event entities.Event, gapErr *domainerrors.SequenceGapError) {
	if u.Publisher == nil {
		return
	}
	data, err := json.Marshal(contractsv1.SequenceGapNotice{
		OriginDomain:     event.OriginDomain,
		StreamID:         event.StreamID,
		ExpectedSequence: gapErr.Expected,
		ReceivedSequence: gapErr.Received,
		EventID:          event.EventID,
	})
	if err != nil {
		return
	}
	noticeID := event.EventID + ":gap"
	if u.IDGenerator != nil {
		if id, idErr := u.IDGenerator.NewID(ctx); idErr == nil {
			noticeID = id
		}
	}
	envelope := ports.EventEnvelope{
		EventID:          noticeID,
		EventType:        sequenceGapEventType,
		OccurredAt:       u.now(),
		SourceService:    "replication-service",
		SchemaVersion:    1,
		PartitionKeyPath: "/stream_id",
		PartitionKey:     event.Key().String(),
		Data:             data,
	}
	if err := u.Publisher.Publish(ctx, SequenceGapTopic, envelope); err != nil {
		application.ResolveLogger(u.Logger).Error("sequence gap notice publish failed",
			"event", "federation_sequence_gap_publish_failed",
			"module", application.ModuleName,
			"layer", "application",
			"origin_domain", event.OriginDomain,
			"stream_id", event.StreamID,
			"error", err.Error(),
		)
	}
}

func (u ReceiveEventUseCase) now() time.Time {
	if u.Clock == nil {
		return time.Now().UTC()
	}
	return u.Clock.Now().UTC()
}

// ApplyPayload dispatches one typed mutation to the mirror store.
func ApplyPayload(
	ctx context.Context,
	store ports.MirrorStore,
	originDomain string,
	payload entities.EventPayload,
	now time.Time,
) error {
	switch p := payload.(type) {
	case entities.ServerUpsert:
		server, err := store.UpsertMirrorServer(ctx, p.FederationID, originDomain, p.Server, now)
		if err != nil {
			return err
		}
		for _, channel := range p.Channels {
			if _, err := store.UpsertMirrorChannel(ctx, server, channel.FederatedSource, channel.Attrs, now); err != nil {
				return err
			}
		}
		return nil
	case entities.ChannelUpsert:
		server, err := store.UpsertMirrorServer(ctx, p.FederationID, originDomain, p.Server, now)
		if err != nil {
			return err
		}
		_, err = store.UpsertMirrorChannel(ctx, server, p.Channel.FederatedSource, p.Channel.Attrs, now)
		return err
	case entities.MessageCreate:
		server, err := store.UpsertMirrorServer(ctx, p.FederationID, originDomain, p.Server, now)
		if err != nil {
			return err
		}
		channel, err := store.UpsertMirrorChannel(ctx, server, p.Channel.FederatedSource, p.Channel.Attrs, now)
		if err != nil {
			return err
		}
		_, err = store.UpsertMirrorMessage(ctx, channel, p.FederatedSource, p.Sender, p.Message, now)
		return err
	case entities.ServerRemove:
		_, err := store.RemoveMirrorServer(ctx, p.FederationID, originDomain)
		return err
	default:
		return domainerrors.ErrUnknownEventType
	}
}
