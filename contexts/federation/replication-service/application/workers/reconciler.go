package workers

import (
	"context"
	"encoding/json"
	"log/slog"

	application "fedsync/contexts/federation/replication-service/application"
	"fedsync/contexts/federation/replication-service/application/commands"
	"fedsync/contexts/federation/replication-service/domain/entities"
	"fedsync/contexts/federation/replication-service/ports"
	contractsv1 "fedsync/contracts/gen/events/v1"
)

const defaultReconcilerConsumerGroup = "federation-reconciler-cg"

// Reconciler repairs mirrors by pulling snapshots from their origin. It runs
// on sequence gap notices and on a schedule over every mirror server.
type Reconciler struct {
	Subscriber         ports.EventSubscriber
	Store              ports.MirrorStore
	Peers              ports.PeerDirectory
	Transport          ports.PeerTransport
	Import             commands.ImportServerSnapshotUseCase
	ResetCursor        commands.ResetCursorUseCase
	MessagesPerChannel int
	ConsumerGroup      string
	Logger             *slog.Logger
}

func (r Reconciler) Start(ctx context.Context) error {
	group := r.ConsumerGroup
	if group == "" {
		group = defaultReconcilerConsumerGroup
	}
	return r.Subscriber.Subscribe(ctx, commands.SequenceGapTopic, group, r.HandleSequenceGap)
}

func (r Reconciler) HandleSequenceGap(ctx context.Context, event ports.EventEnvelope) error {
	logger := application.ResolveLogger(r.Logger)
	var notice contractsv1.SequenceGapNotice
	if err := json.Unmarshal(event.Data, &notice); err != nil {
		logger.Error("sequence gap notice decode failed",
			"event", "federation_reconcile_notice_decode_failed",
			"module", application.ModuleName,
			"layer", "worker",
			"event_id", event.EventID,
			"error", err.Error(),
		)
		return err
	}
	federationID, ok := entities.FederationIDFromStream(notice.StreamID)
	if !ok {
		logger.Warn("sequence gap on unsupported stream",
			"event", "federation_reconcile_stream_unsupported",
			"module", application.ModuleName,
			"layer", "worker",
			"origin_domain", notice.OriginDomain,
			"stream_id", notice.StreamID,
		)
		return nil
	}
	return r.ReconcileServer(ctx, notice.OriginDomain, federationID)
}

// RunOnce reconciles every mirror server. Failures are logged per server so one
// unreachable origin does not starve the rest.
func (r Reconciler) RunOnce(ctx context.Context) error {
	logger := application.ResolveLogger(r.Logger)
	servers, err := r.Store.ListMirrorServers(ctx)
	if err != nil {
		logger.Error("mirror server listing failed",
			"event", "federation_reconcile_list_failed",
			"module", application.ModuleName,
			"layer", "worker",
			"error", err.Error(),
		)
		return err
	}
	for _, server := range servers {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		_ = r.ReconcileServer(ctx, server.OriginDomain, server.FederationID)
	}
	return nil
}

// ReconcileServer pulls, imports, then moves the stream cursor forward to the
// position the snapshot was cut at.
func (r Reconciler) ReconcileServer(ctx context.Context, originDomain string, federationID string) error {
	logger := application.ResolveLogger(r.Logger)
	fail := func(stage string, err error) error {
		logger.Warn("mirror reconciliation failed",
			"event", "federation_reconcile_failed",
			"module", application.ModuleName,
			"layer", "worker",
			"origin_domain", originDomain,
			"federation_id", federationID,
			"stage", stage,
			"error", err.Error(),
		)
		return err
	}

	peer, err := r.Peers.PeerByDomain(ctx, originDomain)
	if err != nil {
		return fail("peer_lookup", err)
	}
	snapshot, err := r.Transport.FetchSnapshot(ctx, peer, federationID, r.MessagesPerChannel)
	if err != nil {
		return fail("fetch", err)
	}
	result, err := r.Import.Execute(ctx, commands.ImportServerSnapshotCommand{
		Snapshot:     snapshot,
		OriginDomain: peer.Domain,
	})
	if err != nil {
		return fail("import", err)
	}

	streamID := entities.ServerStreamID(federationID)
	if result.StreamID == streamID {
		reset, err := r.ResetCursor.Execute(ctx, commands.ResetCursorCommand{
			OriginDomain: peer.Domain,
			StreamID:     streamID,
			Sequence:     result.StreamSequence,
			ForwardOnly:  true,
		})
		if err != nil {
			return fail("cursor_reset", err)
		}
		logger.Info("mirror reconciled",
			"event", "federation_reconciled",
			"module", application.ModuleName,
			"layer", "worker",
			"origin_domain", peer.Domain,
			"federation_id", federationID,
			"stream_id", streamID,
			"sequence", reset.Cursor.LastAppliedSequence,
			"cursor_changed", reset.Changed,
		)
		return nil
	}

	logger.Info("mirror reconciled without stream position",
		"event", "federation_reconciled",
		"module", application.ModuleName,
		"layer", "worker",
		"origin_domain", peer.Domain,
		"federation_id", federationID,
	)
	return nil
}
