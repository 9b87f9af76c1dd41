package commands

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	application "fedsync/contexts/federation/replication-service/application"
	"fedsync/contexts/federation/replication-service/domain/entities"
	domainerrors "fedsync/contexts/federation/replication-service/domain/errors"
	"fedsync/contexts/federation/replication-service/ports"
	federationv1 "fedsync/contracts/gen/federation/v1"
)

type ImportServerSnapshotCommand struct {
	Snapshot     federationv1.SnapshotEnvelope
	OriginDomain string
}

// ImportServerSnapshotUseCase writes a snapshot through the mirror store. It
// never reads or moves the sequence ledger.
type ImportServerSnapshotUseCase struct {
	Store   ports.MirrorStore
	Clock   ports.Clock
	Metrics ports.ReplicationMetrics
	Logger  *slog.Logger
}

func (u ImportServerSnapshotUseCase) Execute(
	ctx context.Context,
	cmd ImportServerSnapshotCommand,
) (entities.SnapshotImportResult, error) {
	logger := application.ResolveLogger(u.Logger)
	metrics := application.ResolveMetrics(u.Metrics)

	result, err := u.importSnapshot(ctx, logger, metrics, cmd)
	if err != nil {
		metrics.ObserveSnapshotImport("rejected")
		logger.Warn("snapshot import failed",
			"event", "federation_snapshot_import_failed",
			"module", application.ModuleName,
			"layer", "application",
			"origin_domain", cmd.OriginDomain,
			"federation_id", cmd.Snapshot.Server.ID,
			"error", err.Error(),
		)
		return entities.SnapshotImportResult{}, err
	}

	metrics.ObserveSnapshotImport("imported")
	logger.Info("snapshot imported",
		"event", "federation_snapshot_imported",
		"module", application.ModuleName,
		"layer", "application",
		"origin_domain", result.Server.OriginDomain,
		"federation_id", result.Server.FederationID,
		"channels_upserted", result.ChannelsUpserted,
		"messages_upserted", result.MessagesUpserted,
		"channels_skipped", result.ChannelsSkipped,
		"messages_skipped", result.MessagesSkipped,
	)
	return result, nil
}

func (u ImportServerSnapshotUseCase) importSnapshot(
	ctx context.Context,
	logger *slog.Logger,
	metrics ports.ReplicationMetrics,
	cmd ImportServerSnapshotCommand,
) (entities.SnapshotImportResult, error) {
	originDomain := entities.NormalizeDomain(cmd.OriginDomain)
	if originDomain == "" {
		return entities.SnapshotImportResult{}, domainerrors.ErrInvalidRequest
	}
	payload := cmd.Snapshot
	if payload.Version != federationv1.SnapshotVersion {
		return entities.SnapshotImportResult{}, domainerrors.ErrUnsupportedSnapshotVersion
	}
	serverAttrs, err := application.ServerAttrsFromWire(payload.Server)
	if err != nil {
		return entities.SnapshotImportResult{}, err
	}

	now := u.now()
	server, err := u.Store.UpsertMirrorServer(ctx, strings.TrimSpace(payload.Server.ID), originDomain, serverAttrs, now)
	if err != nil {
		return entities.SnapshotImportResult{}, err
	}
	result := entities.SnapshotImportResult{Server: server}
	if payload.Stream != nil {
		result.StreamID = payload.Stream.ID
		result.StreamSequence = payload.Stream.Sequence
	}

	channels := make(map[string]entities.Channel, len(payload.Channels))
	for index, raw := range payload.Channels {
		var item federationv1.ChannelData
		if err := json.Unmarshal(raw, &item); err != nil {
			result.ChannelsSkipped++
			u.skipped(logger, metrics, "channel", index, server, domainerrors.Malformed("channel item does not decode: "+err.Error()))
			continue
		}
		channelItem, err := application.ChannelItemFromWire(item)
		if err != nil {
			result.ChannelsSkipped++
			u.skipped(logger, metrics, "channel", index, server, err)
			continue
		}
		channel, err := u.Store.UpsertMirrorChannel(ctx, server, channelItem.FederatedSource, channelItem.Attrs, now)
		if err != nil {
			return entities.SnapshotImportResult{}, err
		}
		channels[channelItem.FederatedSource] = channel
		result.ChannelsUpserted++
	}

	for index, raw := range payload.Messages {
		var item federationv1.MessageData
		if err := json.Unmarshal(raw, &item); err != nil {
			result.MessagesSkipped++
			u.skipped(logger, metrics, "message", index, server, domainerrors.Malformed("message item does not decode: "+err.Error()))
			continue
		}
		channel, ok := channels[strings.TrimSpace(item.ChannelID)]
		if !ok {
			result.MessagesSkipped++
			u.skipped(logger, metrics, "message", index, server, domainerrors.Malformed("message.channel_id does not reference a snapshot channel"))
			continue
		}
		federatedSource, sender, attrs, err := application.MessageFromWire(item, originDomain)
		if err != nil {
			result.MessagesSkipped++
			u.skipped(logger, metrics, "message", index, server, err)
			continue
		}
		if _, err := u.Store.UpsertMirrorMessage(ctx, channel, federatedSource, sender, attrs, now); err != nil {
			return entities.SnapshotImportResult{}, err
		}
		result.MessagesUpserted++
	}
	return result, nil
}

func (u ImportServerSnapshotUseCase) skipped(
	logger *slog.Logger,
	metrics ports.ReplicationMetrics,
	kind string,
	index int,
	server entities.Server,
	err error,
) {
	metrics.ObserveSnapshotItemSkipped(kind)
	logger.Warn("snapshot item skipped",
		"event", "federation_snapshot_item_skipped",
		"module", application.ModuleName,
		"layer", "application",
		"origin_domain", server.OriginDomain,
		"federation_id", server.FederationID,
		"kind", kind,
		"index", index,
		"error", err.Error(),
	)
}

func (u ImportServerSnapshotUseCase) now() time.Time {
	if u.Clock == nil {
		return time.Now().UTC()
	}
	return u.Clock.Now().UTC()
}
