package queries

import (
	"context"
	"log/slog"
	"strings"

	application "fedsync/contexts/federation/replication-service/application"
	domainerrors "fedsync/contexts/federation/replication-service/domain/errors"
	"fedsync/contexts/federation/replication-service/ports"
	federationv1 "fedsync/contracts/gen/federation/v1"
)

const (
	DefaultMessagesPerChannel = 50
	MaxMessagesPerChannel     = 200
)

type BuildServerSnapshotQuery struct {
	ServerID           string
	MessagesPerChannel int
	// PublicOnly hides private servers, as if they did not exist.
	PublicOnly bool
}

// BuildServerSnapshotUseCase exports a local server with its channels and the
// newest messages of each channel.
type BuildServerSnapshotUseCase struct {
	Local     ports.LocalContentRepository
	Sequencer ports.StreamSequencer
	// DefaultMessagesPerChannel applies when the query does not set a limit.
	DefaultMessagesPerChannel int
	Logger                    *slog.Logger
}

func (u BuildServerSnapshotUseCase) Execute(ctx context.Context, query BuildServerSnapshotQuery) (federationv1.ServerSnapshot, error) {
	logger := application.ResolveLogger(u.Logger)
	if strings.TrimSpace(query.ServerID) == "" {
		return federationv1.ServerSnapshot{}, domainerrors.ErrInvalidRequest
	}

	server, err := u.Local.GetServer(ctx, query.ServerID)
	if err != nil {
		return federationv1.ServerSnapshot{}, err
	}
	if server.IsFederatedMirror {
		return federationv1.ServerSnapshot{}, domainerrors.ErrNotLocalServer
	}
	if query.PublicOnly && !server.IsPublic {
		return federationv1.ServerSnapshot{}, domainerrors.ErrServerNotFound
	}

	// The stream position is read before content so the snapshot covers every
	// event up to the reported sequence.
	var stream *federationv1.StreamPointer
	if u.Sequencer != nil {
		sequence, err := u.Sequencer.CurrentSequence(ctx, server.StreamID())
		if err != nil {
			return federationv1.ServerSnapshot{}, err
		}
		stream = &federationv1.StreamPointer{ID: server.StreamID(), Sequence: sequence}
	}

	channels, err := u.Local.ListChannels(ctx, server.ServerID)
	if err != nil {
		return federationv1.ServerSnapshot{}, err
	}

	limit := u.resolveLimit(query.MessagesPerChannel)
	snapshot := federationv1.ServerSnapshot{
		Version:  federationv1.SnapshotVersion,
		Server:   application.ServerToWire(server),
		Channels: make([]federationv1.ChannelData, 0, len(channels)),
		Messages: make([]federationv1.MessageData, 0),
		Stream:   stream,
	}
	for _, channel := range channels {
		channelWire := application.ChannelToWire(channel)
		snapshot.Channels = append(snapshot.Channels, channelWire)

		messages, err := u.Local.ListRecentMessages(ctx, channel.ChannelID, limit)
		if err != nil {
			return federationv1.ServerSnapshot{}, err
		}
		for _, message := range messages {
			snapshot.Messages = append(snapshot.Messages, application.MessageToWire(message, channelWire.ID))
		}
	}

	logger.Info("server snapshot built",
		"event", "federation_snapshot_built",
		"module", application.ModuleName,
		"layer", "application",
		"server_id", server.ServerID,
		"channels", len(snapshot.Channels),
		"messages", len(snapshot.Messages),
		"messages_per_channel", limit,
	)
	return snapshot, nil
}

func (u BuildServerSnapshotUseCase) resolveLimit(requested int) int {
	limit := requested
	if limit <= 0 {
		limit = u.DefaultMessagesPerChannel
	}
	if limit <= 0 {
		limit = DefaultMessagesPerChannel
	}
	if limit > MaxMessagesPerChannel {
		limit = MaxMessagesPerChannel
	}
	return limit
}
