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

type PublishServerEventCommand struct {
	ServerID  string
	EventType entities.EventType
	ChannelID string
	MessageID string
}

type PublishServerEventResult struct {
	EventID  string
	StreamID string
	Sequence int64
	Peers    int
}

// PublishServerEventUseCase is the origin side of the protocol: it assigns the
// next stream sequence and enqueues one outbox row per configured peer.
type PublishServerEventUseCase struct {
	Local       ports.LocalContentRepository
	Outbox      ports.OutboxRepository
	Peers       ports.PeerDirectory
	Clock       ports.Clock
	IDGenerator ports.IDGenerator
	LocalDomain string
	Logger      *slog.Logger
}

func (u PublishServerEventUseCase) Execute(ctx context.Context, cmd PublishServerEventCommand) (PublishServerEventResult, error) {
	logger := application.ResolveLogger(u.Logger)
	localDomain := entities.NormalizeDomain(u.LocalDomain)
	if strings.TrimSpace(cmd.ServerID) == "" || localDomain == "" || !cmd.EventType.Known() {
		return PublishServerEventResult{}, domainerrors.ErrInvalidRequest
	}

	server, err := u.Local.GetServer(ctx, cmd.ServerID)
	if err != nil {
		return PublishServerEventResult{}, err
	}
	if server.IsFederatedMirror {
		return PublishServerEventResult{}, domainerrors.ErrNotLocalServer
	}

	data, payload, err := u.buildData(ctx, server, cmd)
	if err != nil {
		return PublishServerEventResult{}, err
	}
	peers, err := u.Peers.ListPeers(ctx)
	if err != nil {
		return PublishServerEventResult{}, err
	}
	eventID, err := u.IDGenerator.NewID(ctx)
	if err != nil {
		return PublishServerEventResult{}, err
	}

	now := u.now()
	streamID := server.StreamID()
	sequence, err := u.Outbox.EnqueueStreamEvent(ctx, streamID, func(sequence int64) ([]ports.OutboxMessage, error) {
		wire, err := application.EncodeEvent(entities.Event{
			EventID:      eventID,
			OriginDomain: localDomain,
			StreamID:     streamID,
			Sequence:     sequence,
			Payload:      payload,
		}, data)
		if err != nil {
			return nil, err
		}
		body, err := json.Marshal(wire)
		if err != nil {
			return nil, err
		}
		messages := make([]ports.OutboxMessage, 0, len(peers))
		for _, peer := range peers {
			outboxID, err := u.IDGenerator.NewID(ctx)
			if err != nil {
				return nil, err
			}
			messages = append(messages, ports.OutboxMessage{
				OutboxID:   outboxID,
				PeerDomain: peer.Domain,
				EventID:    eventID,
				EventType:  string(cmd.EventType),
				StreamID:   streamID,
				Sequence:   sequence,
				Payload:    body,
				CreatedAt:  now,
			})
		}
		return messages, nil
	})
	if err != nil {
		logger.Error("federation event enqueue failed",
			"event", "federation_event_enqueue_failed",
			"module", application.ModuleName,
			"layer", "application",
			"server_id", server.ServerID,
			"event_type", string(cmd.EventType),
			"error", err.Error(),
		)
		return PublishServerEventResult{}, err
	}

	logger.Info("federation event enqueued",
		"event", "federation_event_enqueued",
		"module", application.ModuleName,
		"layer", "application",
		"server_id", server.ServerID,
		"stream_id", streamID,
		"sequence", sequence,
		"event_id", eventID,
		"event_type", string(cmd.EventType),
		"peers", len(peers),
	)
	return PublishServerEventResult{
		EventID:  eventID,
		StreamID: streamID,
		Sequence: sequence,
		Peers:    len(peers),
	}, nil
}

func (u PublishServerEventUseCase) buildData(
	ctx context.Context,
	server entities.Server,
	cmd PublishServerEventCommand,
) (any, entities.EventPayload, error) {
	serverWire := application.ServerToWire(server)
	switch cmd.EventType {
	case entities.EventTypeServerUpsert:
		channels, err := u.Local.ListChannels(ctx, server.ServerID)
		if err != nil {
			return nil, nil, err
		}
		data := federationv1.ServerUpsertData{Server: serverWire}
		for _, channel := range channels {
			data.Channels = append(data.Channels, application.ChannelToWire(channel))
		}
		return data, entities.ServerUpsert{FederationID: serverWire.ID}, nil
	case entities.EventTypeChannelUpsert:
		channel, err := u.ownedChannel(ctx, server, cmd.ChannelID)
		if err != nil {
			return nil, nil, err
		}
		data := federationv1.ChannelUpsertData{Server: serverWire, Channel: application.ChannelToWire(channel)}
		return data, entities.ChannelUpsert{FederationID: serverWire.ID}, nil
	case entities.EventTypeMessageCreate:
		message, err := u.Local.GetMessage(ctx, cmd.MessageID)
		if err != nil {
			return nil, nil, err
		}
		channel, err := u.ownedChannel(ctx, server, message.ChannelID)
		if err != nil {
			return nil, nil, err
		}
		channelWire := application.ChannelToWire(channel)
		data := federationv1.MessageCreateData{
			Server:  serverWire,
			Channel: channelWire,
			Message: application.MessageToWire(message, channelWire.ID),
		}
		return data, entities.MessageCreate{FederationID: serverWire.ID}, nil
	case entities.EventTypeServerRemove:
		data := federationv1.ServerRemoveData{Server: federationv1.ServerRef{ID: serverWire.ID}}
		return data, entities.ServerRemove{FederationID: serverWire.ID}, nil
	default:
		return nil, nil, domainerrors.ErrUnknownEventType
	}
}

func (u PublishServerEventUseCase) ownedChannel(ctx context.Context, server entities.Server, channelID string) (entities.Channel, error) {
	if strings.TrimSpace(channelID) == "" {
		return entities.Channel{}, domainerrors.ErrInvalidRequest
	}
	channel, err := u.Local.GetChannel(ctx, channelID)
	if err != nil {
		return entities.Channel{}, err
	}
	if channel.ServerID != server.ServerID {
		return entities.Channel{}, domainerrors.ErrChannelNotFound
	}
	return channel, nil
}

func (u PublishServerEventUseCase) now() time.Time {
	if u.Clock == nil {
		return time.Now().UTC()
	}
	return u.Clock.Now().UTC()
}
