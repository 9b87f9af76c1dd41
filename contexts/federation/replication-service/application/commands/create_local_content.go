package commands

import (
	"context"
	"log/slog"
	"strings"
	"time"

	application "fedsync/contexts/federation/replication-service/application"
	"fedsync/contexts/federation/replication-service/domain/entities"
	domainerrors "fedsync/contexts/federation/replication-service/domain/errors"
	"fedsync/contexts/federation/replication-service/ports"
)

// CreateLocalContentUseCase authors servers, channels and messages owned by
// this instance. Mirrors are never written here.
type CreateLocalContentUseCase struct {
	Local       ports.LocalContentRepository
	Clock       ports.Clock
	LocalDomain string
	Logger      *slog.Logger
}

func (u CreateLocalContentUseCase) CreateServer(ctx context.Context, attrs entities.ServerAttrs) (entities.Server, error) {
	if err := attrs.Validate(); err != nil {
		return entities.Server{}, domainerrors.ErrInvalidRequest
	}
	server, err := u.Local.CreateLocalServer(ctx, attrs, u.now())
	if err != nil {
		return entities.Server{}, err
	}
	application.ResolveLogger(u.Logger).Info("local server created",
		"event", "federation_local_server_created",
		"module", application.ModuleName,
		"layer", "application",
		"server_id", server.ServerID,
	)
	return server, nil
}

func (u CreateLocalContentUseCase) CreateChannel(ctx context.Context, serverID string, attrs entities.ChannelAttrs) (entities.Channel, error) {
	if strings.TrimSpace(serverID) == "" || strings.TrimSpace(attrs.Name) == "" {
		return entities.Channel{}, domainerrors.ErrInvalidRequest
	}
	server, err := u.Local.GetServer(ctx, serverID)
	if err != nil {
		return entities.Channel{}, err
	}
	if server.IsFederatedMirror {
		return entities.Channel{}, domainerrors.ErrNotLocalServer
	}
	return u.Local.CreateLocalChannel(ctx, serverID, attrs, u.now())
}

// CreateMessage stores a message authored by a local user; the sender domain
// defaults to this instance.
func (u CreateLocalContentUseCase) CreateMessage(
	ctx context.Context,
	channelID string,
	username string,
	attrs entities.MessageAttrs,
) (entities.Message, error) {
	sender, err := entities.NewSenderDescriptor("", username, u.LocalDomain)
	if err != nil {
		return entities.Message{}, domainerrors.ErrInvalidRequest
	}
	if err := attrs.Validate(); err != nil {
		return entities.Message{}, domainerrors.ErrInvalidRequest
	}
	channel, err := u.Local.GetChannel(ctx, channelID)
	if err != nil {
		return entities.Message{}, err
	}
	if channel.IsFederatedMirror {
		return entities.Message{}, domainerrors.ErrNotLocalServer
	}
	attrs.OriginDomain = entities.NormalizeDomain(u.LocalDomain)
	return u.Local.CreateLocalMessage(ctx, channelID, sender, attrs, u.now())
}

func (u CreateLocalContentUseCase) now() time.Time {
	if u.Clock == nil {
		return time.Now().UTC()
	}
	return u.Clock.Now().UTC()
}
