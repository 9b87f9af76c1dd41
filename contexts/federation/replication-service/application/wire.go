package application

import (
	"encoding/json"
	"strings"
	"time"

	"fedsync/contexts/federation/replication-service/domain/entities"
	domainerrors "fedsync/contexts/federation/replication-service/domain/errors"
	federationv1 "fedsync/contracts/gen/federation/v1"
)

// DecodeEvent turns a wire event into the typed union. Unknown kinds are
// ErrUnknownEventType; everything else that does not parse is malformed.
func DecodeEvent(wire federationv1.Event) (entities.Event, error) {
	if wire.Version != 0 && wire.Version != federationv1.EventVersion {
		return entities.Event{}, domainerrors.Malformed("unsupported event version")
	}
	eventType := entities.EventType(strings.TrimSpace(wire.EventType))
	if !eventType.Known() {
		return entities.Event{}, domainerrors.ErrUnknownEventType
	}
	if len(wire.Data) == 0 || string(wire.Data) == "null" {
		return entities.Event{}, domainerrors.Malformed("event data is required")
	}

	var (
		payload entities.EventPayload
		err     error
	)
	switch eventType {
	case entities.EventTypeServerUpsert:
		payload, err = decodeServerUpsert(wire.Data)
	case entities.EventTypeChannelUpsert:
		payload, err = decodeChannelUpsert(wire.Data)
	case entities.EventTypeMessageCreate:
		payload, err = decodeMessageCreate(wire.Data, wire.OriginDomain)
	case entities.EventTypeServerRemove:
		payload, err = decodeServerRemove(wire.Data)
	}
	if err != nil {
		return entities.Event{}, err
	}

	event := entities.Event{
		EventID:      strings.TrimSpace(wire.EventID),
		OriginDomain: entities.NormalizeDomain(wire.OriginDomain),
		StreamID:     strings.TrimSpace(wire.StreamID),
		Sequence:     wire.Sequence,
		Payload:      payload,
	}
	if err := event.Validate(); err != nil {
		return entities.Event{}, err
	}
	return event, nil
}

// EncodeEvent is the inverse of DecodeEvent, used by the origin side.
func EncodeEvent(event entities.Event, data any) (federationv1.Event, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return federationv1.Event{}, err
	}
	return federationv1.Event{
		Version:      federationv1.EventVersion,
		EventID:      event.EventID,
		EventType:    string(event.Payload.EventType()),
		OriginDomain: event.OriginDomain,
		StreamID:     event.StreamID,
		Sequence:     event.Sequence,
		Data:         raw,
	}, nil
}

func decodeServerUpsert(raw json.RawMessage) (entities.EventPayload, error) {
	var data federationv1.ServerUpsertData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, domainerrors.Malformed("server.upsert data: " + err.Error())
	}
	server, err := ServerAttrsFromWire(data.Server)
	if err != nil {
		return nil, err
	}
	channels := make([]entities.ChannelUpsertItem, 0, len(data.Channels))
	for _, channel := range data.Channels {
		item, err := ChannelItemFromWire(channel)
		if err != nil {
			return nil, err
		}
		channels = append(channels, item)
	}
	return entities.ServerUpsert{
		FederationID: strings.TrimSpace(data.Server.ID),
		Server:       server,
		Channels:     channels,
	}, nil
}

func decodeChannelUpsert(raw json.RawMessage) (entities.EventPayload, error) {
	var data federationv1.ChannelUpsertData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, domainerrors.Malformed("channel.upsert data: " + err.Error())
	}
	server, err := ServerAttrsFromWire(data.Server)
	if err != nil {
		return nil, err
	}
	channel, err := ChannelItemFromWire(data.Channel)
	if err != nil {
		return nil, err
	}
	return entities.ChannelUpsert{
		FederationID: strings.TrimSpace(data.Server.ID),
		Server:       server,
		Channel:      channel,
	}, nil
}

func decodeMessageCreate(raw json.RawMessage, originDomain string) (entities.EventPayload, error) {
	var data federationv1.MessageCreateData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, domainerrors.Malformed("message.create data: " + err.Error())
	}
	server, err := ServerAttrsFromWire(data.Server)
	if err != nil {
		return nil, err
	}
	channel, err := ChannelItemFromWire(data.Channel)
	if err != nil {
		return nil, err
	}
	federatedSource, sender, attrs, err := MessageFromWire(data.Message, originDomain)
	if err != nil {
		return nil, err
	}
	return entities.MessageCreate{
		FederationID:    strings.TrimSpace(data.Server.ID),
		Server:          server,
		Channel:         channel,
		FederatedSource: federatedSource,
		Sender:          sender,
		Message:         attrs,
	}, nil
}

func decodeServerRemove(raw json.RawMessage) (entities.EventPayload, error) {
	var data federationv1.ServerRemoveData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, domainerrors.Malformed("server.remove data: " + err.Error())
	}
	return entities.ServerRemove{FederationID: strings.TrimSpace(data.Server.ID)}, nil
}

func ServerAttrsFromWire(data federationv1.ServerData) (entities.ServerAttrs, error) {
	if strings.TrimSpace(data.ID) == "" {
		return entities.ServerAttrs{}, domainerrors.Malformed("server.id is required")
	}
	attrs := entities.ServerAttrs{
		Name:        data.Name,
		Description: data.Description,
		IsPublic:    data.IsPublic,
		MemberCount: data.MemberCount,
	}
	if err := attrs.Validate(); err != nil {
		return entities.ServerAttrs{}, err
	}
	return attrs, nil
}

func ChannelItemFromWire(data federationv1.ChannelData) (entities.ChannelUpsertItem, error) {
	if strings.TrimSpace(data.ID) == "" {
		return entities.ChannelUpsertItem{}, domainerrors.Malformed("channel.id is required")
	}
	return entities.ChannelUpsertItem{
		FederatedSource: strings.TrimSpace(data.ID),
		Attrs: entities.ChannelAttrs{
			Name:        data.Name,
			Description: data.Description,
			Topic:       data.Topic,
			Position:    data.Position,
		},
	}, nil
}

// MessageFromWire validates one message item. Snapshot import skips items that fail here.
func MessageFromWire(
	data federationv1.MessageData,
	originDomain string,
) (string, entities.SenderDescriptor, entities.MessageAttrs, error) {
	federatedSource := strings.TrimSpace(data.ID)
	if federatedSource == "" {
		return "", entities.SenderDescriptor{}, entities.MessageAttrs{}, domainerrors.Malformed("message.id is required")
	}
	if data.Sender == nil {
		return "", entities.SenderDescriptor{}, entities.MessageAttrs{}, domainerrors.Malformed("message.sender is required")
	}
	sender, err := entities.NewSenderDescriptor(data.Sender.Handle, data.Sender.Username, data.Sender.Domain)
	if err != nil {
		return "", entities.SenderDescriptor{}, entities.MessageAttrs{}, err
	}

	var sentAt time.Time
	if raw := strings.TrimSpace(data.InsertedAt); raw != "" {
		sentAt, err = time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return "", entities.SenderDescriptor{}, entities.MessageAttrs{}, domainerrors.Malformed("message.inserted_at is not RFC3339")
		}
	}

	attrs := entities.MessageAttrs{
		Content:       data.Content,
		MessageType:   data.MessageType,
		MediaURLs:     data.MediaURLs,
		MediaMetadata: data.MediaMetadata,
		OriginDomain:  entities.NormalizeDomain(originDomain),
		SentAt:        sentAt,
	}
	if err := attrs.Validate(); err != nil {
		return "", entities.SenderDescriptor{}, entities.MessageAttrs{}, err
	}
	return federatedSource, sender, attrs, nil
}

func ServerToWire(server entities.Server) federationv1.ServerData {
	return federationv1.ServerData{
		ID:          server.FederationIDOrLocal(),
		Name:        server.Name,
		Description: server.Description,
		IsPublic:    server.IsPublic,
		MemberCount: server.MemberCount,
	}
}

func ChannelToWire(channel entities.Channel) federationv1.ChannelData {
	id := channel.ChannelID
	if channel.IsFederatedMirror {
		id = channel.FederatedSource
	}
	return federationv1.ChannelData{
		ID:          id,
		Name:        channel.Name,
		Description: channel.Description,
		Topic:       channel.Topic,
		Position:    channel.Position,
	}
}

// MessageToWire renders a local message; wireChannelID is the id peers know its channel by.
func MessageToWire(message entities.Message, wireChannelID string) federationv1.MessageData {
	id := message.MessageID
	if message.IsFederatedMirror {
		id = message.FederatedSource
	}
	out := federationv1.MessageData{
		ID:            id,
		ChannelID:     wireChannelID,
		Content:       message.Content,
		MessageType:   message.MessageType,
		MediaURLs:     append([]string(nil), message.MediaURLs...),
		MediaMetadata: message.MediaMetadata,
		Sender: &federationv1.SenderData{
			Handle:   message.Sender.Handle,
			Username: message.Sender.Username,
			Domain:   message.Sender.Domain,
		},
	}
	if !message.SentAt.IsZero() {
		out.InsertedAt = message.SentAt.UTC().Format(time.RFC3339Nano)
	}
	return out
}
