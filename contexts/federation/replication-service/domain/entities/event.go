package entities

import (
	"strings"

	domainerrors "fedsync/contexts/federation/replication-service/domain/errors"
)

type EventType string

const (
	EventTypeServerUpsert  EventType = "server.upsert"
	EventTypeChannelUpsert EventType = "channel.upsert"
	EventTypeMessageCreate EventType = "message.create"
	EventTypeServerRemove  EventType = "server.remove"
)

func (t EventType) Known() bool {
	switch t {
	case EventTypeServerUpsert, EventTypeChannelUpsert, EventTypeMessageCreate, EventTypeServerRemove:
		return true
	default:
		return false
	}
}

// EventPayload is the closed set of mutations an event can carry.
type EventPayload interface {
	EventType() EventType
	FederationServerID() string
	sealed()
}

// ServerUpsert creates or refreshes a mirror server and, optionally, its channels.
type ServerUpsert struct {
	FederationID string
	Server       ServerAttrs
	Channels     []ChannelUpsertItem
}

type ChannelUpsertItem struct {
	FederatedSource string
	Attrs           ChannelAttrs
}

type ChannelUpsert struct {
	FederationID string
	Server       ServerAttrs
	Channel      ChannelUpsertItem
}

type MessageCreate struct {
	FederationID    string
	Server          ServerAttrs
	Channel         ChannelUpsertItem
	FederatedSource string
	Sender          SenderDescriptor
	Message         MessageAttrs
}

type ServerRemove struct {
	FederationID string
}

func (ServerUpsert) EventType() EventType  { return EventTypeServerUpsert }
func (ChannelUpsert) EventType() EventType { return EventTypeChannelUpsert }
func (MessageCreate) EventType() EventType { return EventTypeMessageCreate }
func (ServerRemove) EventType() EventType  { return EventTypeServerRemove }

func (p ServerUpsert) FederationServerID() string  { return p.FederationID }
func (p ChannelUpsert) FederationServerID() string { return p.FederationID }
func (p MessageCreate) FederationServerID() string { return p.FederationID }
func (p ServerRemove) FederationServerID() string  { return p.FederationID }

func (ServerUpsert) sealed()  {}
func (ChannelUpsert) sealed() {}
func (MessageCreate) sealed() {}
func (ServerRemove) sealed()  {}

// Event is a decoded, typed federation event.
type Event struct {
	EventID      string
	OriginDomain string
	StreamID     string
	Sequence     int64
	Payload      EventPayload
}

func (e Event) Key() StreamKey {
	return StreamKey{OriginDomain: e.OriginDomain, StreamID: e.StreamID}
}

func (e Event) Validate() error {
	if strings.TrimSpace(e.EventID) == "" {
		return domainerrors.Malformed("event_id is required")
	}
	if strings.TrimSpace(e.OriginDomain) == "" {
		return domainerrors.Malformed("origin_domain is required")
	}
	if strings.TrimSpace(e.StreamID) == "" {
		return domainerrors.Malformed("stream_id is required")
	}
	if e.Sequence < 1 {
		return domainerrors.Malformed("sequence must be at least 1")
	}
	if e.Payload == nil {
		return domainerrors.Malformed("event data is required")
	}
	if strings.TrimSpace(e.Payload.FederationServerID()) == "" {
		return domainerrors.Malformed("data.server.id is required")
	}
	if federationID, ok := FederationIDFromStream(e.StreamID); ok && federationID != e.Payload.FederationServerID() {
		return domainerrors.Malformed("data.server.id does not match stream_id")
	}
	return nil
}

type EventOutcome string

const (
	EventOutcomeApplied   EventOutcome = "applied"
	EventOutcomeDuplicate EventOutcome = "duplicate"
	EventOutcomeStale     EventOutcome = "stale"
)

// ReceiveResult is returned for every accepted delivery.
type ReceiveResult struct {
	Outcome             EventOutcome
	EventID             string
	OriginDomain        string
	StreamID            string
	Sequence            int64
	LastAppliedSequence int64
}

// SnapshotImportResult summarizes a snapshot import.
type SnapshotImportResult struct {
	Server           Server
	ChannelsUpserted int
	MessagesUpserted int
	ChannelsSkipped  int
	MessagesSkipped  int
	StreamSequence   int64
	StreamID         string
}
