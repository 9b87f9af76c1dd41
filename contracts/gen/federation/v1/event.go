// Package v1 holds the federation wire contract exchanged between instances.
// Field names are part of the protocol and must not change without a version bump.
package v1

import "encoding/json"

const (
	EventVersion    = 1
	SnapshotVersion = 1

	HeaderDomain    = "X-Federation-Domain"
	HeaderKeyID     = "X-Federation-Key-Id"
	HeaderTimestamp = "X-Federation-Timestamp"
	HeaderSignature = "X-Federation-Signature"

	EventsPath    = "/federation/v1/events"
	SnapshotsPath = "/federation/v1/snapshots"
)

// Event is the signed unit pushed from an origin instance to its peers.
type Event struct {
	Version      int             `json:"version"`
	EventID      string          `json:"event_id"`
	EventType    string          `json:"event_type"`
	OriginDomain string          `json:"origin_domain"`
	StreamID     string          `json:"stream_id"`
	Sequence     int64           `json:"sequence"`
	Data         json.RawMessage `json:"data"`
}

// ServerRef identifies a server by the origin's canonical id.
type ServerRef struct {
	ID string `json:"id"`
}

type ChannelRef struct {
	ID string `json:"id"`
}

type ServerData struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	IsPublic    bool   `json:"is_public"`
	MemberCount int    `json:"member_count"`
}

type ChannelData struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Topic       string `json:"topic,omitempty"`
	Position    int    `json:"position"`
}

type SenderData struct {
	Handle   string `json:"handle"`
	Username string `json:"username"`
	Domain   string `json:"domain"`
}

type MessageData struct {
	ID            string         `json:"id"`
	ChannelID     string         `json:"channel_id,omitempty"`
	Content       string         `json:"content"`
	MessageType   string         `json:"message_type,omitempty"`
	MediaURLs     []string       `json:"media_urls,omitempty"`
	MediaMetadata map[string]any `json:"media_metadata,omitempty"`
	Sender        *SenderData    `json:"sender,omitempty"`
	InsertedAt    string         `json:"inserted_at,omitempty"`
}

// ServerUpsertData is the data of server.upsert events.
type ServerUpsertData struct {
	Server   ServerData    `json:"server"`
	Channels []ChannelData `json:"channels,omitempty"`
}

// ChannelUpsertData is the data of channel.upsert events.
type ChannelUpsertData struct {
	Server  ServerData  `json:"server"`
	Channel ChannelData `json:"channel"`
}

// MessageCreateData is the data of message.create events.
type MessageCreateData struct {
	Server  ServerData  `json:"server"`
	Channel ChannelData `json:"channel"`
	Message MessageData `json:"message"`
}

// ServerRemoveData is the data of server.remove events.
type ServerRemoveData struct {
	Server ServerRef `json:"server"`
}
