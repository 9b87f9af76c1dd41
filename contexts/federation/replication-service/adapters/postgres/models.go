package postgresadapter

import (
	"time"

	"fedsync/contexts/federation/replication-service/domain/entities"
	"fedsync/contexts/federation/replication-service/ports"
)

type serverModel struct {
	ServerID          string    `gorm:"column:server_id;primaryKey"`
	IsFederatedMirror bool      `gorm:"column:is_federated_mirror;not null;default:false"`
	FederationID      *string   `gorm:"column:federation_id;uniqueIndex:federation_servers_unique_federation_id"`
	OriginDomain      string    `gorm:"column:origin_domain"`
	Name              string    `gorm:"column:name;not null"`
	Description       string    `gorm:"column:description"`
	IsPublic          bool      `gorm:"column:is_public"`
	MemberCount       int       `gorm:"column:member_count"`
	CreatedAt         time.Time `gorm:"column:created_at"`
	UpdatedAt         time.Time `gorm:"column:updated_at"`
}

func (serverModel) TableName() string {
	return "federation_servers"
}

func (m serverModel) toEntity() entities.Server {
	return entities.Server{
		ServerID:          m.ServerID,
		IsFederatedMirror: m.IsFederatedMirror,
		FederationID:      deref(m.FederationID),
		OriginDomain:      m.OriginDomain,
		Name:              m.Name,
		Description:       m.Description,
		IsPublic:          m.IsPublic,
		MemberCount:       m.MemberCount,
		CreatedAt:         m.CreatedAt.UTC(),
		UpdatedAt:         m.UpdatedAt.UTC(),
	}
}

type channelModel struct {
	ChannelID         string    `gorm:"column:channel_id;primaryKey"`
	ServerID          string    `gorm:"column:server_id;not null;index:federation_channels_server_id"`
	Kind              string    `gorm:"column:kind;not null"`
	FederatedSource   *string   `gorm:"column:federated_source;uniqueIndex:federation_channels_unique_source"`
	IsFederatedMirror bool      `gorm:"column:is_federated_mirror;not null;default:false"`
	Name              string    `gorm:"column:name"`
	Description       string    `gorm:"column:description"`
	Topic             string    `gorm:"column:topic"`
	Position          int       `gorm:"column:position"`
	CreatedAt         time.Time `gorm:"column:created_at"`
	UpdatedAt         time.Time `gorm:"column:updated_at"`
}

func (channelModel) TableName() string {
	return "federation_channels"
}

func (m channelModel) toEntity() entities.Channel {
	return entities.Channel{
		ChannelID:         m.ChannelID,
		ServerID:          m.ServerID,
		Kind:              entities.ConversationKind(m.Kind),
		FederatedSource:   deref(m.FederatedSource),
		IsFederatedMirror: m.IsFederatedMirror,
		Name:              m.Name,
		Description:       m.Description,
		Topic:             m.Topic,
		Position:          m.Position,
		CreatedAt:         m.CreatedAt.UTC(),
		UpdatedAt:         m.UpdatedAt.UTC(),
	}
}

type messageModel struct {
	MessageID         string         `gorm:"column:message_id;primaryKey"`
	ChannelID         string         `gorm:"column:channel_id;not null;uniqueIndex:federation_messages_unique_source,priority:1"`
	FederatedSource   *string        `gorm:"column:federated_source;uniqueIndex:federation_messages_unique_source,priority:2"`
	Content           string         `gorm:"column:content"`
	MessageType       string         `gorm:"column:message_type"`
	MediaURLs         []string       `gorm:"column:media_urls;type:jsonb;serializer:json"`
	MediaMetadata     map[string]any `gorm:"column:media_metadata;type:jsonb;serializer:json"`
	OriginDomain      string         `gorm:"column:origin_domain"`
	IsFederatedMirror bool           `gorm:"column:is_federated_mirror;not null;default:false"`
	SenderHandle      string         `gorm:"column:sender_handle"`
	SenderUsername    string         `gorm:"column:sender_username"`
	SenderDomain      string         `gorm:"column:sender_domain"`
	SentAt            time.Time      `gorm:"column:sent_at;index:federation_messages_sent_at"`
	CreatedAt         time.Time      `gorm:"column:created_at"`
}

func (messageModel) TableName() string {
	return "federation_messages"
}

func messageModelFromEntity(message entities.Message) messageModel {
	var source *string
	if message.FederatedSource != "" {
		value := message.FederatedSource
		source = &value
	}
	return messageModel{
		MessageID:         message.MessageID,
		ChannelID:         message.ChannelID,
		FederatedSource:   source,
		Content:           message.Content,
		MessageType:       message.MessageType,
		MediaURLs:         message.MediaURLs,
		MediaMetadata:     message.MediaMetadata,
		OriginDomain:      message.OriginDomain,
		IsFederatedMirror: message.IsFederatedMirror,
		SenderHandle:      message.Sender.Handle,
		SenderUsername:    message.Sender.Username,
		SenderDomain:      message.Sender.Domain,
		SentAt:            message.SentAt.UTC(),
		CreatedAt:         message.CreatedAt.UTC(),
	}
}

func (m messageModel) toEntity() entities.Message {
	return entities.Message{
		MessageID:         m.MessageID,
		ChannelID:         m.ChannelID,
		FederatedSource:   deref(m.FederatedSource),
		Content:           m.Content,
		MessageType:       m.MessageType,
		MediaURLs:         append([]string(nil), m.MediaURLs...),
		MediaMetadata:     m.MediaMetadata,
		OriginDomain:      m.OriginDomain,
		IsFederatedMirror: m.IsFederatedMirror,
		Sender: entities.SenderDescriptor{
			Handle:   m.SenderHandle,
			Username: m.SenderUsername,
			Domain:   m.SenderDomain,
		},
		SentAt:    m.SentAt.UTC(),
		CreatedAt: m.CreatedAt.UTC(),
	}
}

type cursorModel struct {
	OriginDomain        string    `gorm:"column:origin_domain;primaryKey"`
	StreamID            string    `gorm:"column:stream_id;primaryKey"`
	LastAppliedSequence int64     `gorm:"column:last_applied_sequence;not null;check:last_applied_sequence >= 0"`
	SeenEventIDs        []string  `gorm:"column:seen_event_ids;type:jsonb;serializer:json"`
	UpdatedAt           time.Time `gorm:"column:updated_at"`
}

func (cursorModel) TableName() string {
	return "federation_sequence_cursors"
}

func cursorModelFromEntity(cursor entities.SequenceCursor) cursorModel {
	return cursorModel{
		OriginDomain:        cursor.OriginDomain,
		StreamID:            cursor.StreamID,
		LastAppliedSequence: cursor.LastAppliedSequence,
		SeenEventIDs:        append([]string{}, cursor.SeenEventIDs...),
		UpdatedAt:           cursor.UpdatedAt.UTC(),
	}
}

func (m cursorModel) toEntity() entities.SequenceCursor {
	return entities.SequenceCursor{
		OriginDomain:        m.OriginDomain,
		StreamID:            m.StreamID,
		LastAppliedSequence: m.LastAppliedSequence,
		SeenEventIDs:        append([]string(nil), m.SeenEventIDs...),
		UpdatedAt:           m.UpdatedAt.UTC(),
	}
}

type streamSequenceModel struct {
	StreamID     string `gorm:"column:stream_id;primaryKey"`
	LastSequence int64  `gorm:"column:last_sequence;not null"`
}

func (streamSequenceModel) TableName() string {
	return "federation_stream_sequences"
}

type outboxModel struct {
	OutboxID   string     `gorm:"column:outbox_id;primaryKey"`
	PeerDomain string     `gorm:"column:peer_domain;not null"`
	EventID    string     `gorm:"column:event_id;not null"`
	EventType  string     `gorm:"column:event_type;not null"`
	StreamID   string     `gorm:"column:stream_id;not null"`
	Sequence   int64      `gorm:"column:sequence;not null"`
	Payload    []byte     `gorm:"column:payload;type:bytea"`
	Status     string     `gorm:"column:status;not null;index:federation_outbox_status"`
	RetryCount int        `gorm:"column:retry_count;not null;default:0"`
	LastError  string     `gorm:"column:last_error"`
	CreatedAt  time.Time  `gorm:"column:created_at"`
	UpdatedAt  time.Time  `gorm:"column:updated_at"`
	SentAt     *time.Time `gorm:"column:sent_at"`
}

func (outboxModel) TableName() string {
	return "federation_outbox"
}

func (m outboxModel) toPort() ports.OutboxMessage {
	return ports.OutboxMessage{
		OutboxID:   m.OutboxID,
		PeerDomain: m.PeerDomain,
		EventID:    m.EventID,
		EventType:  m.EventType,
		StreamID:   m.StreamID,
		Sequence:   m.Sequence,
		Payload:    append([]byte(nil), m.Payload...),
		RetryCount: m.RetryCount,
		LastError:  m.LastError,
		CreatedAt:  m.CreatedAt.UTC(),
	}
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func ptr(value string) *string {
	return &value
}
