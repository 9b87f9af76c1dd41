package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	application "fedsync/contexts/federation/replication-service/application"
	"fedsync/contexts/federation/replication-service/domain/entities"
	domainerrors "fedsync/contexts/federation/replication-service/domain/errors"
	"fedsync/contexts/federation/replication-service/ports"
)

// Store is an in-memory adapter implementing the replication ports for local
// runtime and tests. It is not intended as production persistence.
type Store struct {
	mu sync.RWMutex

	servers          map[string]entities.Server
	serverByFedID    map[string]string
	channels         map[string]entities.Channel
	channelBySource  map[string]string
	messages         map[string]messageRecord
	messageBySource  map[string]string
	cursors          map[entities.StreamKey]entities.SequenceCursor
	streamSequences  map[string]int64
	outbox           map[string]outboxRecord
	outboxOrder      []string
	messageSequencer uint64

	locks    *keyedMutex
	sequence uint64
	logger   *slog.Logger
}

type messageRecord struct {
	message entities.Message
	order   uint64
}

type outboxStatus string

const (
	outboxStatusPending outboxStatus = "pending"
	outboxStatusSent    outboxStatus = "sent"
	outboxStatusFailed  outboxStatus = "failed"
)

type outboxRecord struct {
	message ports.OutboxMessage
	status  outboxStatus
	sentAt  time.Time
}

// RowCounts is a test/inspection view of stored rows.
type RowCounts struct {
	Servers  int
	Channels int
	Messages int
}

func NewStore(logger *slog.Logger) *Store {
	return &Store{
		servers:         make(map[string]entities.Server),
		serverByFedID:   make(map[string]string),
		channels:        make(map[string]entities.Channel),
		channelBySource: make(map[string]string),
		messages:        make(map[string]messageRecord),
		messageBySource: make(map[string]string),
		cursors:         make(map[entities.StreamKey]entities.SequenceCursor),
		streamSequences: make(map[string]int64),
		outbox:          make(map[string]outboxRecord),
		outboxOrder:     make([]string, 0),
		locks:           newKeyedMutex(),
		logger:          application.ResolveLogger(logger),
	}
}

func (s *Store) UpsertMirrorServer(
	_ context.Context,
	federationID string,
	originDomain string,
	attrs entities.ServerAttrs,
	now time.Time,
) (entities.Server, error) {
	federationID = strings.TrimSpace(federationID)
	originDomain = entities.NormalizeDomain(originDomain)
	if federationID == "" || originDomain == "" {
		return entities.Server{}, domainerrors.ErrInvalidRequest
	}
	if err := attrs.Validate(); err != nil {
		return entities.Server{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	server := entities.Server{
		FederationID: federationID,
		CreatedAt:    now.UTC(),
	}
	if serverID, ok := s.serverByFedID[federationID]; ok {
		server = s.servers[serverID]
		if server.OriginDomain != originDomain {
			return entities.Server{}, domainerrors.ErrOriginMismatch
		}
	} else {
		server.ServerID = s.nextID("srv")
		s.serverByFedID[federationID] = server.ServerID
	}

	server = server.Apply(attrs, originDomain, now)
	s.servers[server.ServerID] = server
	return server, nil
}

func (s *Store) UpsertMirrorChannel(
	_ context.Context,
	server entities.Server,
	federatedSource string,
	attrs entities.ChannelAttrs,
	now time.Time,
) (entities.Channel, error) {
	federatedSource = strings.TrimSpace(federatedSource)
	if federatedSource == "" || server.ServerID == "" {
		return entities.Channel{}, domainerrors.ErrInvalidRequest
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	owner, ok := s.servers[server.ServerID]
	if !ok || !owner.IsFederatedMirror {
		return entities.Channel{}, domainerrors.ErrServerNotFound
	}

	channel := entities.Channel{
		FederatedSource: federatedSource,
		CreatedAt:       now.UTC(),
	}
	if channelID, ok := s.channelBySource[federatedSource]; ok {
		channel = s.channels[channelID]
		if current, ok := s.servers[channel.ServerID]; ok && current.OriginDomain != owner.OriginDomain {
			return entities.Channel{}, domainerrors.ErrOriginMismatch
		}
	} else {
		channel.ChannelID = s.nextID("chn")
		s.channelBySource[federatedSource] = channel.ChannelID
	}

	channel.ServerID = owner.ServerID
	channel = channel.Apply(attrs, now)
	s.channels[channel.ChannelID] = channel
	return channel, nil
}

func (s *Store) UpsertMirrorMessage(
	_ context.Context,
	channel entities.Channel,
	federatedSource string,
	sender entities.SenderDescriptor,
	attrs entities.MessageAttrs,
	now time.Time,
) (entities.Message, error) {
	federatedSource = strings.TrimSpace(federatedSource)
	if federatedSource == "" || channel.ChannelID == "" {
		return entities.Message{}, domainerrors.ErrInvalidRequest
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.channels[channel.ChannelID]; !ok {
		return entities.Message{}, domainerrors.ErrChannelNotFound
	}
	sourceKey := channel.ChannelID + "|" + federatedSource
	if messageID, ok := s.messageBySource[sourceKey]; ok {
		return s.messages[messageID].message.Clone(), nil
	}

	message := entities.NewMirrorMessage(s.nextID("msg"), channel, federatedSource, sender, attrs, now)
	s.messageBySource[sourceKey] = message.MessageID
	s.storeMessage(message)
	return message.Clone(), nil
}

func (s *Store) RemoveMirrorServer(_ context.Context, federationID string, originDomain string) (bool, error) {
	federationID = strings.TrimSpace(federationID)
	if federationID == "" {
		return false, domainerrors.ErrInvalidRequest
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	serverID, ok := s.serverByFedID[federationID]
	if !ok {
		return false, nil
	}
	if originDomain != "" && s.servers[serverID].OriginDomain != entities.NormalizeDomain(originDomain) {
		return false, domainerrors.ErrOriginMismatch
	}

	for channelID, channel := range s.channels {
		if channel.ServerID != serverID {
			continue
		}
		for messageID, record := range s.messages {
			if record.message.ChannelID != channelID {
				continue
			}
			delete(s.messageBySource, channelID+"|"+record.message.FederatedSource)
			delete(s.messages, messageID)
		}
		delete(s.channelBySource, channel.FederatedSource)
		delete(s.channels, channelID)
	}
	delete(s.serverByFedID, federationID)
	delete(s.servers, serverID)
	return true, nil
}

func (s *Store) GetMirrorServer(_ context.Context, federationID string) (entities.Server, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	serverID, ok := s.serverByFedID[strings.TrimSpace(federationID)]
	if !ok {
		return entities.Server{}, domainerrors.ErrServerNotFound
	}
	return s.servers[serverID], nil
}

func (s *Store) ListMirrorServers(_ context.Context) ([]entities.Server, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]entities.Server, 0, len(s.serverByFedID))
	for _, serverID := range s.serverByFedID {
		items = append(items, s.servers[serverID])
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].FederationID < items[j].FederationID
	})
	return items, nil
}

func (s *Store) GetServer(_ context.Context, serverID string) (entities.Server, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	server, ok := s.servers[strings.TrimSpace(serverID)]
	if !ok {
		return entities.Server{}, domainerrors.ErrServerNotFound
	}
	return server, nil
}

func (s *Store) GetChannel(_ context.Context, channelID string) (entities.Channel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	channel, ok := s.channels[strings.TrimSpace(channelID)]
	if !ok {
		return entities.Channel{}, domainerrors.ErrChannelNotFound
	}
	return channel, nil
}

func (s *Store) GetMessage(_ context.Context, messageID string) (entities.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.messages[strings.TrimSpace(messageID)]
	if !ok {
		return entities.Message{}, domainerrors.ErrMessageNotFound
	}
	return record.message.Clone(), nil
}

func (s *Store) ListChannels(_ context.Context, serverID string) ([]entities.Channel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]entities.Channel, 0)
	for _, channel := range s.channels {
		if channel.ServerID == serverID {
			items = append(items, channel)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Position != items[j].Position {
			return items[i].Position < items[j].Position
		}
		return items[i].ChannelID < items[j].ChannelID
	})
	return items, nil
}

func (s *Store) ListRecentMessages(_ context.Context, channelID string, limit int) ([]entities.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]messageRecord, 0)
	for _, record := range s.messages {
		if record.message.ChannelID == channelID {
			records = append(records, record)
		}
	}
	sort.Slice(records, func(i, j int) bool {
		left, right := records[i], records[j]
		if !left.message.SentAt.Equal(right.message.SentAt) {
			return left.message.SentAt.Before(right.message.SentAt)
		}
		return left.order < right.order
	})
	if limit > 0 && len(records) > limit {
		records = records[len(records)-limit:]
	}

	items := make([]entities.Message, 0, len(records))
	for _, record := range records {
		items = append(items, record.message.Clone())
	}
	return items, nil
}

func (s *Store) CreateLocalServer(_ context.Context, attrs entities.ServerAttrs, now time.Time) (entities.Server, error) {
	if err := attrs.Validate(); err != nil {
		return entities.Server{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	server := entities.Server{
		ServerID:    s.nextID("srv"),
		Name:        strings.TrimSpace(attrs.Name),
		Description: attrs.Description,
		IsPublic:    attrs.IsPublic,
		MemberCount: attrs.MemberCount,
		CreatedAt:   now.UTC(),
		UpdatedAt:   now.UTC(),
	}
	s.servers[server.ServerID] = server
	return server, nil
}

func (s *Store) CreateLocalChannel(
	_ context.Context,
	serverID string,
	attrs entities.ChannelAttrs,
	now time.Time,
) (entities.Channel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	server, ok := s.servers[serverID]
	if !ok {
		return entities.Channel{}, domainerrors.ErrServerNotFound
	}
	if server.IsFederatedMirror {
		return entities.Channel{}, domainerrors.ErrNotLocalServer
	}
	channel := entities.Channel{
		ChannelID:   s.nextID("chn"),
		ServerID:    serverID,
		Kind:        entities.ConversationKindChannel,
		Name:        strings.TrimSpace(attrs.Name),
		Description: attrs.Description,
		Topic:       attrs.Topic,
		Position:    attrs.Position,
		CreatedAt:   now.UTC(),
		UpdatedAt:   now.UTC(),
	}
	s.channels[channel.ChannelID] = channel
	return channel, nil
}

func (s *Store) CreateLocalMessage(
	_ context.Context,
	channelID string,
	sender entities.SenderDescriptor,
	attrs entities.MessageAttrs,
	now time.Time,
) (entities.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	channel, ok := s.channels[channelID]
	if !ok {
		return entities.Message{}, domainerrors.ErrChannelNotFound
	}
	if channel.IsFederatedMirror {
		return entities.Message{}, domainerrors.ErrNotLocalServer
	}
	message := entities.NewMirrorMessage(s.nextID("msg"), channel, "", sender, attrs, now)
	message.IsFederatedMirror = false
	s.storeMessage(message)
	return message.Clone(), nil
}

func (s *Store) Now() time.Time {
	return time.Now().UTC()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	value := atomic.AddUint64(&s.sequence, 1)
	return fmt.Sprintf("fed-%d", value), nil
}

// RowCounts reports how many servers, channels and messages are stored.
func (s *Store) RowCounts() RowCounts {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return RowCounts{
		Servers:  len(s.servers),
		Channels: len(s.channels),
		Messages: len(s.messages),
	}
}

// MirrorMessages lists mirrored messages of one channel, oldest first.
func (s *Store) MirrorMessages(channelID string) []entities.Message {
	items, _ := s.ListRecentMessages(context.Background(), channelID, 0)
	return items
}

func (s *Store) storeMessage(message entities.Message) {
	s.messageSequencer++
	s.messages[message.MessageID] = messageRecord{
		message: message.Clone(),
		order:   s.messageSequencer,
	}
}

func (s *Store) nextID(prefix string) string {
	value := atomic.AddUint64(&s.sequence, 1)
	return fmt.Sprintf("%s-%d", prefix, value)
}
