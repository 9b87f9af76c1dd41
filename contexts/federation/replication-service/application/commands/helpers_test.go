package commands_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"fedsync/contexts/federation/replication-service/adapters/memory"
	"fedsync/contexts/federation/replication-service/application/commands"
	"fedsync/contexts/federation/replication-service/ports"
	federationv1 "fedsync/contracts/gen/federation/v1"

	"github.com/stretchr/testify/require"
)

const remoteDomain = "remote.example"

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

var testClock = fixedClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}

type capturePublisher struct {
	mu        sync.Mutex
	envelopes []ports.EventEnvelope
}

func (p *capturePublisher) Publish(_ context.Context, _ string, event ports.EventEnvelope) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.envelopes = append(p.envelopes, event)
	return nil
}

func (p *capturePublisher) Published() []ports.EventEnvelope {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]ports.EventEnvelope(nil), p.envelopes...)
}

func newReceiver(store *memory.Store, publisher ports.EventPublisher) commands.ReceiveEventUseCase {
	return commands.ReceiveEventUseCase{
		Store:       store,
		Ledger:      store,
		Locker:      store,
		Clock:       testClock,
		IDGenerator: store,
		Publisher:   publisher,
	}
}

func wireEvent(t *testing.T, eventType string, sequence int64, eventID string, data any) federationv1.Event {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	return federationv1.Event{
		Version:      federationv1.EventVersion,
		EventID:      eventID,
		EventType:    eventType,
		OriginDomain: remoteDomain,
		StreamID:     "server:srv-1",
		Sequence:     sequence,
		Data:         raw,
	}
}

func remoteServer() federationv1.ServerData {
	return federationv1.ServerData{ID: "srv-1", Name: "Remote Lounge", IsPublic: true, MemberCount: 12}
}

func serverUpsert(t *testing.T, sequence int64, eventID string) federationv1.Event {
	return wireEvent(t, "server.upsert", sequence, eventID, federationv1.ServerUpsertData{
		Server:   remoteServer(),
		Channels: []federationv1.ChannelData{{ID: "chan-1", Name: "general"}},
	})
}

func messageCreate(t *testing.T, sequence int64, eventID string, messageID string, content string) federationv1.Event {
	return wireEvent(t, "message.create", sequence, eventID, federationv1.MessageCreateData{
		Server:  remoteServer(),
		Channel: federationv1.ChannelData{ID: "chan-1", Name: "general"},
		Message: federationv1.MessageData{
			ID:         messageID,
			Content:    content,
			Sender:     &federationv1.SenderData{Username: "alice", Domain: remoteDomain},
			InsertedAt: "2026-03-01T11:59:00Z",
		},
	})
}

func receive(t *testing.T, uc commands.ReceiveEventUseCase, event federationv1.Event) error {
	t.Helper()
	_, err := uc.Execute(context.Background(), commands.ReceiveEventCommand{Event: event, AuthenticatedDomain: remoteDomain})
	return err
}
