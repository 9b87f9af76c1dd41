package commands_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"fedsync/contexts/federation/replication-service/adapters/memory"
	"fedsync/contexts/federation/replication-service/application/commands"
	"fedsync/contexts/federation/replication-service/domain/entities"
	domainerrors "fedsync/contexts/federation/replication-service/domain/errors"
	contractsv1 "fedsync/contracts/gen/events/v1"
	federationv1 "fedsync/contracts/gen/federation/v1"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var streamKey = entities.StreamKey{OriginDomain: remoteDomain, StreamID: "server:srv-1"}

func TestReceiveEventAppliesThenReportsDuplicate(t *testing.T) {
	store := memory.NewStore(nil)
	uc := newReceiver(store, nil)
	ctx := context.Background()

	result, err := uc.Execute(ctx, commands.ReceiveEventCommand{Event: serverUpsert(t, 1, "evt-1"), AuthenticatedDomain: remoteDomain})
	require.NoError(t, err)
	assert.Equal(t, entities.EventOutcomeApplied, result.Outcome)
	assert.Equal(t, int64(1), result.LastAppliedSequence)

	result, err = uc.Execute(ctx, commands.ReceiveEventCommand{Event: serverUpsert(t, 1, "evt-1"), AuthenticatedDomain: remoteDomain})
	require.NoError(t, err)
	assert.Equal(t, entities.EventOutcomeDuplicate, result.Outcome)

	server, err := store.GetMirrorServer(ctx, "srv-1")
	require.NoError(t, err)
	assert.Equal(t, remoteDomain, server.OriginDomain)
	assert.Equal(t, 12, server.MemberCount)
	channels, err := store.ListChannels(ctx, server.ServerID)
	require.NoError(t, err)
	require.Len(t, channels, 1)
	assert.Equal(t, "chan-1", channels[0].FederatedSource)
	assert.True(t, channels[0].IsFederatedMirror)
	assert.Equal(t, 1, store.RowCounts().Servers)
}

func TestReceiveEventOlderSequenceIsStale(t *testing.T) {
	store := memory.NewStore(nil)
	uc := newReceiver(store, nil)

	require.NoError(t, receive(t, uc, serverUpsert(t, 1, "evt-1")))
	require.NoError(t, receive(t, uc, messageCreate(t, 2, "evt-2", "m-1", "hello")))

	result, err := uc.Execute(context.Background(), commands.ReceiveEventCommand{Event: serverUpsert(t, 1, "evt-1"), AuthenticatedDomain: remoteDomain})
	require.NoError(t, err)
	assert.Equal(t, entities.EventOutcomeStale, result.Outcome)
	assert.Equal(t, int64(2), result.LastAppliedSequence)
}

func TestReceiveEventGapLeavesStateAndPublishesNotice(t *testing.T) {
	store := memory.NewStore(nil)
	publisher := &capturePublisher{}
	uc := newReceiver(store, publisher)
	ctx := context.Background()

	require.NoError(t, receive(t, uc, serverUpsert(t, 1, "evt-1")))
	before := store.RowCounts()

	err := receive(t, uc, messageCreate(t, 3, "evt-3", "m-1", "skipped ahead"))
	var gap *domainerrors.SequenceGapError
	require.True(t, errors.As(err, &gap), "expected gap, got %v", err)
	assert.Equal(t, int64(2), gap.Expected)
	assert.Equal(t, before, store.RowCounts())

	cursor, found, err := store.GetCursor(ctx, streamKey)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, int64(1), cursor.LastAppliedSequence)

	published := publisher.Published()
	require.Len(t, published, 1)
	assert.Equal(t, "federation.sequence_gap", published[0].EventType)
	var notice contractsv1.SequenceGapNotice
	require.NoError(t, json.Unmarshal(published[0].Data, &notice))
	assert.Equal(t, int64(2), notice.ExpectedSequence)
	assert.Equal(t, int64(3), notice.ReceivedSequence)
	assert.Equal(t, "server:srv-1", notice.StreamID)
}

func TestReceiveEventRecoversAfterCursorReset(t *testing.T) {
	store := memory.NewStore(nil)
	uc := newReceiver(store, nil)
	reset := commands.ResetCursorUseCase{Ledger: store, Locker: store, Clock: testClock}
	ctx := context.Background()

	require.NoError(t, receive(t, uc, serverUpsert(t, 1, "evt-1")))
	require.Error(t, receive(t, uc, messageCreate(t, 5, "evt-5", "m-5", "late")))

	_, err := reset.Execute(ctx, commands.ResetCursorCommand{OriginDomain: remoteDomain, StreamID: "server:srv-1", Sequence: 4})
	require.NoError(t, err)

	result, err := uc.Execute(ctx, commands.ReceiveEventCommand{Event: messageCreate(t, 5, "evt-5", "m-5", "late"), AuthenticatedDomain: remoteDomain})
	require.NoError(t, err)
	assert.Equal(t, entities.EventOutcomeApplied, result.Outcome)
	assert.Equal(t, 1, store.RowCounts().Messages)
}

func TestReceiveEventStrictStartRejectsLateJoin(t *testing.T) {
	store := memory.NewStore(nil)
	uc := newReceiver(store, nil)

	err := receive(t, uc, serverUpsert(t, 7, "evt-7"))
	assert.True(t, errors.Is(err, domainerrors.ErrSequenceGap))
	assert.Equal(t, 0, store.RowCounts().Servers)
}

func TestReceiveEventBaselineAcceptsLateJoin(t *testing.T) {
	store := memory.NewStore(nil)
	uc := newReceiver(store, nil)
	uc.AcceptBaseline = true

	require.NoError(t, receive(t, uc, serverUpsert(t, 7, "evt-7")))
	require.NoError(t, receive(t, uc, messageCreate(t, 8, "evt-8", "m-1", "hi")))
	assert.Error(t, receive(t, uc, messageCreate(t, 10, "evt-10", "m-2", "gap")))
}

func TestReceiveEventUnknownTypeDoesNotTouchLedger(t *testing.T) {
	store := memory.NewStore(nil)
	uc := newReceiver(store, nil)

	err := receive(t, uc, wireEvent(t, "server.explode", 1, "evt-1", map[string]any{"server": map[string]any{"id": "srv-1"}}))
	assert.True(t, errors.Is(err, domainerrors.ErrUnknownEventType))

	_, found, err := store.GetCursor(context.Background(), streamKey)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestReceiveEventMalformedPayloads(t *testing.T) {
	cases := map[string]federationv1.Event{
		"null data": {Version: 1, EventID: "e", EventType: "server.upsert", OriginDomain: remoteDomain, StreamID: "server:srv-1", Sequence: 1, Data: json.RawMessage("null")},
		"missing server name": wireEvent(t, "server.upsert", 1, "e", federationv1.ServerUpsertData{
			Server: federationv1.ServerData{ID: "srv-1"},
		}),
		"message without sender": wireEvent(t, "message.create", 1, "e", federationv1.MessageCreateData{
			Server:  remoteServer(),
			Channel: federationv1.ChannelData{ID: "chan-1", Name: "general"},
			Message: federationv1.MessageData{ID: "m-1", Content: "hi"},
		}),
		"stream does not match server": func() federationv1.Event {
			event := serverUpsert(t, 1, "e")
			event.StreamID = "server:srv-2"
			return event
		}(),
		"zero sequence": serverUpsert(t, 0, "e"),
	}
	for name, event := range cases {
		t.Run(name, func(t *testing.T) {
			store := memory.NewStore(nil)
			err := receive(t, newReceiver(store, nil), event)
			assert.True(t, errors.Is(err, domainerrors.ErrMalformedPayload), "got %v", err)
			assert.Equal(t, 0, store.RowCounts().Servers)
		})
	}
}

func TestReceiveEventOriginMustMatchSigner(t *testing.T) {
	store := memory.NewStore(nil)
	uc := newReceiver(store, nil)

	_, err := uc.Execute(context.Background(), commands.ReceiveEventCommand{
		Event:               serverUpsert(t, 1, "evt-1"),
		AuthenticatedDomain: "mallory.example",
	})
	assert.True(t, errors.Is(err, domainerrors.ErrUnauthorized))
}

func TestReceiveEventCannotHijackAnotherOriginsMirror(t *testing.T) {
	store := memory.NewStore(nil)
	uc := newReceiver(store, nil)
	ctx := context.Background()
	require.NoError(t, receive(t, uc, serverUpsert(t, 1, "evt-1")))

	hijack := serverUpsert(t, 1, "evt-x")
	hijack.OriginDomain = "mallory.example"
	_, err := uc.Execute(ctx, commands.ReceiveEventCommand{Event: hijack, AuthenticatedDomain: "mallory.example"})
	assert.True(t, errors.Is(err, domainerrors.ErrOriginMismatch))

	server, err := store.GetMirrorServer(ctx, "srv-1")
	require.NoError(t, err)
	assert.Equal(t, remoteDomain, server.OriginDomain)
}

func TestReceiveEventMessageCreateIsIdempotentPerSource(t *testing.T) {
	store := memory.NewStore(nil)
	uc := newReceiver(store, nil)
	ctx := context.Background()

	require.NoError(t, receive(t, uc, serverUpsert(t, 1, "evt-1")))
	require.NoError(t, receive(t, uc, messageCreate(t, 2, "evt-2", "m-1", "hello")))
	// Re-emitted under a new event id and sequence: the message row must not double.
	require.NoError(t, receive(t, uc, messageCreate(t, 3, "evt-3", "m-1", "hello")))

	server, err := store.GetMirrorServer(ctx, "srv-1")
	require.NoError(t, err)
	channels, err := store.ListChannels(ctx, server.ServerID)
	require.NoError(t, err)
	messages := store.MirrorMessages(channels[0].ChannelID)
	require.Len(t, messages, 1)
	assert.Equal(t, "alice@"+remoteDomain, messages[0].Sender.Handle)
	assert.Equal(t, "m-1", messages[0].FederatedSource)
	assert.Equal(t, entities.DefaultMessageType, messages[0].MessageType)
}

func TestReceiveEventServerRemove(t *testing.T) {
	store := memory.NewStore(nil)
	uc := newReceiver(store, nil)

	require.NoError(t, receive(t, uc, serverUpsert(t, 1, "evt-1")))
	require.NoError(t, receive(t, uc, messageCreate(t, 2, "evt-2", "m-1", "hello")))
	require.NoError(t, receive(t, uc, wireEvent(t, "server.remove", 3, "evt-3", federationv1.ServerRemoveData{
		Server: federationv1.ServerRef{ID: "srv-1"},
	})))

	assert.Equal(t, memory.RowCounts{}, store.RowCounts())
	_, err := store.GetMirrorServer(context.Background(), "srv-1")
	assert.True(t, errors.Is(err, domainerrors.ErrServerNotFound))
}

func TestReceiveEventConcurrentRedeliveryAppliesOnce(t *testing.T) {
	store := memory.NewStore(nil)
	uc := newReceiver(store, nil)
	require.NoError(t, receive(t, uc, serverUpsert(t, 1, "evt-1")))

	const workers = 16
	outcomes := make(chan entities.EventOutcome, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := uc.Execute(context.Background(), commands.ReceiveEventCommand{
				Event:               messageCreate(t, 2, "evt-2", "m-1", "hello"),
				AuthenticatedDomain: remoteDomain,
			})
			if err == nil {
				outcomes <- result.Outcome
			}
		}()
	}
	wg.Wait()
	close(outcomes)

	counts := map[entities.EventOutcome]int{}
	for outcome := range outcomes {
		counts[outcome]++
	}
	assert.Equal(t, 1, counts[entities.EventOutcomeApplied])
	assert.Equal(t, workers-1, counts[entities.EventOutcomeDuplicate])
	assert.Equal(t, 1, store.RowCounts().Messages)
}
