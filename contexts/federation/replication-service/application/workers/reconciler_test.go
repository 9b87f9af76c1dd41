package workers_test

import (
	"context"
	"encoding/json"
	"testing"

	"fedsync/contexts/federation/replication-service/adapters/memory"
	"fedsync/contexts/federation/replication-service/application/commands"
	"fedsync/contexts/federation/replication-service/application/workers"
	"fedsync/contexts/federation/replication-service/domain/entities"
	domainerrors "fedsync/contexts/federation/replication-service/domain/errors"
	"fedsync/contexts/federation/replication-service/ports"
	contractsv1 "fedsync/contracts/gen/events/v1"
	federationv1 "fedsync/contracts/gen/federation/v1"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const originDomain = "alpha.example"

func originSnapshot(sequence int64) federationv1.ServerSnapshot {
	return federationv1.ServerSnapshot{
		Version:  federationv1.SnapshotVersion,
		Server:   federationv1.ServerData{ID: "srv-9", Name: "Alpha Hall", IsPublic: true},
		Channels: []federationv1.ChannelData{{ID: "chan-1", Name: "general"}},
		Messages: []federationv1.MessageData{{
			ID:        "msg-1",
			ChannelID: "chan-1",
			Content:   "welcome",
			Sender:    &federationv1.SenderData{Username: "ana", Domain: originDomain},
		}},
		Stream: &federationv1.StreamPointer{ID: "server:srv-9", Sequence: sequence},
	}
}

func newReconciler(t *testing.T, store *memory.Store, transport *fakeTransport) workers.Reconciler {
	t.Helper()
	return workers.Reconciler{
		Store:       store,
		Peers:       testDirectory(t, originDomain),
		Transport:   transport,
		Import:      commands.ImportServerSnapshotUseCase{Store: store, Clock: testClock},
		ResetCursor: commands.ResetCursorUseCase{Ledger: store, Locker: store, Clock: testClock},
	}
}

func cursorOf(t *testing.T, store *memory.Store) (entities.SequenceCursor, bool) {
	t.Helper()
	cursor, found, err := store.GetCursor(context.Background(), entities.StreamKey{OriginDomain: originDomain, StreamID: "server:srv-9"})
	require.NoError(t, err)
	return cursor, found
}

func TestReconcileServerImportsAndMovesCursor(t *testing.T) {
	store := memory.NewStore(nil)
	transport := newFakeTransport()
	transport.snapshots["srv-9"] = originSnapshot(7)
	reconciler := newReconciler(t, store, transport)

	require.NoError(t, reconciler.ReconcileServer(context.Background(), originDomain, "srv-9"))

	mirror, err := store.GetMirrorServer(context.Background(), "srv-9")
	require.NoError(t, err)
	assert.Equal(t, originDomain, mirror.OriginDomain)
	assert.Equal(t, memory.RowCounts{Servers: 1, Channels: 1, Messages: 1}, store.RowCounts())

	cursor, found := cursorOf(t, store)
	require.True(t, found)
	assert.Equal(t, int64(7), cursor.LastAppliedSequence)
}

func TestReconcileServerNeverRewindsCursor(t *testing.T) {
	store := memory.NewStore(nil)
	_, err := store.ResetCursor(context.Background(), entities.StreamKey{OriginDomain: originDomain, StreamID: "server:srv-9"}, 12, testClock.now)
	require.NoError(t, err)
	transport := newFakeTransport()
	transport.snapshots["srv-9"] = originSnapshot(7)

	require.NoError(t, newReconciler(t, store, transport).ReconcileServer(context.Background(), originDomain, "srv-9"))
	cursor, _ := cursorOf(t, store)
	assert.Equal(t, int64(12), cursor.LastAppliedSequence)
}

func TestReconcileServerWithoutStreamPointerLeavesLedger(t *testing.T) {
	store := memory.NewStore(nil)
	transport := newFakeTransport()
	snapshot := originSnapshot(0)
	snapshot.Stream = nil
	transport.snapshots["srv-9"] = snapshot

	require.NoError(t, newReconciler(t, store, transport).ReconcileServer(context.Background(), originDomain, "srv-9"))
	_, found := cursorOf(t, store)
	assert.False(t, found)
	assert.Equal(t, 1, store.RowCounts().Servers)
}

func TestReconcileServerFailures(t *testing.T) {
	store := memory.NewStore(nil)
	transport := newFakeTransport()
	reconciler := newReconciler(t, store, transport)

	err := reconciler.ReconcileServer(context.Background(), "stranger.example", "srv-9")
	require.ErrorIs(t, err, domainerrors.ErrPeerUnknown)

	err = reconciler.ReconcileServer(context.Background(), originDomain, "srv-9")
	require.Error(t, err)

	bad := originSnapshot(3)
	bad.Version = 9
	transport.snapshots["srv-9"] = bad
	err = reconciler.ReconcileServer(context.Background(), originDomain, "srv-9")
	require.ErrorIs(t, err, domainerrors.ErrUnsupportedSnapshotVersion)
	_, found := cursorOf(t, store)
	assert.False(t, found)
}

func TestHandleSequenceGapReconcilesStream(t *testing.T) {
	store := memory.NewStore(nil)
	transport := newFakeTransport()
	transport.snapshots["srv-9"] = originSnapshot(4)
	reconciler := newReconciler(t, store, transport)

	data, err := json.Marshal(contractsv1.SequenceGapNotice{
		OriginDomain:     originDomain,
		StreamID:         "server:srv-9",
		ExpectedSequence: 1,
		ReceivedSequence: 5,
	})
	require.NoError(t, err)
	require.NoError(t, reconciler.HandleSequenceGap(context.Background(), ports.EventEnvelope{
		EventID:   "gap-1",
		EventType: commands.SequenceGapTopic,
		Data:      data,
	}))
	assert.Equal(t, []string{originDomain + "/srv-9"}, transport.Fetches())
	cursor, found := cursorOf(t, store)
	require.True(t, found)
	assert.Equal(t, int64(4), cursor.LastAppliedSequence)

	data, err = json.Marshal(contractsv1.SequenceGapNotice{OriginDomain: originDomain, StreamID: "channel:x"})
	require.NoError(t, err)
	require.NoError(t, reconciler.HandleSequenceGap(context.Background(), ports.EventEnvelope{EventID: "gap-2", Data: data}))
	assert.Len(t, transport.Fetches(), 1)

	require.Error(t, reconciler.HandleSequenceGap(context.Background(), ports.EventEnvelope{EventID: "gap-3", Data: []byte("{")}))
}

func TestReconcilerRunOnceVisitsEveryMirror(t *testing.T) {
	store := memory.NewStore(nil)
	ctx := context.Background()
	_, err := store.UpsertMirrorServer(ctx, "srv-9", originDomain, entities.ServerAttrs{Name: "Alpha Hall"}, testClock.now)
	require.NoError(t, err)
	_, err = store.UpsertMirrorServer(ctx, "srv-lost", originDomain, entities.ServerAttrs{Name: "Lost"}, testClock.now)
	require.NoError(t, err)
	transport := newFakeTransport()
	transport.snapshots["srv-9"] = originSnapshot(2)

	require.NoError(t, newReconciler(t, store, transport).RunOnce(ctx))
	assert.ElementsMatch(t, []string{originDomain + "/srv-9", originDomain + "/srv-lost"}, transport.Fetches())
	cursor, found := cursorOf(t, store)
	require.True(t, found)
	assert.Equal(t, int64(2), cursor.LastAppliedSequence)
}
