package workers_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"fedsync/contexts/federation/replication-service/adapters/memory"
	"fedsync/contexts/federation/replication-service/adapters/peers"
	"fedsync/contexts/federation/replication-service/domain/entities"
	"fedsync/contexts/federation/replication-service/ports"
	federationv1 "fedsync/contracts/gen/federation/v1"

	"github.com/stretchr/testify/require"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

var testClock = fixedClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}

type delivery struct {
	peer string
	body string
}

// fakeTransport answers deliveries from a status table keyed by payload and
// serves snapshots per federation id.
type fakeTransport struct {
	mu         sync.Mutex
	statuses   map[string]int
	failures   map[string]error
	deliveries []delivery
	snapshots  map[string]federationv1.ServerSnapshot
	fetches    []string
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		statuses:  make(map[string]int),
		failures:  make(map[string]error),
		snapshots: make(map[string]federationv1.ServerSnapshot),
	}
}

func (f *fakeTransport) DeliverEvent(_ context.Context, peer entities.Peer, body []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deliveries = append(f.deliveries, delivery{peer: peer.Domain, body: string(body)})
	if err, ok := f.failures[string(body)]; ok {
		return 0, err
	}
	if status, ok := f.statuses[string(body)]; ok {
		return status, nil
	}
	return 202, nil
}

func (f *fakeTransport) FetchSnapshot(_ context.Context, peer entities.Peer, federationID string, _ int) (federationv1.SnapshotEnvelope, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches = append(f.fetches, peer.Domain+"/"+federationID)
	snapshot, ok := f.snapshots[federationID]
	if !ok {
		return federationv1.SnapshotEnvelope{}, fmt.Errorf("peer %s has no snapshot for %s", peer.Domain, federationID)
	}
	return snapshot.Envelope()
}

func (f *fakeTransport) setStatus(body string, status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[body] = status
}

func (f *fakeTransport) Deliveries() []delivery {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]delivery(nil), f.deliveries...)
}

func (f *fakeTransport) Fetches() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.fetches...)
}

type countingMetrics struct {
	mu       sync.Mutex
	outcomes map[string]int
}

func (m *countingMetrics) ObserveEvent(string)               {}
func (m *countingMetrics) ObserveSignatureFailure()          {}
func (m *countingMetrics) ObserveSnapshotImport(string)      {}
func (m *countingMetrics) ObserveSnapshotItemSkipped(string) {}

func (m *countingMetrics) ObserveOutboxDelivery(result string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.outcomes == nil {
		m.outcomes = make(map[string]int)
	}
	m.outcomes[result]++
}

func testDirectory(t *testing.T, domains ...string) *peers.Directory {
	t.Helper()
	items := make([]entities.Peer, 0, len(domains))
	for _, domain := range domains {
		items = append(items, entities.Peer{
			Domain:  domain,
			BaseURL: "https://" + domain,
			Keys:    []entities.PeerKey{{ID: "k1", Secret: "secret-" + domain}},
		})
	}
	directory, err := peers.NewDirectory(items)
	require.NoError(t, err)
	return directory
}

// enqueue writes one row per peer for the next sequence of streamID; the
// payload is "<stream>#<sequence>" so fakes can key on it.
func enqueue(t *testing.T, store *memory.Store, streamID string, peerDomains ...string) int64 {
	t.Helper()
	sequence, err := store.EnqueueStreamEvent(context.Background(), streamID, func(sequence int64) ([]ports.OutboxMessage, error) {
		rows := make([]ports.OutboxMessage, 0, len(peerDomains))
		for _, domain := range peerDomains {
			id, err := store.NewID(context.Background())
			if err != nil {
				return nil, err
			}
			rows = append(rows, ports.OutboxMessage{
				OutboxID:   id,
				PeerDomain: domain,
				EventID:    fmt.Sprintf("evt-%s-%d", streamID, sequence),
				EventType:  "server.upsert",
				StreamID:   streamID,
				Sequence:   sequence,
				Payload:    []byte(fmt.Sprintf("%s#%d", streamID, sequence)),
				CreatedAt:  testClock.now,
			})
		}
		return rows, nil
	})
	require.NoError(t, err)
	return sequence
}

func bodies(items []delivery) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, item.peer+" "+item.body)
	}
	return out
}
