package ports

import (
	"context"
	"time"

	"fedsync/contexts/federation/replication-service/domain/entities"
	contractsv1 "fedsync/contracts/gen/events/v1"
	federationv1 "fedsync/contracts/gen/federation/v1"
)

// MirrorStore owns every write made on behalf of a remote origin. All operations
// are upserts keyed by federation identity; unique-constraint races resolve to
// a re-read, never an error.
type MirrorStore interface {
	UpsertMirrorServer(ctx context.Context, federationID string, originDomain string, attrs entities.ServerAttrs, now time.Time) (entities.Server, error)
	UpsertMirrorChannel(ctx context.Context, server entities.Server, federatedSource string, attrs entities.ChannelAttrs, now time.Time) (entities.Channel, error)
	// UpsertMirrorMessage inserts once and returns an existing row unchanged.
	UpsertMirrorMessage(ctx context.Context, channel entities.Channel, federatedSource string, sender entities.SenderDescriptor, attrs entities.MessageAttrs, now time.Time) (entities.Message, error)
	// RemoveMirrorServer cascades to channels and messages. Removing an absent
	// server is not an error; a server owned by another origin is ErrOriginMismatch.
	RemoveMirrorServer(ctx context.Context, federationID string, originDomain string) (bool, error)
	GetMirrorServer(ctx context.Context, federationID string) (entities.Server, error)
	ListMirrorServers(ctx context.Context) ([]entities.Server, error)
}

// LocalContentRepository reads and writes servers authored on this instance.
type LocalContentRepository interface {
	GetServer(ctx context.Context, serverID string) (entities.Server, error)
	GetChannel(ctx context.Context, channelID string) (entities.Channel, error)
	GetMessage(ctx context.Context, messageID string) (entities.Message, error)
	ListChannels(ctx context.Context, serverID string) ([]entities.Channel, error)
	// ListRecentMessages returns at most limit newest messages, oldest first.
	ListRecentMessages(ctx context.Context, channelID string, limit int) ([]entities.Message, error)
	CreateLocalServer(ctx context.Context, attrs entities.ServerAttrs, now time.Time) (entities.Server, error)
	CreateLocalChannel(ctx context.Context, serverID string, attrs entities.ChannelAttrs, now time.Time) (entities.Channel, error)
	CreateLocalMessage(ctx context.Context, channelID string, sender entities.SenderDescriptor, attrs entities.MessageAttrs, now time.Time) (entities.Message, error)
}

// SequenceLedger stores one cursor per (origin_domain, stream_id).
type SequenceLedger interface {
	GetCursor(ctx context.Context, key entities.StreamKey) (entities.SequenceCursor, bool, error)
	// SaveCursor is a compare-and-set: it succeeds only when the stored sequence
	// still equals expected (or no row exists and existed is false). Any other
	// state yields ErrCursorConflict.
	SaveCursor(ctx context.Context, next entities.SequenceCursor, expected int64, existed bool) error
	ResetCursor(ctx context.Context, key entities.StreamKey, sequence int64, now time.Time) (entities.SequenceCursor, error)
}

// StreamLocker serializes work for one stream. Different keys never block each other.
type StreamLocker interface {
	WithStreamLock(ctx context.Context, key entities.StreamKey, fn func(context.Context) error) error
}

// PeerDirectory resolves configured peers. Unknown domains yield ErrPeerUnknown.
type PeerDirectory interface {
	PeerByDomain(ctx context.Context, domain string) (entities.Peer, error)
	ListPeers(ctx context.Context) ([]entities.Peer, error)
}

// StreamSequencer exposes the origin side position of each outbound stream.
type StreamSequencer interface {
	CurrentSequence(ctx context.Context, streamID string) (int64, error)
}

// OutboxMessage is one signed-delivery job: a single event for a single peer.
type OutboxMessage struct {
	OutboxID   string
	PeerDomain string
	EventID    string
	EventType  string
	StreamID   string
	Sequence   int64
	Payload    []byte
	RetryCount int
	LastError  string
	CreatedAt  time.Time
}

// OutboxRepository models origin side sequencing plus worker polling/acknowledgement.
type OutboxRepository interface {
	// EnqueueStreamEvent atomically assigns the next stream sequence and
	// persists the rows returned by build.
	EnqueueStreamEvent(ctx context.Context, streamID string, build func(sequence int64) ([]OutboxMessage, error)) (int64, error)
	// ListPendingOutbox returns pending rows ordered by stream sequence.
	ListPendingOutbox(ctx context.Context, limit int) ([]OutboxMessage, error)
	MarkOutboxSent(ctx context.Context, outboxID string, sentAt time.Time) error
	MarkOutboxRetry(ctx context.Context, outboxID string, lastError string, failed bool, at time.Time) error
}

// PeerTransport performs signed calls against a peer's federation endpoints.
type PeerTransport interface {
	// DeliverEvent returns the peer's HTTP status; err is reserved for transport failures.
	DeliverEvent(ctx context.Context, peer entities.Peer, body []byte) (int, error)
	FetchSnapshot(ctx context.Context, peer entities.Peer, federationID string, messagesPerChannel int) (federationv1.SnapshotEnvelope, error)
}

// ReplicationMetrics receives counters for every classified outcome.
type ReplicationMetrics interface {
	ObserveEvent(outcome string)
	ObserveSignatureFailure()
	ObserveSnapshotImport(result string)
	ObserveSnapshotItemSkipped(kind string)
	ObserveOutboxDelivery(result string)
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}

// EventEnvelope reuses the canonical in-process envelope contract.
type EventEnvelope = contractsv1.Envelope

type EventPublisher interface {
	Publish(ctx context.Context, topic string, event EventEnvelope) error
}

type EventSubscriber interface {
	Subscribe(
		ctx context.Context,
		topic string,
		consumerGroup string,
		handler func(context.Context, EventEnvelope) error,
	) error
}
