package replicationservice

import (
	"log/slog"
	"time"

	httpadapter "fedsync/contexts/federation/replication-service/adapters/http"
	"fedsync/contexts/federation/replication-service/adapters/memory"
	"fedsync/contexts/federation/replication-service/adapters/peers"
	"fedsync/contexts/federation/replication-service/application/commands"
	"fedsync/contexts/federation/replication-service/application/queries"
	"fedsync/contexts/federation/replication-service/application/workers"
	"fedsync/contexts/federation/replication-service/domain/services"
	"fedsync/contexts/federation/replication-service/ports"
)

// Module is the composition surface for federation replication.
// Runtime wiring should consume Handler and the worker values; Store is
// exposed for tests/inspection when the in-memory adapter is used.
type Module struct {
	Handler httpadapter.Handler

	ReceiveEvent   commands.ReceiveEventUseCase
	ImportSnapshot commands.ImportServerSnapshotUseCase
	ResetCursor    commands.ResetCursorUseCase
	PublishEvent   commands.PublishServerEventUseCase
	LocalContent   commands.CreateLocalContentUseCase
	BuildSnapshot  queries.BuildServerSnapshotUseCase
	GetCursor      queries.GetCursorUseCase

	OutboxRelay workers.OutboxRelay
	Reconciler  workers.Reconciler

	Store *memory.Store
}

type Dependencies struct {
	Store     ports.MirrorStore
	Local     ports.LocalContentRepository
	Ledger    ports.SequenceLedger
	Locker    ports.StreamLocker
	Peers     ports.PeerDirectory
	Sequencer ports.StreamSequencer
	Outbox    ports.OutboxRepository
	Transport ports.PeerTransport
	Publisher ports.EventPublisher
	// Subscriber feeds sequence gap notices to the reconciler.
	Subscriber  ports.EventSubscriber
	Metrics     ports.ReplicationMetrics
	Clock       ports.Clock
	IDGenerator ports.IDGenerator

	LocalDomain          string
	SignatureTolerance   time.Duration
	MessagesPerChannel   int
	AcceptStreamBaseline bool
	OutboxBatchSize      int
	OutboxMaxAttempts    int
	Logger               *slog.Logger
}

// NewModule wires replication use cases against explicit ports.
func NewModule(deps Dependencies) Module {
	authenticate := commands.AuthenticateRequestUseCase{
		Peers:     deps.Peers,
		Clock:     deps.Clock,
		Tolerance: deps.SignatureTolerance,
		Metrics:   deps.Metrics,
		Logger:    deps.Logger,
	}
	receiveEvent := commands.ReceiveEventUseCase{
		Store:          deps.Store,
		Ledger:         deps.Ledger,
		Locker:         deps.Locker,
		Clock:          deps.Clock,
		IDGenerator:    deps.IDGenerator,
		Publisher:      deps.Publisher,
		Metrics:        deps.Metrics,
		AcceptBaseline: deps.AcceptStreamBaseline,
		Logger:         deps.Logger,
	}
	importSnapshot := commands.ImportServerSnapshotUseCase{
		Store:   deps.Store,
		Clock:   deps.Clock,
		Metrics: deps.Metrics,
		Logger:  deps.Logger,
	}
	resetCursor := commands.ResetCursorUseCase{
		Ledger: deps.Ledger,
		Locker: deps.Locker,
		Clock:  deps.Clock,
		Logger: deps.Logger,
	}
	publishEvent := commands.PublishServerEventUseCase{
		Local:       deps.Local,
		Outbox:      deps.Outbox,
		Peers:       deps.Peers,
		Clock:       deps.Clock,
		IDGenerator: deps.IDGenerator,
		LocalDomain: deps.LocalDomain,
		Logger:      deps.Logger,
	}
	localContent := commands.CreateLocalContentUseCase{
		Local:       deps.Local,
		Clock:       deps.Clock,
		LocalDomain: deps.LocalDomain,
		Logger:      deps.Logger,
	}
	buildSnapshot := queries.BuildServerSnapshotUseCase{
		Local:                     deps.Local,
		Sequencer:                 deps.Sequencer,
		DefaultMessagesPerChannel: deps.MessagesPerChannel,
		Logger:                    deps.Logger,
	}

	return Module{
		Handler: httpadapter.Handler{
			Authenticate:   authenticate,
			ReceiveEvent:   receiveEvent,
			BuildSnapshot:  buildSnapshot,
			ImportSnapshot: importSnapshot,
			Logger:         deps.Logger,
		},
		ReceiveEvent:   receiveEvent,
		ImportSnapshot: importSnapshot,
		ResetCursor:    resetCursor,
		PublishEvent:   publishEvent,
		LocalContent:   localContent,
		BuildSnapshot:  buildSnapshot,
		GetCursor:      queries.GetCursorUseCase{Ledger: deps.Ledger},
		OutboxRelay: workers.OutboxRelay{
			Outbox:      deps.Outbox,
			Peers:       deps.Peers,
			Transport:   deps.Transport,
			Clock:       deps.Clock,
			Metrics:     deps.Metrics,
			BatchSize:   deps.OutboxBatchSize,
			MaxAttempts: deps.OutboxMaxAttempts,
			Logger:      deps.Logger,
		},
		Reconciler: workers.Reconciler{
			Subscriber:         deps.Subscriber,
			Store:              deps.Store,
			Peers:              deps.Peers,
			Transport:          deps.Transport,
			Import:             importSnapshot,
			ResetCursor:        resetCursor,
			MessagesPerChannel: deps.MessagesPerChannel,
			Logger:             deps.Logger,
		},
	}
}

// InMemoryOptions carries the collaborators the in-memory store cannot provide.
type InMemoryOptions struct {
	LocalDomain          string
	Peers                ports.PeerDirectory
	Transport            ports.PeerTransport
	Publisher            ports.EventPublisher
	Subscriber           ports.EventSubscriber
	Metrics              ports.ReplicationMetrics
	Clock                ports.Clock
	AcceptStreamBaseline bool
}

// NewInMemoryModule wires replication against the in-memory store. It backs
// local development and tests.
func NewInMemoryModule(opts InMemoryOptions, logger *slog.Logger) Module {
	store := memory.NewStore(logger)
	clock := opts.Clock
	if clock == nil {
		clock = store
	}
	directory := opts.Peers
	if directory == nil {
		empty, _ := peers.NewDirectory(nil)
		directory = empty
	}
	module := NewModule(Dependencies{
		Store:                store,
		Local:                store,
		Ledger:               store,
		Locker:               store,
		Peers:                directory,
		Sequencer:            store,
		Outbox:               store,
		Transport:            opts.Transport,
		Publisher:            opts.Publisher,
		Subscriber:           opts.Subscriber,
		Metrics:              opts.Metrics,
		Clock:                clock,
		IDGenerator:          store,
		LocalDomain:          opts.LocalDomain,
		SignatureTolerance:   services.DefaultSignatureTolerance,
		MessagesPerChannel:   queries.DefaultMessagesPerChannel,
		AcceptStreamBaseline: opts.AcceptStreamBaseline,
		Logger:               logger,
	})
	module.Store = store
	return module
}
