// Package replicationservice contains the fedsync implementation of server
// mirroring between federated instances.
//
// The module authenticates peer deliveries, orders them per stream through a
// sequence ledger, and applies them idempotently to mirror rows. Snapshot
// transfer bootstraps and reconciles mirrors through the same mirror store.
package replicationservice
