package commands

import (
	"context"
	"errors"
	"log/slog"
	"time"

	application "fedsync/contexts/federation/replication-service/application"
	"fedsync/contexts/federation/replication-service/domain/entities"
	domainerrors "fedsync/contexts/federation/replication-service/domain/errors"
	"fedsync/contexts/federation/replication-service/domain/services"
	"fedsync/contexts/federation/replication-service/ports"
)

// AuthenticateRequestUseCase resolves the calling peer and checks its signature.
// It runs before any inbound payload reaches the applier.
type AuthenticateRequestUseCase struct {
	Peers     ports.PeerDirectory
	Clock     ports.Clock
	Tolerance time.Duration
	Metrics   ports.ReplicationMetrics
	Logger    *slog.Logger
}

func (u AuthenticateRequestUseCase) Execute(ctx context.Context, req services.SignedRequest) (entities.Peer, error) {
	logger := application.ResolveLogger(u.Logger)
	metrics := application.ResolveMetrics(u.Metrics)

	var resolved *entities.Peer
	peer, err := u.Peers.PeerByDomain(ctx, req.Domain)
	switch {
	case err == nil:
		resolved = &peer
	case errors.Is(err, domainerrors.ErrPeerUnknown):
	default:
		logger.Error("peer lookup failed",
			"event", "federation_peer_lookup_failed",
			"module", application.ModuleName,
			"layer", "application",
			"peer_domain", req.Domain,
			"error", err.Error(),
		)
		return entities.Peer{}, err
	}

	if !services.VerifySignature(resolved, req, u.now(), u.Tolerance) {
		metrics.ObserveSignatureFailure()
		logger.Warn("federation signature rejected",
			"event", "federation_signature_rejected",
			"module", application.ModuleName,
			"layer", "application",
			"peer_domain", req.Domain,
			"key_id", req.KeyID,
			"path", req.Path,
		)
		return entities.Peer{}, domainerrors.ErrUnauthorized
	}
	return peer, nil
}

func (u AuthenticateRequestUseCase) now() time.Time {
	if u.Clock == nil {
		return time.Now().UTC()
	}
	return u.Clock.Now().UTC()
}
