package httpadapter

import (
	"context"
	"encoding/json"
	"log/slog"

	application "fedsync/contexts/federation/replication-service/application"
	"fedsync/contexts/federation/replication-service/application/commands"
	"fedsync/contexts/federation/replication-service/application/queries"
	domainerrors "fedsync/contexts/federation/replication-service/domain/errors"
	"fedsync/contexts/federation/replication-service/domain/services"
	httptransport "fedsync/contexts/federation/replication-service/transport/http"
	federationv1 "fedsync/contracts/gen/federation/v1"
)

type Handler struct {
	Authenticate   commands.AuthenticateRequestUseCase
	ReceiveEvent   commands.ReceiveEventUseCase
	BuildSnapshot  queries.BuildServerSnapshotUseCase
	ImportSnapshot commands.ImportServerSnapshotUseCase
	Logger         *slog.Logger
}

// ReceiveEventHandler godoc
// @Summary Receive a federation event
// @Description Verifies the peer signature, then classifies the event against the stream cursor and applies it.
// @Tags federation
// @Accept json
// @Produce json
// @Param X-Federation-Domain header string true "Sending instance domain"
// @Param X-Federation-Key-Id header string true "Shared key id"
// @Param X-Federation-Timestamp header string true "Unix seconds"
// @Param X-Federation-Signature header string true "Hex HMAC-SHA256 of the canonical payload"
// @Param request body federationv1.Event true "Federation event"
// @Success 200 {object} httptransport.ReceiveEventResponse
// @Failure 400 {object} httptransport.ErrorResponse
// @Failure 401 {object} httptransport.ErrorResponse
// @Failure 409 {object} httptransport.ErrorResponse
// @Failure 422 {object} httptransport.ErrorResponse
// @Failure 429 {object} httptransport.ErrorResponse
// @Failure 500 {object} httptransport.ErrorResponse
// @Router /federation/v1/events [post]
func (h Handler) ReceiveEventHandler(ctx context.Context, req services.SignedRequest) (httptransport.ReceiveEventResponse, error) {
	peer, err := h.Authenticate.Execute(ctx, req)
	if err != nil {
		return httptransport.ReceiveEventResponse{}, err
	}

	var event federationv1.Event
	if err := json.Unmarshal([]byte(req.Body), &event); err != nil {
		return httptransport.ReceiveEventResponse{}, domainerrors.Malformed("event body must be valid JSON")
	}

	result, err := h.ReceiveEvent.Execute(ctx, commands.ReceiveEventCommand{
		Event:               event,
		AuthenticatedDomain: peer.Domain,
	})
	if err != nil {
		return httptransport.ReceiveEventResponse{}, err
	}
	return httptransport.ReceiveEventResponse{
		Status:              "ok",
		Outcome:             string(result.Outcome),
		EventID:             result.EventID,
		OriginDomain:        result.OriginDomain,
		StreamID:            result.StreamID,
		Sequence:            result.Sequence,
		LastAppliedSequence: result.LastAppliedSequence,
	}, nil
}

// GetSnapshotHandler godoc
// @Summary Pull a server snapshot
// @Description Returns a bounded snapshot of a public local server for a signed peer.
// @Tags federation
// @Produce json
// @Param X-Federation-Domain header string true "Requesting instance domain"
// @Param X-Federation-Key-Id header string true "Shared key id"
// @Param X-Federation-Timestamp header string true "Unix seconds"
// @Param X-Federation-Signature header string true "Hex HMAC-SHA256 of the canonical payload"
// @Param server_id path string true "Origin server id"
// @Param messages_per_channel query int false "Newest messages per channel (default 50, max 200)"
// @Success 200 {object} federationv1.ServerSnapshot
// @Failure 401 {object} httptransport.ErrorResponse
// @Failure 404 {object} httptransport.ErrorResponse
// @Failure 500 {object} httptransport.ErrorResponse
// @Router /federation/v1/servers/{server_id}/snapshot [get]
func (h Handler) GetSnapshotHandler(
	ctx context.Context,
	req services.SignedRequest,
	serverID string,
	messagesPerChannel int,
) (federationv1.ServerSnapshot, error) {
	peer, err := h.Authenticate.Execute(ctx, req)
	if err != nil {
		return federationv1.ServerSnapshot{}, err
	}

	snapshot, err := h.BuildSnapshot.Execute(ctx, queries.BuildServerSnapshotQuery{
		ServerID:           serverID,
		MessagesPerChannel: messagesPerChannel,
		PublicOnly:         true,
	})
	if err != nil {
		application.ResolveLogger(h.Logger).Warn("snapshot pull failed",
			"event", "http_federation_snapshot_pull_failed",
			"module", application.ModuleName,
			"layer", "transport",
			"peer_domain", peer.Domain,
			"server_id", serverID,
			"error", err.Error(),
		)
		return federationv1.ServerSnapshot{}, err
	}
	return snapshot, nil
}

// ImportSnapshotHandler godoc
// @Summary Push a server snapshot
// @Description Imports a snapshot sent by its origin peer. Invalid channels or messages are skipped.
// @Tags federation
// @Accept json
// @Produce json
// @Param X-Federation-Domain header string true "Origin instance domain"
// @Param X-Federation-Key-Id header string true "Shared key id"
// @Param X-Federation-Timestamp header string true "Unix seconds"
// @Param X-Federation-Signature header string true "Hex HMAC-SHA256 of the canonical payload"
// @Param request body federationv1.ServerSnapshot true "Snapshot payload"
// @Success 200 {object} httptransport.ImportSnapshotResponse
// @Failure 400 {object} httptransport.ErrorResponse
// @Failure 401 {object} httptransport.ErrorResponse
// @Failure 500 {object} httptransport.ErrorResponse
// @Router /federation/v1/snapshots [post]
func (h Handler) ImportSnapshotHandler(ctx context.Context, req services.SignedRequest) (httptransport.ImportSnapshotResponse, error) {
	peer, err := h.Authenticate.Execute(ctx, req)
	if err != nil {
		return httptransport.ImportSnapshotResponse{}, err
	}

	snapshot, err := federationv1.DecodeSnapshotEnvelope([]byte(req.Body))
	if err != nil {
		return httptransport.ImportSnapshotResponse{}, domainerrors.Malformed("snapshot body must be valid JSON")
	}

	result, err := h.ImportSnapshot.Execute(ctx, commands.ImportServerSnapshotCommand{
		Snapshot:     snapshot,
		OriginDomain: peer.Domain,
	})
	if err != nil {
		return httptransport.ImportSnapshotResponse{}, err
	}
	return httptransport.ImportSnapshotResponse{
		Status:           "ok",
		ServerID:         result.Server.ServerID,
		FederationID:     result.Server.FederationID,
		OriginDomain:     result.Server.OriginDomain,
		ChannelsUpserted: result.ChannelsUpserted,
		MessagesUpserted: result.MessagesUpserted,
		ChannelsSkipped:  result.ChannelsSkipped,
		MessagesSkipped:  result.MessagesSkipped,
	}, nil
}
