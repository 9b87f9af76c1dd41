package peerclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	application "fedsync/contexts/federation/replication-service/application"
	"fedsync/contexts/federation/replication-service/domain/entities"
	domainerrors "fedsync/contexts/federation/replication-service/domain/errors"
	"fedsync/contexts/federation/replication-service/domain/services"
	"fedsync/contexts/federation/replication-service/ports"
	federationv1 "fedsync/contracts/gen/federation/v1"
)

const (
	DefaultTimeout       = 15 * time.Second
	maxSnapshotBodyBytes = 32 << 20
)

// fallbackClient serves a Client built without New. Peer calls always carry
// a deadline even when the caller's context has none.
var fallbackClient = &http.Client{Timeout: DefaultTimeout}

// Client signs and sends requests to peer instances.
type Client struct {
	HTTPClient  *http.Client
	LocalDomain string
	Clock       ports.Clock
	Logger      *slog.Logger
}

// New builds a client whose requests give up after timeout. A non-positive
// timeout falls back to DefaultTimeout.
func New(localDomain string, timeout time.Duration, clock ports.Clock, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		HTTPClient:  &http.Client{Timeout: timeout},
		LocalDomain: entities.NormalizeDomain(localDomain),
		Clock:       clock,
		Logger:      logger,
	}
}

func (c *Client) DeliverEvent(ctx context.Context, peer entities.Peer, body []byte) (int, error) {
	resp, err := c.do(ctx, peer, http.MethodPost, federationv1.EventsPath, "", body)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	return resp.StatusCode, nil
}

func (c *Client) FetchSnapshot(
	ctx context.Context,
	peer entities.Peer,
	federationID string,
	messagesPerChannel int,
) (federationv1.SnapshotEnvelope, error) {
	query := ""
	if messagesPerChannel > 0 {
		query = "messages_per_channel=" + strconv.Itoa(messagesPerChannel)
	}
	resp, err := c.do(ctx, peer, http.MethodGet, federationv1.ServerSnapshotPath(federationID), query, nil)
	if err != nil {
		return federationv1.SnapshotEnvelope{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return federationv1.SnapshotEnvelope{}, fmt.Errorf("snapshot pull from %s: status %d", peer.Domain, resp.StatusCode)
	}
	var snapshot federationv1.SnapshotEnvelope
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxSnapshotBodyBytes)).Decode(&snapshot); err != nil {
		return federationv1.SnapshotEnvelope{}, fmt.Errorf("decode snapshot from %s: %w", peer.Domain, err)
	}
	return snapshot, nil
}

// PushSnapshot sends a snapshot to a peer for import.
func (c *Client) PushSnapshot(ctx context.Context, peer entities.Peer, snapshot federationv1.ServerSnapshot) (int, error) {
	body, err := json.Marshal(snapshot)
	if err != nil {
		return 0, err
	}
	resp, err := c.do(ctx, peer, http.MethodPost, federationv1.SnapshotsPath, "", body)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	return resp.StatusCode, nil
}

func (c *Client) do(
	ctx context.Context,
	peer entities.Peer,
	method string,
	path string,
	rawQuery string,
	body []byte,
) (*http.Response, error) {
	if peer.BaseURL == "" {
		return nil, fmt.Errorf("peer %s has no base url: %w", peer.Domain, domainerrors.ErrInvalidRequest)
	}
	key, ok := peer.SigningKey()
	if !ok {
		return nil, fmt.Errorf("peer %s has no signing key: %w", peer.Domain, domainerrors.ErrInvalidRequest)
	}

	target := peer.BaseURL + path
	if rawQuery != "" {
		target += "?" + rawQuery
	}
	req, err := http.NewRequestWithContext(ctx, method, target, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	signed := services.SignRequest(services.SignedRequest{
		Domain: c.LocalDomain,
		Method: method,
		Path:   path,
		Body:   string(body),
	}, key, c.now())
	req.Header.Set(federationv1.HeaderDomain, signed.Domain)
	req.Header.Set(federationv1.HeaderKeyID, signed.KeyID)
	req.Header.Set(federationv1.HeaderTimestamp, signed.Timestamp)
	req.Header.Set(federationv1.HeaderSignature, signed.Signature)
	if len(body) > 0 {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient().Do(req)
	if err != nil {
		application.ResolveLogger(c.Logger).Warn("peer request failed",
			"event", "federation_peer_request_failed",
			"module", application.ModuleName,
			"layer", "adapter",
			"peer_domain", peer.Domain,
			"method", method,
			"path", path,
			"error", err.Error(),
		)
		return nil, err
	}
	return resp, nil
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return fallbackClient
}

func (c *Client) now() time.Time {
	if c.Clock == nil {
		return time.Now().UTC()
	}
	return c.Clock.Now()
}
