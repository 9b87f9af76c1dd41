package services

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"fedsync/contexts/federation/replication-service/domain/entities"
)

const DefaultSignatureTolerance = 5 * time.Minute

// SignedRequest is everything a peer signed, as received on the wire.
type SignedRequest struct {
	Domain    string
	Method    string
	Path      string
	Body      string
	Timestamp string
	KeyID     string
	Signature string
}

// SignaturePayload is the canonical string both sides must reproduce byte for byte.
func SignaturePayload(domain string, method string, path string, body string, timestamp string) string {
	return strings.Join([]string{
		domain,
		strings.ToUpper(method),
		path,
		body,
		timestamp,
	}, "\n")
}

// SignPayload returns the lowercase hex HMAC-SHA256 of payload.
func SignPayload(payload string, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

// SignRequest fills Timestamp and Signature for an outbound request.
func SignRequest(req SignedRequest, key entities.PeerKey, now time.Time) SignedRequest {
	req.Timestamp = strconv.FormatInt(now.UTC().Unix(), 10)
	req.KeyID = key.ID
	req.Signature = SignPayload(
		SignaturePayload(req.Domain, req.Method, req.Path, req.Body, req.Timestamp),
		key.Secret,
	)
	return req
}

// VerifySignature authenticates req against peer. It never errors: every
// rejection reason collapses to false.
func VerifySignature(peer *entities.Peer, req SignedRequest, now time.Time, tolerance time.Duration) bool {
	if peer == nil {
		return false
	}
	if entities.NormalizeDomain(req.Domain) == "" ||
		entities.NormalizeDomain(peer.Domain) != entities.NormalizeDomain(req.Domain) {
		return false
	}
	if !timestampWithinTolerance(req.Timestamp, now, tolerance) {
		return false
	}

	key, ok := peer.KeyByID(req.KeyID)
	if !ok || key.Secret == "" {
		return false
	}

	provided, err := hex.DecodeString(strings.TrimSpace(req.Signature))
	if err != nil || len(provided) != sha256.Size {
		return false
	}

	mac := hmac.New(sha256.New, []byte(key.Secret))
	mac.Write([]byte(SignaturePayload(req.Domain, req.Method, req.Path, req.Body, req.Timestamp)))
	return hmac.Equal(provided, mac.Sum(nil))
}

func timestampWithinTolerance(raw string, now time.Time, tolerance time.Duration) bool {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false
	}
	seconds, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || seconds <= 0 {
		return false
	}
	if tolerance <= 0 {
		tolerance = DefaultSignatureTolerance
	}
	// Compared in whole seconds: a Duration between far-apart instants saturates.
	skew := now.Unix() - seconds
	if skew < 0 {
		skew = -skew
	}
	return skew <= int64(tolerance/time.Second)
}
