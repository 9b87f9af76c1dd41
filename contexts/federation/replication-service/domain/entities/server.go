package entities

import (
	"strings"
	"time"

	domainerrors "fedsync/contexts/federation/replication-service/domain/errors"
)

// Server is a community space, either authored locally or mirrored from a peer.
type Server struct {
	ServerID          string
	IsFederatedMirror bool
	FederationID      string
	OriginDomain      string
	Name              string
	Description       string
	IsPublic          bool
	MemberCount       int
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// ServerAttrs are the mutable fields refreshed on every mirror upsert.
type ServerAttrs struct {
	Name        string
	Description string
	IsPublic    bool
	MemberCount int
}

func (a ServerAttrs) Validate() error {
	if strings.TrimSpace(a.Name) == "" {
		return domainerrors.Malformed("server name is required")
	}
	if a.MemberCount < 0 {
		return domainerrors.Malformed("server member_count must not be negative")
	}
	return nil
}

// Apply copies mutable attributes onto a mirror row and pins mirror identity.
func (s Server) Apply(attrs ServerAttrs, originDomain string, now time.Time) Server {
	s.Name = strings.TrimSpace(attrs.Name)
	s.Description = attrs.Description
	s.IsPublic = attrs.IsPublic
	s.MemberCount = attrs.MemberCount
	s.IsFederatedMirror = true
	s.OriginDomain = originDomain
	s.UpdatedAt = now.UTC()
	return s
}

// StreamID is the ordering domain used for events about this server.
func (s Server) StreamID() string {
	return ServerStreamID(s.FederationIDOrLocal())
}

// FederationIDOrLocal returns the identity peers know this server by.
func (s Server) FederationIDOrLocal() string {
	if s.IsFederatedMirror {
		return s.FederationID
	}
	return s.ServerID
}

func ServerStreamID(federationID string) string {
	return "server:" + federationID
}

// FederationIDFromStream extracts the server id from a "server:<id>" stream.
func FederationIDFromStream(streamID string) (string, bool) {
	federationID, ok := strings.CutPrefix(strings.TrimSpace(streamID), "server:")
	if !ok || strings.TrimSpace(federationID) == "" {
		return "", false
	}
	return federationID, true
}
