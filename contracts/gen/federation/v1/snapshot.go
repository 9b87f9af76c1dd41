package v1

import (
	"encoding/json"
	"net/url"
)

// ServerSnapshot is the bounded point-in-time export used to bootstrap a mirror.
type ServerSnapshot struct {
	Version  int            `json:"version"`
	Server   ServerData     `json:"server"`
	Channels []ChannelData  `json:"channels"`
	Messages []MessageData  `json:"messages"`
	Stream   *StreamPointer `json:"stream,omitempty"`
}

// SnapshotEnvelope is the inbound form of ServerSnapshot. Channels and
// messages stay raw so one badly typed item is skipped by the importer
// instead of failing the whole document.
type SnapshotEnvelope struct {
	Version  int               `json:"version"`
	Server   ServerData        `json:"server"`
	Channels []json.RawMessage `json:"channels"`
	Messages []json.RawMessage `json:"messages"`
	Stream   *StreamPointer    `json:"stream,omitempty"`
}

// DecodeSnapshotEnvelope parses a snapshot document. Only the version,
// server and stream fields are type checked here.
func DecodeSnapshotEnvelope(data []byte) (SnapshotEnvelope, error) {
	var envelope SnapshotEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return SnapshotEnvelope{}, err
	}
	return envelope, nil
}

// Envelope converts an outbound snapshot into the form importers consume.
func (s ServerSnapshot) Envelope() (SnapshotEnvelope, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return SnapshotEnvelope{}, err
	}
	return DecodeSnapshotEnvelope(data)
}

// StreamPointer tells an importer where the origin's event stream stood
// when the snapshot was cut.
type StreamPointer struct {
	ID       string `json:"id"`
	Sequence int64  `json:"sequence"`
}

// ServerSnapshotPath is the signed pull path for one server's snapshot.
func ServerSnapshotPath(serverID string) string {
	return "/federation/v1/servers/" + url.PathEscape(serverID) + "/snapshot"
}
