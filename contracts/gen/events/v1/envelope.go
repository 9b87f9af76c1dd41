package v1

import (
	"encoding/json"
	"time"
)

// Envelope is the in-process bus envelope shared by fedsync workers.
// This package is generated-contract-only and must stay backward compatible.
type Envelope struct {
	EventID          string          `json:"event_id"`
	EventType        string          `json:"event_type"`
	OccurredAt       time.Time       `json:"occurred_at"`
	SourceService    string          `json:"source_service"`
	SchemaVersion    int             `json:"schema_version"`
	PartitionKeyPath string          `json:"partition_key_path"`
	PartitionKey     string          `json:"partition_key"`
	Data             json.RawMessage `json:"data"`
}

// SequenceGapNotice is the Data payload of federation.sequence_gap envelopes.
type SequenceGapNotice struct {
	OriginDomain     string `json:"origin_domain"`
	StreamID         string `json:"stream_id"`
	ExpectedSequence int64  `json:"expected_sequence"`
	ReceivedSequence int64  `json:"received_sequence"`
	EventID          string `json:"event_id"`
}
