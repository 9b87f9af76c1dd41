package httptransport

// ReceiveEventResponse is returned for every accepted event, including
// duplicate and stale deliveries.
type ReceiveEventResponse struct {
	Status              string `json:"status"`
	Outcome             string `json:"outcome"`
	EventID             string `json:"event_id"`
	OriginDomain        string `json:"origin_domain"`
	StreamID            string `json:"stream_id"`
	Sequence            int64  `json:"sequence"`
	LastAppliedSequence int64  `json:"last_applied_sequence"`
}

type ImportSnapshotResponse struct {
	Status           string `json:"status"`
	ServerID         string `json:"server_id"`
	FederationID     string `json:"federation_id"`
	OriginDomain     string `json:"origin_domain"`
	ChannelsUpserted int    `json:"channels_upserted"`
	MessagesUpserted int    `json:"messages_upserted"`
	ChannelsSkipped  int    `json:"channels_skipped"`
	MessagesSkipped  int    `json:"messages_skipped"`
}

type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Domain  string `json:"domain"`
}

type ErrorResponse struct {
	Code             string `json:"code"`
	Message          string `json:"message"`
	Retryable        bool   `json:"retryable,omitempty"`
	ExpectedSequence int64  `json:"expected_sequence,omitempty"`
}
