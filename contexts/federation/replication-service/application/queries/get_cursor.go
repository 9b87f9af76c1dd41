package queries

import (
	"context"
	"strings"

	"fedsync/contexts/federation/replication-service/domain/entities"
	domainerrors "fedsync/contexts/federation/replication-service/domain/errors"
	"fedsync/contexts/federation/replication-service/ports"
)

type GetCursorQuery struct {
	OriginDomain string
	StreamID     string
}

type GetCursorResult struct {
	Cursor entities.SequenceCursor
	Found  bool
}

type GetCursorUseCase struct {
	Ledger ports.SequenceLedger
}

func (u GetCursorUseCase) Execute(ctx context.Context, query GetCursorQuery) (GetCursorResult, error) {
	key := entities.StreamKey{
		OriginDomain: entities.NormalizeDomain(query.OriginDomain),
		StreamID:     strings.TrimSpace(query.StreamID),
	}
	if key.OriginDomain == "" || key.StreamID == "" {
		return GetCursorResult{}, domainerrors.ErrInvalidRequest
	}
	cursor, found, err := u.Ledger.GetCursor(ctx, key)
	if err != nil {
		return GetCursorResult{}, err
	}
	if !found {
		cursor = entities.SequenceCursor{OriginDomain: key.OriginDomain, StreamID: key.StreamID}
	}
	return GetCursorResult{Cursor: cursor, Found: found}, nil
}
