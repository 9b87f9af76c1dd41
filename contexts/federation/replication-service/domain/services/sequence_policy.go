package services

import (
	"fedsync/contexts/federation/replication-service/domain/entities"
	domainerrors "fedsync/contexts/federation/replication-service/domain/errors"
)

type SequenceDecision string

const (
	SequenceDecisionApply     SequenceDecision = "apply"
	SequenceDecisionDuplicate SequenceDecision = "duplicate"
	SequenceDecisionStale     SequenceDecision = "stale"
)

// ClassifySequence places an event against the stream cursor. A nil cursor is an
// untracked stream and behaves as last_applied_sequence = 0, unless acceptBaseline
// lets the first delivery establish the stream position.
func ClassifySequence(
	key entities.StreamKey,
	cursor *entities.SequenceCursor,
	eventID string,
	sequence int64,
	acceptBaseline bool,
) (SequenceDecision, error) {
	if sequence < 1 {
		return "", domainerrors.Malformed("sequence must be at least 1")
	}

	if cursor == nil {
		if sequence == 1 || acceptBaseline {
			return SequenceDecisionApply, nil
		}
		return "", &domainerrors.SequenceGapError{
			OriginDomain: key.OriginDomain,
			StreamID:     key.StreamID,
			Expected:     1,
			Received:     sequence,
		}
	}

	last := cursor.LastAppliedSequence
	switch {
	case sequence == last && cursor.HasSeen(eventID):
		return SequenceDecisionDuplicate, nil
	case sequence <= last:
		return SequenceDecisionStale, nil
	case sequence == last+1:
		return SequenceDecisionApply, nil
	default:
		return "", &domainerrors.SequenceGapError{
			OriginDomain: key.OriginDomain,
			StreamID:     key.StreamID,
			Expected:     last + 1,
			Received:     sequence,
		}
	}
}
