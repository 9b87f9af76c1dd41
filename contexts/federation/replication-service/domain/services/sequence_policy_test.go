package services

import (
	"errors"
	"testing"

	"fedsync/contexts/federation/replication-service/domain/entities"
	domainerrors "fedsync/contexts/federation/replication-service/domain/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testStream = entities.StreamKey{OriginDomain: "remote.example", StreamID: "server:srv-1"}

func cursorAt(last int64, seen ...string) *entities.SequenceCursor {
	return &entities.SequenceCursor{
		OriginDomain:        testStream.OriginDomain,
		StreamID:            testStream.StreamID,
		LastAppliedSequence: last,
		SeenEventIDs:        seen,
	}
}

func TestClassifySequence(t *testing.T) {
	cases := []struct {
		name     string
		cursor   *entities.SequenceCursor
		eventID  string
		sequence int64
		baseline bool
		want     SequenceDecision
	}{
		{name: "first event of untracked stream", cursor: nil, eventID: "e1", sequence: 1, want: SequenceDecisionApply},
		{name: "baseline accepts later first delivery", cursor: nil, eventID: "e7", sequence: 7, baseline: true, want: SequenceDecisionApply},
		{name: "next in order", cursor: cursorAt(4, "e4"), eventID: "e5", sequence: 5, want: SequenceDecisionApply},
		{name: "redelivery of last event", cursor: cursorAt(4, "e4"), eventID: "e4", sequence: 4, want: SequenceDecisionDuplicate},
		{name: "same sequence different id", cursor: cursorAt(4, "e4"), eventID: "other", sequence: 4, want: SequenceDecisionStale},
		{name: "older sequence", cursor: cursorAt(4, "e4"), eventID: "e2", sequence: 2, want: SequenceDecisionStale},
		{name: "baseline ignored once tracked", cursor: cursorAt(4, "e4"), eventID: "e3", sequence: 3, baseline: true, want: SequenceDecisionStale},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ClassifySequence(testStream, tc.cursor, tc.eventID, tc.sequence, tc.baseline)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestClassifySequenceGap(t *testing.T) {
	_, err := ClassifySequence(testStream, cursorAt(4, "e4"), "e9", 9, false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domainerrors.ErrSequenceGap))

	var gap *domainerrors.SequenceGapError
	require.True(t, errors.As(err, &gap))
	assert.Equal(t, int64(5), gap.Expected)
	assert.Equal(t, int64(9), gap.Received)
	assert.Equal(t, testStream.OriginDomain, gap.OriginDomain)
	assert.Equal(t, testStream.StreamID, gap.StreamID)
}

func TestClassifySequenceUntrackedStreamStrict(t *testing.T) {
	_, err := ClassifySequence(testStream, nil, "e3", 3, false)
	var gap *domainerrors.SequenceGapError
	require.True(t, errors.As(err, &gap))
	assert.Equal(t, int64(1), gap.Expected)
}

func TestClassifySequenceRejectsNonPositive(t *testing.T) {
	_, err := ClassifySequence(testStream, nil, "e0", 0, true)
	assert.True(t, errors.Is(err, domainerrors.ErrMalformedPayload))
}
