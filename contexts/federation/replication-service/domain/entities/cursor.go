package entities

import "time"

type StreamKey struct {
	OriginDomain string
	StreamID     string
}

func (k StreamKey) String() string {
	return k.OriginDomain + "|" + k.StreamID
}

// SequenceCursor is the ledger row for one (origin, stream).
type SequenceCursor struct {
	OriginDomain        string
	StreamID            string
	LastAppliedSequence int64
	SeenEventIDs        []string
	UpdatedAt           time.Time
}

func (c SequenceCursor) Key() StreamKey {
	return StreamKey{OriginDomain: c.OriginDomain, StreamID: c.StreamID}
}

func (c SequenceCursor) HasSeen(eventID string) bool {
	for _, id := range c.SeenEventIDs {
		if id == eventID {
			return true
		}
	}
	return false
}

// Advance moves the cursor to sequence and restarts the seen set with eventID.
func (c SequenceCursor) Advance(sequence int64, eventID string, now time.Time) SequenceCursor {
	c.LastAppliedSequence = sequence
	c.SeenEventIDs = []string{eventID}
	c.UpdatedAt = now.UTC()
	return c
}

func (c SequenceCursor) Clone() SequenceCursor {
	c.SeenEventIDs = append([]string(nil), c.SeenEventIDs...)
	return c
}
