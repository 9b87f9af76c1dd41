package memory

import (
	"context"
	"sync"
	"time"

	"fedsync/contexts/federation/replication-service/domain/entities"
	domainerrors "fedsync/contexts/federation/replication-service/domain/errors"
)

func (s *Store) GetCursor(_ context.Context, key entities.StreamKey) (entities.SequenceCursor, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cursor, ok := s.cursors[key]
	if !ok {
		return entities.SequenceCursor{}, false, nil
	}
	return cursor.Clone(), true, nil
}

func (s *Store) SaveCursor(_ context.Context, next entities.SequenceCursor, expected int64, existed bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := next.Key()
	current, ok := s.cursors[key]
	if ok != existed {
		return domainerrors.ErrCursorConflict
	}
	if ok && current.LastAppliedSequence != expected {
		return domainerrors.ErrCursorConflict
	}
	s.cursors[key] = next.Clone()
	return nil
}

func (s *Store) ResetCursor(
	_ context.Context,
	key entities.StreamKey,
	sequence int64,
	now time.Time,
) (entities.SequenceCursor, error) {
	if sequence < 0 {
		return entities.SequenceCursor{}, domainerrors.ErrInvalidRequest
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cursor := entities.SequenceCursor{
		OriginDomain:        key.OriginDomain,
		StreamID:            key.StreamID,
		LastAppliedSequence: sequence,
		UpdatedAt:           now.UTC(),
	}
	s.cursors[key] = cursor
	return cursor.Clone(), nil
}

// WithStreamLock runs fn while holding the in-process lock for key.
func (s *Store) WithStreamLock(ctx context.Context, key entities.StreamKey, fn func(context.Context) error) error {
	unlock, err := s.locks.lock(ctx, key.String())
	if err != nil {
		return err
	}
	defer unlock()
	return fn(ctx)
}

// keyedMutex hands out one lock per key and forgets keys nobody holds or waits on.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refLock
}

type refLock struct {
	sem  chan struct{}
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*refLock)}
}

func (k *keyedMutex) lock(ctx context.Context, key string) (func(), error) {
	k.mu.Lock()
	entry, ok := k.locks[key]
	if !ok {
		entry = &refLock{sem: make(chan struct{}, 1)}
		k.locks[key] = entry
	}
	entry.refs++
	k.mu.Unlock()

	select {
	case entry.sem <- struct{}{}:
		return func() {
			<-entry.sem
			k.release(key, entry)
		}, nil
	case <-ctx.Done():
		k.release(key, entry)
		return nil, ctx.Err()
	}
}

func (k *keyedMutex) release(key string, entry *refLock) {
	k.mu.Lock()
	defer k.mu.Unlock()

	entry.refs--
	if entry.refs == 0 {
		delete(k.locks, key)
	}
}
