package commands_test

import (
	"context"
	"testing"

	"fedsync/contexts/federation/replication-service/adapters/memory"
	"fedsync/contexts/federation/replication-service/application/commands"
	domainerrors "fedsync/contexts/federation/replication-service/domain/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResetCursor(t *testing.T) {
	store := memory.NewStore(nil)
	uc := commands.ResetCursorUseCase{Ledger: store, Locker: store, Clock: testClock}
	ctx := context.Background()

	result, err := uc.Execute(ctx, commands.ResetCursorCommand{OriginDomain: "REMOTE.example", StreamID: "server:srv-1", Sequence: 5})
	require.NoError(t, err)
	assert.True(t, result.Changed)
	assert.Equal(t, int64(5), result.Cursor.LastAppliedSequence)
	assert.Equal(t, remoteDomain, result.Cursor.OriginDomain)

	t.Run("forward only keeps a newer cursor", func(t *testing.T) {
		result, err := uc.Execute(ctx, commands.ResetCursorCommand{OriginDomain: remoteDomain, StreamID: "server:srv-1", Sequence: 3, ForwardOnly: true})
		require.NoError(t, err)
		assert.False(t, result.Changed)
		assert.Equal(t, int64(5), result.Cursor.LastAppliedSequence)
	})

	t.Run("forward only advances", func(t *testing.T) {
		result, err := uc.Execute(ctx, commands.ResetCursorCommand{OriginDomain: remoteDomain, StreamID: "server:srv-1", Sequence: 9, ForwardOnly: true})
		require.NoError(t, err)
		assert.True(t, result.Changed)
		assert.Equal(t, int64(9), result.Cursor.LastAppliedSequence)
	})

	t.Run("operator reset may rewind", func(t *testing.T) {
		result, err := uc.Execute(ctx, commands.ResetCursorCommand{OriginDomain: remoteDomain, StreamID: "server:srv-1", Sequence: 0})
		require.NoError(t, err)
		assert.True(t, result.Changed)
		assert.Zero(t, result.Cursor.LastAppliedSequence)
	})

	t.Run("invalid input", func(t *testing.T) {
		_, err := uc.Execute(ctx, commands.ResetCursorCommand{OriginDomain: remoteDomain, StreamID: "", Sequence: 1})
		require.ErrorIs(t, err, domainerrors.ErrInvalidRequest)
		_, err = uc.Execute(ctx, commands.ResetCursorCommand{OriginDomain: remoteDomain, StreamID: "server:srv-1", Sequence: -1})
		require.ErrorIs(t, err, domainerrors.ErrInvalidRequest)
	})
}
