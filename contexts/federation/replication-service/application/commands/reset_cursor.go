package commands

import (
	"context"
	"log/slog"
	"strings"
	"time"

	application "fedsync/contexts/federation/replication-service/application"
	"fedsync/contexts/federation/replication-service/domain/entities"
	domainerrors "fedsync/contexts/federation/replication-service/domain/errors"
	"fedsync/contexts/federation/replication-service/ports"
)

type ResetCursorCommand struct {
	OriginDomain string
	StreamID     string
	Sequence     int64
	// ForwardOnly leaves a cursor that is already at or past Sequence untouched.
	ForwardOnly bool
}

type ResetCursorResult struct {
	Cursor  entities.SequenceCursor
	Changed bool
}

// ResetCursorUseCase is the explicit resync operation. It is the only path
// besides the applier that writes the ledger.
type ResetCursorUseCase struct {
	Ledger ports.SequenceLedger
	Locker ports.StreamLocker
	Clock  ports.Clock
	Logger *slog.Logger
}

func (u ResetCursorUseCase) Execute(ctx context.Context, cmd ResetCursorCommand) (ResetCursorResult, error) {
	logger := application.ResolveLogger(u.Logger)
	key := entities.StreamKey{
		OriginDomain: entities.NormalizeDomain(cmd.OriginDomain),
		StreamID:     strings.TrimSpace(cmd.StreamID),
	}
	if key.OriginDomain == "" || key.StreamID == "" || cmd.Sequence < 0 {
		return ResetCursorResult{}, domainerrors.ErrInvalidRequest
	}

	var result ResetCursorResult
	err := u.Locker.WithStreamLock(ctx, key, func(ctx context.Context) error {
		current, found, err := u.Ledger.GetCursor(ctx, key)
		if err != nil {
			return err
		}
		if cmd.ForwardOnly && found && current.LastAppliedSequence >= cmd.Sequence {
			result = ResetCursorResult{Cursor: current}
			return nil
		}
		cursor, err := u.Ledger.ResetCursor(ctx, key, cmd.Sequence, u.now())
		if err != nil {
			return err
		}
		result = ResetCursorResult{Cursor: cursor, Changed: true}
		return nil
	})
	if err != nil {
		logger.Error("sequence cursor reset failed",
			"event", "federation_cursor_reset_failed",
			"module", application.ModuleName,
			"layer", "application",
			"origin_domain", key.OriginDomain,
			"stream_id", key.StreamID,
			"error", err.Error(),
		)
		return ResetCursorResult{}, err
	}
	if result.Changed {
		logger.Info("sequence cursor reset",
			"event", "federation_cursor_reset",
			"module", application.ModuleName,
			"layer", "application",
			"origin_domain", key.OriginDomain,
			"stream_id", key.StreamID,
			"sequence", cmd.Sequence,
		)
	}
	return result, nil
}

func (u ResetCursorUseCase) now() time.Time {
	if u.Clock == nil {
		return time.Now().UTC()
	}
	return u.Clock.Now().UTC()
}
