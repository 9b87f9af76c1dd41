package postgresadapter

import (
	"context"
	"errors"
	"time"

	"fedsync/contexts/federation/replication-service/domain/entities"
	domainerrors "fedsync/contexts/federation/replication-service/domain/errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func (r *Repository) GetCursor(ctx context.Context, key entities.StreamKey) (entities.SequenceCursor, bool, error) {
	var row cursorModel
	err := r.db.WithContext(ctx).
		Where("origin_domain = ? AND stream_id = ?", key.OriginDomain, key.StreamID).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.SequenceCursor{}, false, nil
		}
		return entities.SequenceCursor{}, false, err
	}
	return row.toEntity(), true, nil
}

// SaveCursor inserts a first cursor or updates one whose sequence still equals
// expected. Zero affected rows means a concurrent writer won.
func (r *Repository) SaveCursor(ctx context.Context, next entities.SequenceCursor, expected int64, existed bool) error {
	row := cursorModelFromEntity(next)
	if !existed {
		created := r.db.WithContext(ctx).
			Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "origin_domain"}, {Name: "stream_id"}},
				DoNothing: true,
			}).
			Create(&row)
		if created.Error != nil {
			if isUniqueViolation(created.Error) {
				return domainerrors.ErrCursorConflict
			}
			return created.Error
		}
		if created.RowsAffected == 0 {
			return domainerrors.ErrCursorConflict
		}
		return nil
	}

	updated := r.db.WithContext(ctx).
		Model(&row).
		Where("last_applied_sequence = ?", expected).
		Select("last_applied_sequence", "seen_event_ids", "updated_at").
		Updates(&row)
	if updated.Error != nil {
		return updated.Error
	}
	if updated.RowsAffected == 0 {
		return domainerrors.ErrCursorConflict
	}
	return nil
}

func (r *Repository) ResetCursor(
	ctx context.Context,
	key entities.StreamKey,
	sequence int64,
	now time.Time,
) (entities.SequenceCursor, error) {
	if sequence < 0 {
		return entities.SequenceCursor{}, domainerrors.ErrInvalidRequest
	}
	cursor := entities.SequenceCursor{
		OriginDomain:        key.OriginDomain,
		StreamID:            key.StreamID,
		LastAppliedSequence: sequence,
		UpdatedAt:           now.UTC(),
	}
	row := cursorModelFromEntity(cursor)
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "origin_domain"}, {Name: "stream_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"last_applied_sequence", "seen_event_ids", "updated_at"}),
		}).
		Create(&row).
		Error; err != nil {
		return entities.SequenceCursor{}, err
	}
	return cursor, nil
}

// WithStreamLock holds a session-level advisory lock on a pinned connection
// for the duration of fn. Writes inside fn use the pool; the lock only fences
// other holders of the same key.
func (r *Repository) WithStreamLock(ctx context.Context, key entities.StreamKey, fn func(context.Context) error) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	lockKey := key.String()
	if _, err := conn.ExecContext(ctx, "SELECT pg_advisory_lock(hashtextextended($1, 0))", lockKey); err != nil {
		return err
	}
	defer func() {
		if _, err := conn.ExecContext(context.Background(), "SELECT pg_advisory_unlock(hashtextextended($1, 0))", lockKey); err != nil {
			r.logger.Error("advisory unlock failed",
				"event", "federation_stream_unlock_failed",
				"module", "federation/replication-service",
				"layer", "adapter",
				"stream_key", lockKey,
				"error", err.Error(),
			)
		}
	}()

	return fn(ctx)
}
