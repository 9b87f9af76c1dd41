package postgresadapter

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"fedsync/contexts/federation/replication-service/domain/entities"
	domainerrors "fedsync/contexts/federation/replication-service/domain/errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewRepository(db *gorm.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Migrate creates or updates the replication tables.
func (r *Repository) Migrate(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(
		&serverModel{},
		&channelModel{},
		&messageModel{},
		&cursorModel{},
		&streamSequenceModel{},
		&outboxModel{},
	)
}

func (r *Repository) UpsertMirrorServer(
	ctx context.Context,
	federationID string,
	originDomain string,
	attrs entities.ServerAttrs,
	now time.Time,
) (entities.Server, error) {
	federationID = strings.TrimSpace(federationID)
	originDomain = entities.NormalizeDomain(originDomain)
	if federationID == "" || originDomain == "" {
		return entities.Server{}, domainerrors.ErrInvalidRequest
	}
	if err := attrs.Validate(); err != nil {
		return entities.Server{}, err
	}

	row := serverModel{
		ServerID:          uuid.NewString(),
		IsFederatedMirror: true,
		FederationID:      ptr(federationID),
		OriginDomain:      originDomain,
		Name:              strings.TrimSpace(attrs.Name),
		Description:       attrs.Description,
		IsPublic:          attrs.IsPublic,
		MemberCount:       attrs.MemberCount,
		CreatedAt:         now.UTC(),
		UpdatedAt:         now.UTC(),
	}
	created := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "federation_id"}},
			DoNothing: true,
		}).
		Create(&row)
	if created.Error != nil && !isUniqueViolation(created.Error) {
		return entities.Server{}, created.Error
	}
	if created.Error == nil && created.RowsAffected > 0 {
		return row.toEntity(), nil
	}

	existing, err := r.GetMirrorServer(ctx, federationID)
	if err != nil {
		return entities.Server{}, err
	}
	if existing.OriginDomain != originDomain {
		return entities.Server{}, domainerrors.ErrOriginMismatch
	}
	updated := existing.Apply(attrs, originDomain, now)
	if err := r.db.WithContext(ctx).
		Model(&serverModel{}).
		Where("server_id = ?", existing.ServerID).
		Updates(map[string]any{
			"name":         updated.Name,
			"description":  updated.Description,
			"is_public":    updated.IsPublic,
			"member_count": updated.MemberCount,
			"updated_at":   updated.UpdatedAt,
		}).
		Error; err != nil {
		return entities.Server{}, err
	}
	return r.GetMirrorServer(ctx, federationID)
}

func (r *Repository) UpsertMirrorChannel(
	ctx context.Context,
	server entities.Server,
	federatedSource string,
	attrs entities.ChannelAttrs,
	now time.Time,
) (entities.Channel, error) {
	federatedSource = strings.TrimSpace(federatedSource)
	if federatedSource == "" || server.ServerID == "" {
		return entities.Channel{}, domainerrors.ErrInvalidRequest
	}
	if !server.IsFederatedMirror {
		return entities.Channel{}, domainerrors.ErrServerNotFound
	}

	row := channelModel{
		ChannelID:         uuid.NewString(),
		ServerID:          server.ServerID,
		Kind:              string(entities.ConversationKindChannel),
		FederatedSource:   ptr(federatedSource),
		IsFederatedMirror: true,
		Name:              strings.TrimSpace(attrs.Name),
		Description:       attrs.Description,
		Topic:             attrs.Topic,
		Position:          attrs.Position,
		CreatedAt:         now.UTC(),
		UpdatedAt:         now.UTC(),
	}
	created := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "federated_source"}},
			DoNothing: true,
		}).
		Create(&row)
	if created.Error != nil && !isUniqueViolation(created.Error) {
		return entities.Channel{}, created.Error
	}
	if created.Error == nil && created.RowsAffected > 0 {
		return row.toEntity(), nil
	}

	existing, err := r.mirrorChannelBySource(ctx, federatedSource)
	if err != nil {
		return entities.Channel{}, err
	}
	if existing.ServerID != server.ServerID {
		owner, err := r.GetServer(ctx, existing.ServerID)
		if err != nil && !errors.Is(err, domainerrors.ErrServerNotFound) {
			return entities.Channel{}, err
		}
		if err == nil && owner.OriginDomain != server.OriginDomain {
			return entities.Channel{}, domainerrors.ErrOriginMismatch
		}
	}

	updated := existing.Apply(attrs, now)
	if err := r.db.WithContext(ctx).
		Model(&channelModel{}).
		Where("channel_id = ?", existing.ChannelID).
		Updates(map[string]any{
			"server_id":   server.ServerID,
			"name":        updated.Name,
			"description": updated.Description,
			"topic":       updated.Topic,
			"position":    updated.Position,
			"updated_at":  updated.UpdatedAt,
		}).
		Error; err != nil {
		return entities.Channel{}, err
	}
	return r.mirrorChannelBySource(ctx, federatedSource)
}

func (r *Repository) UpsertMirrorMessage(
	ctx context.Context,
	channel entities.Channel,
	federatedSource string,
	sender entities.SenderDescriptor,
	attrs entities.MessageAttrs,
	now time.Time,
) (entities.Message, error) {
	federatedSource = strings.TrimSpace(federatedSource)
	if federatedSource == "" || channel.ChannelID == "" {
		return entities.Message{}, domainerrors.ErrInvalidRequest
	}

	row := messageModelFromEntity(entities.NewMirrorMessage(uuid.NewString(), channel, federatedSource, sender, attrs, now))
	created := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "channel_id"}, {Name: "federated_source"}},
			DoNothing: true,
		}).
		Create(&row)
	if created.Error != nil && !isUniqueViolation(created.Error) {
		return entities.Message{}, created.Error
	}
	if created.Error == nil && created.RowsAffected > 0 {
		return row.toEntity(), nil
	}

	var existing messageModel
	if err := r.db.WithContext(ctx).
		Where("channel_id = ? AND federated_source = ?", channel.ChannelID, federatedSource).
		First(&existing).
		Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Message{}, domainerrors.ErrRepositoryInvariantBroke
		}
		return entities.Message{}, err
	}
	return existing.toEntity(), nil
}

func (r *Repository) RemoveMirrorServer(ctx context.Context, federationID string, originDomain string) (bool, error) {
	federationID = strings.TrimSpace(federationID)
	if federationID == "" {
		return false, domainerrors.ErrInvalidRequest
	}

	removed := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var server serverModel
		if err := tx.
			Where("federation_id = ? AND is_federated_mirror = ?", federationID, true).
			First(&server).
			Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}
		if originDomain != "" && server.OriginDomain != entities.NormalizeDomain(originDomain) {
			return domainerrors.ErrOriginMismatch
		}

		channelIDs := tx.Model(&channelModel{}).Select("channel_id").Where("server_id = ?", server.ServerID)
		if err := tx.Where("channel_id IN (?)", channelIDs).Delete(&messageModel{}).Error; err != nil {
			return err
		}
		if err := tx.Where("server_id = ?", server.ServerID).Delete(&channelModel{}).Error; err != nil {
			return err
		}
		if err := tx.Where("server_id = ?", server.ServerID).Delete(&serverModel{}).Error; err != nil {
			return err
		}
		removed = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return removed, nil
}

func (r *Repository) GetMirrorServer(ctx context.Context, federationID string) (entities.Server, error) {
	var row serverModel
	err := r.db.WithContext(ctx).
		Where("federation_id = ? AND is_federated_mirror = ?", strings.TrimSpace(federationID), true).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Server{}, domainerrors.ErrServerNotFound
		}
		return entities.Server{}, err
	}
	return row.toEntity(), nil
}

func (r *Repository) ListMirrorServers(ctx context.Context) ([]entities.Server, error) {
	var rows []serverModel
	if err := r.db.WithContext(ctx).
		Where("is_federated_mirror = ?", true).
		Order("federation_id ASC").
		Find(&rows).
		Error; err != nil {
		return nil, err
	}
	items := make([]entities.Server, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

func (r *Repository) GetServer(ctx context.Context, serverID string) (entities.Server, error) {
	var row serverModel
	err := r.db.WithContext(ctx).
		Where("server_id = ?", strings.TrimSpace(serverID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Server{}, domainerrors.ErrServerNotFound
		}
		return entities.Server{}, err
	}
	return row.toEntity(), nil
}

func (r *Repository) GetChannel(ctx context.Context, channelID string) (entities.Channel, error) {
	var row channelModel
	err := r.db.WithContext(ctx).
		Where("channel_id = ?", strings.TrimSpace(channelID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Channel{}, domainerrors.ErrChannelNotFound
		}
		return entities.Channel{}, err
	}
	return row.toEntity(), nil
}

func (r *Repository) GetMessage(ctx context.Context, messageID string) (entities.Message, error) {
	var row messageModel
	err := r.db.WithContext(ctx).
		Where("message_id = ?", strings.TrimSpace(messageID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Message{}, domainerrors.ErrMessageNotFound
		}
		return entities.Message{}, err
	}
	return row.toEntity(), nil
}

func (r *Repository) ListChannels(ctx context.Context, serverID string) ([]entities.Channel, error) {
	var rows []channelModel
	if err := r.db.WithContext(ctx).
		Where("server_id = ?", serverID).
		Order("position ASC, channel_id ASC").
		Find(&rows).
		Error; err != nil {
		return nil, err
	}
	items := make([]entities.Channel, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

func (r *Repository) ListRecentMessages(ctx context.Context, channelID string, limit int) ([]entities.Message, error) {
	tx := r.db.WithContext(ctx).
		Where("channel_id = ?", channelID).
		Order("sent_at DESC, created_at DESC")
	if limit > 0 {
		tx = tx.Limit(limit)
	}
	var rows []messageModel
	if err := tx.Find(&rows).Error; err != nil {
		return nil, err
	}

	items := make([]entities.Message, len(rows))
	for i, row := range rows {
		items[len(rows)-1-i] = row.toEntity()
	}
	return items, nil
}

func (r *Repository) CreateLocalServer(ctx context.Context, attrs entities.ServerAttrs, now time.Time) (entities.Server, error) {
	if err := attrs.Validate(); err != nil {
		return entities.Server{}, err
	}
	row := serverModel{
		ServerID:    uuid.NewString(),
		Name:        strings.TrimSpace(attrs.Name),
		Description: attrs.Description,
		IsPublic:    attrs.IsPublic,
		MemberCount: attrs.MemberCount,
		CreatedAt:   now.UTC(),
		UpdatedAt:   now.UTC(),
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return entities.Server{}, domainerrors.ErrRepositoryInvariantBroke
		}
		return entities.Server{}, err
	}
	return row.toEntity(), nil
}

func (r *Repository) CreateLocalChannel(
	ctx context.Context,
	serverID string,
	attrs entities.ChannelAttrs,
	now time.Time,
) (entities.Channel, error) {
	server, err := r.GetServer(ctx, serverID)
	if err != nil {
		return entities.Channel{}, err
	}
	if server.IsFederatedMirror {
		return entities.Channel{}, domainerrors.ErrNotLocalServer
	}
	row := channelModel{
		ChannelID:   uuid.NewString(),
		ServerID:    server.ServerID,
		Kind:        string(entities.ConversationKindChannel),
		Name:        strings.TrimSpace(attrs.Name),
		Description: attrs.Description,
		Topic:       attrs.Topic,
		Position:    attrs.Position,
		CreatedAt:   now.UTC(),
		UpdatedAt:   now.UTC(),
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return entities.Channel{}, err
	}
	return row.toEntity(), nil
}

func (r *Repository) CreateLocalMessage(
	ctx context.Context,
	channelID string,
	sender entities.SenderDescriptor,
	attrs entities.MessageAttrs,
	now time.Time,
) (entities.Message, error) {
	channel, err := r.GetChannel(ctx, channelID)
	if err != nil {
		return entities.Message{}, err
	}
	if channel.IsFederatedMirror {
		return entities.Message{}, domainerrors.ErrNotLocalServer
	}
	message := entities.NewMirrorMessage(uuid.NewString(), channel, "", sender, attrs, now)
	message.IsFederatedMirror = false
	row := messageModelFromEntity(message)
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return entities.Message{}, err
	}
	return row.toEntity(), nil
}

func (r *Repository) mirrorChannelBySource(ctx context.Context, federatedSource string) (entities.Channel, error) {
	var row channelModel
	err := r.db.WithContext(ctx).
		Where("federated_source = ?", federatedSource).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Channel{}, domainerrors.ErrRepositoryInvariantBroke
		}
		return entities.Channel{}, err
	}
	return row.toEntity(), nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
