package devices

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tillpoint/tillsync/pkg/db/models"
	"github.com/tillpoint/tillsync/pkg/enums"
	pkgerrors "github.com/tillpoint/tillsync/pkg/errors"
)

// Repository persists device session records.
type Repository interface {
	Create(ctx context.Context, session *models.DeviceSession) (*models.DeviceSession, error)
	Get(ctx context.Context, id uuid.UUID) (*models.DeviceSession, error)
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) (*models.DeviceSession, error)
	Delete(ctx context.Context, id uuid.UUID) error
	FindByStation(ctx context.Context, merchantID string, deviceType enums.DeviceType, stationID string) (*models.DeviceSession, error)
	ListByMerchant(ctx context.Context, merchantID string) ([]models.DeviceSession, error)
	MarkIdleBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a gorm-backed session repository.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, session *models.DeviceSession) (*models.DeviceSession, error) {
	if session.ID == uuid.Nil {
		session.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Create(session).Error; err != nil {
		return nil, err
	}
	return session, nil
}

func (r *repository) Get(ctx context.Context, id uuid.UUID) (*models.DeviceSession, error) {
	var session models.DeviceSession
	err := r.db.WithContext(ctx).First(&session, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "device session not found")
		}
		return nil, err
	}
	return &session, nil
}

func (r *repository) Update(ctx context.Context, id uuid.UUID, updates map[string]any) (*models.DeviceSession, error) {
	result := r.db.WithContext(ctx).
		Model(&models.DeviceSession{}).
		Where("id = ?", id).
		Updates(updates)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "device session not found")
	}
	return r.Get(ctx, id)
}

func (r *repository) Delete(ctx context.Context, id uuid.UUID) error {
	if err := r.db.WithContext(ctx).Delete(&models.DeviceSession{}, "id = ?", id).Error; err != nil {
		return err
	}
	return nil
}

func (r *repository) FindByStation(ctx context.Context, merchantID string, deviceType enums.DeviceType, stationID string) (*models.DeviceSession, error) {
	var session models.DeviceSession
	err := r.db.WithContext(ctx).
		Where("merchant_id = ? AND device_type = ? AND station_id = ?", merchantID, deviceType, stationID).
		First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "device session not found")
		}
		return nil, err
	}
	return &session, nil
}

func (r *repository) ListByMerchant(ctx context.Context, merchantID string) ([]models.DeviceSession, error) {
	var sessions []models.DeviceSession
	err := r.db.WithContext(ctx).
		Where("merchant_id = ?", merchantID).
		Order("created_at asc").
		Find(&sessions).Error
	if err != nil {
		return nil, err
	}
	return sessions, nil
}

// MarkIdleBefore flips online sessions with no heartbeat since the cutoff
// to idle. Returns the number of rows changed.
func (r *repository) MarkIdleBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.DeviceSession{}).
		Where("status = ? AND last_heartbeat_at < ?", enums.SessionStatusOnline, cutoff).
		Update("status", enums.SessionStatusIdle)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
