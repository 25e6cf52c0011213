package store

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

// OrderFilter narrows a Filter scan. Zero-value fields are ignored.
type OrderFilter struct {
	MerchantID            string
	StationID             string
	Statuses              []enums.OrderStatus
	SentToCustomerDisplay *bool
	SortNewestFirst       bool
	Limit                 int
}

// Repository is the order record store shared by both terminals. It is a
// plain CRUD/filter surface: all coordination semantics live in the callers,
// except the conditional display claim.
type Repository interface {
	Create(ctx context.Context, order *models.Order) (*models.Order, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Order, error)
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) (*models.Order, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Filter(ctx context.Context, filter OrderFilter) ([]models.Order, error)
	ClaimForDisplay(ctx context.Context, id uuid.UUID) (bool, error)
	FindOpenForStation(ctx context.Context, merchantID, stationID string) (*models.Order, error)
	DeletePreviewsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an order repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, order *models.Order) (*models.Order, error) {
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	if order.Status == "" {
		order.Status = enums.OrderStatusPreview
	}
	if order.PaymentMethod == "" {
		order.PaymentMethod = enums.PaymentMethodPending
	}
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		return nil, err
	}
	return order, nil
}

func (r *repository) Get(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, err
	}
	return &order, nil
}

func (r *repository) Update(ctx context.Context, id uuid.UUID, updates map[string]any) (*models.Order, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", id).
		Updates(updates)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return r.Get(ctx, id)
}

func (r *repository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Order{}).Error
}

func (r *repository) Filter(ctx context.Context, filter OrderFilter) ([]models.Order, error) {
	query := r.db.WithContext(ctx).Model(&models.Order{})
	if filter.MerchantID != "" {
		query = query.Where("merchant_id = ?", filter.MerchantID)
	}
	if filter.StationID != "" {
		query = query.Where("station_id = ?", filter.StationID)
	}
	if len(filter.Statuses) > 0 {
		query = query.Where("status IN ?", filter.Statuses)
	}
	if filter.SentToCustomerDisplay != nil {
		query = query.Where("sent_to_customer_display = ?", *filter.SentToCustomerDisplay)
	}
	if filter.SortNewestFirst {
		query = query.Order("created_at DESC")
	} else {
		query = query.Order("created_at ASC")
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var orders []models.Order
	if err := query.Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

// ClaimForDisplay flips sent_to_customer_display false -> true as a single
// conditional update. Returns false when another display already holds the
// claim or the order vanished; both mean "do not render this order".
func (r *repository) ClaimForDisplay(ctx context.Context, id uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND sent_to_customer_display = ?", id, false).
		Update("sent_to_customer_display", true)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// FindOpenForStation returns the single non-terminal order for the station,
// or a NotFound error. More than one open order means a stale record slipped
// past cleanup; the newest wins and the station still behaves.
func (r *repository) FindOpenForStation(ctx context.Context, merchantID, stationID string) (*models.Order, error) {
	orders, err := r.Filter(ctx, OrderFilter{
		MerchantID:      merchantID,
		StationID:       stationID,
		Statuses:        enums.OpenOrderStatuses(),
		SortNewestFirst: true,
		Limit:           1,
	})
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no open order for station")
	}
	return &orders[0], nil
}

// DeletePreviewsBefore removes preview records not touched since the cutoff.
// Abandoned carts accumulate otherwise, one per crashed register.
func (r *repository) DeletePreviewsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("status = ? AND updated_at < ?", enums.OrderStatusPreview, cutoff).
		Delete(&models.Order{})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
