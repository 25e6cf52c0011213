package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/tillpoint/tillsync/pkg/enums"
	"github.com/tillpoint/tillsync/pkg/types"
)

// Order is the single shared record both terminals read and write during a
// checkout. Line items are embedded as a jsonb snapshot: the record mirrors
// the cart as a whole, and both terminals replace it wholesale on writes.
type Order struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	OrderNumber string    `gorm:"column:order_number;not null"`
	MerchantID  string    `gorm:"column:merchant_id;not null;index:idx_orders_station"`
	StationID   string    `gorm:"column:station_id;not null;index:idx_orders_station"`
	StationName string    `gorm:"column:station_name"`

	Items LineItems `gorm:"column:items;type:jsonb;serializer:json"`

	SubtotalCents    int64  `gorm:"column:subtotal_cents;not null;default:0"`
	DiscountCents    int64  `gorm:"column:discount_cents;not null;default:0"`
	TaxCents         int64  `gorm:"column:tax_cents;not null;default:0"`
	SurchargeCents   int64  `gorm:"column:surcharge_cents;not null;default:0"`
	SurchargeLabel   string `gorm:"column:surcharge_label"`
	TipCents         int64  `gorm:"column:tip_cents;not null;default:0"`
	EBTEligibleCents int64  `gorm:"column:ebt_eligible_cents;not null;default:0"`
	EBTCents         int64  `gorm:"column:ebt_cents;not null;default:0"`
	TotalCents       int64  `gorm:"column:total_cents;not null;default:0"`

	Status         enums.OrderStatus   `gorm:"column:status;not null;default:'preview'"`
	PaymentMethod  enums.PaymentMethod `gorm:"column:payment_method;not null;default:'pending'"`
	PaymentDetails types.JSONMap       `gorm:"column:payment_details;type:jsonb;serializer:json"`

	CustomerID   *string `gorm:"column:customer_id"`
	CustomerName *string `gorm:"column:customer_name"`

	SentToCustomerDisplay bool `gorm:"column:sent_to_customer_display;not null;default:false"`
	SentToKitchen         bool `gorm:"column:sent_to_kitchen;not null;default:false"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// HasTippableItem reports whether any cart line accepts a tip.
func (o *Order) HasTippableItem() bool {
	for _, item := range o.Items {
		if item.Tippable {
			return true
		}
	}
	return false
}

// HasAgeRestrictedItem reports whether any cart line requires age verification.
func (o *Order) HasAgeRestrictedItem() bool {
	for _, item := range o.Items {
		if item.AgeRestricted {
			return true
		}
	}
	return false
}
