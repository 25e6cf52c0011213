package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/tillpoint/tillsync/pkg/enums"
)

// DeviceSession is the ephemeral liveness record for one running terminal.
// It is visibility only: a stale or missing session never blocks checkout.
type DeviceSession struct {
	ID          uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	MerchantID  string           `gorm:"column:merchant_id;not null;index:idx_device_sessions_station"`
	DeviceType  enums.DeviceType `gorm:"column:device_type;not null;index:idx_device_sessions_station"`
	DeviceName  string           `gorm:"column:device_name"`
	StationID   string           `gorm:"column:station_id;not null;index:idx_device_sessions_station"`
	StationName string           `gorm:"column:station_name"`
	UserID      *string          `gorm:"column:user_id"`

	ActiveOrderID     *uuid.UUID `gorm:"column:active_order_id;type:uuid"`
	ActiveOrderNumber *string    `gorm:"column:active_order_number"`

	Status          enums.SessionStatus `gorm:"column:status;not null;default:'online'"`
	LastHeartbeatAt time.Time           `gorm:"column:last_heartbeat_at;not null"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
