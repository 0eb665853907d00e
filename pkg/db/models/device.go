package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Luis3c4/IMEI/pkg/enums"
)

// Device is the lookup-side registry row keyed by the identifier a client
// queried with. SerialNumber holds the canonical identity (serial when the
// record carries one, otherwise the IMEI).
type Device struct {
	ID           uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SerialNumber string           `gorm:"column:serial_number;not null"`
	IMEI         *string          `gorm:"column:imei"`
	Name         *string          `gorm:"column:name"`
	Brand        *string          `gorm:"column:brand"`
	Model        *string          `gorm:"column:model"`
	LookupTier   enums.LookupTier `gorm:"column:lookup_tier;not null"`
	Lookups      []DeviceLookup   `gorm:"foreignKey:DeviceID;constraint:OnDelete:CASCADE"`
	LastLookupAt *time.Time       `gorm:"column:last_lookup_at"`
	CreatedAt    time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

func (d *Device) BeforeCreate(*gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}
