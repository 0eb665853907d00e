package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Luis3c4/IMEI/pkg/enums"
)

// ProductItem is one physical, uniquely-serialed unit. Re-sighting a serial
// updates the existing row; the unique index on serial_number backstops races.
type ProductItem struct {
	ID            uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	VariantID     uuid.UUID        `gorm:"column:variant_id;type:uuid;not null"`
	SerialNumber  string           `gorm:"column:serial_number;not null"`
	ProductNumber *string          `gorm:"column:product_number"`
	Status        enums.ItemStatus `gorm:"column:status;type:item_status;not null;default:'available'"`
	CreatedAt     time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

func (i *ProductItem) BeforeCreate(*gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}
