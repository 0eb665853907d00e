package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ProductVariant is one (color, capacity) combination of a product. Color and
// capacity may be NULL and NULL is part of the identity: two sightings with no
// detected color land on the same variant. Capacity may carry a combined
// "RAM/STORAGE" value for computers.
type ProductVariant struct {
	ID               uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ProductID        uuid.UUID        `gorm:"column:product_id;type:uuid;not null"`
	Color            *string          `gorm:"column:color"`
	Capacity         *string          `gorm:"column:capacity"`
	Price            *decimal.Decimal `gorm:"column:price;type:numeric(12,2)"`
	ModelDescription *string          `gorm:"column:model_description"`
	Items            []ProductItem    `gorm:"foreignKey:VariantID;constraint:OnDelete:CASCADE"`
	CreatedAt        time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

func (v *ProductVariant) BeforeCreate(*gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return nil
}
