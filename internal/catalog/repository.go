package catalog

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Luis3c4/IMEI/pkg/db/models"
	"github.com/Luis3c4/IMEI/pkg/enums"
)

// Repository owns catalog persistence: products, variants and items.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the given transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

func (r *Repository) FindProductByName(ctx context.Context, name string) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).Where("name = ?", name).First(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *Repository) CreateProduct(ctx context.Context, product *models.Product) error {
	return r.db.WithContext(ctx).Create(product).Error
}

// FindVariant looks up a variant by its full identity. NULL color and NULL
// capacity are identity values, not wildcards, so the comparison coalesces
// both sides to empty strings instead of using SQL NULL equality.
func (r *Repository) FindVariant(ctx context.Context, productID uuid.UUID, color, capacity *string) (*models.ProductVariant, error) {
	var variant models.ProductVariant
	err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Where("COALESCE(color, '') = ?", stringValue(color)).
		Where("COALESCE(capacity, '') = ?", stringValue(capacity)).
		First(&variant).Error
	if err != nil {
		return nil, err
	}
	return &variant, nil
}

func (r *Repository) CreateVariant(ctx context.Context, variant *models.ProductVariant) error {
	return r.db.WithContext(ctx).Create(variant).Error
}

func (r *Repository) UpdateVariantDescription(ctx context.Context, variantID uuid.UUID, description string) error {
	return r.db.WithContext(ctx).
		Model(&models.ProductVariant{}).
		Where("id = ?", variantID).
		Update("model_description", description).Error
}

func (r *Repository) FindItemBySerial(ctx context.Context, serial string) (*models.ProductItem, error) {
	var item models.ProductItem
	if err := r.db.WithContext(ctx).Where("serial_number = ?", serial).First(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *Repository) FindItemByID(ctx context.Context, id uuid.UUID) (*models.ProductItem, error) {
	var item models.ProductItem
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *Repository) CreateItem(ctx context.Context, item *models.ProductItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}

func (r *Repository) UpdateItemProductNumber(ctx context.Context, itemID uuid.UUID, productNumber string) error {
	result := r.db.WithContext(ctx).
		Model(&models.ProductItem{}).
		Where("id = ?", itemID).
		Update("product_number", productNumber)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *Repository) UpdateItemStatus(ctx context.Context, itemID uuid.UUID, status enums.ItemStatus) error {
	result := r.db.WithContext(ctx).
		Model(&models.ProductItem{}).
		Where("id = ?", itemID).
		Update("status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ListProductsWithInventory loads products with their variants and items for
// the hierarchy projection. Creation order keeps the view stable between
// requests; filtering by sold status happens in the view builder so the same
// rows can also answer audit questions later.
func (r *Repository) ListProductsWithInventory(ctx context.Context, category string) ([]models.Product, error) {
	query := r.db.WithContext(ctx).
		Preload("Variants", func(db *gorm.DB) *gorm.DB {
			return db.Order("product_variants.created_at ASC")
		}).
		Preload("Variants.Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("product_items.created_at ASC")
		})
	if category != "" {
		query = query.Where("category = ?", category)
	}
	var products []models.Product
	if err := query.Order("products.created_at ASC").Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}

func stringValue(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
