package devices

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Luis3c4/IMEI/pkg/db/models"
)

// Repository exposes device registry persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindBySerial(ctx context.Context, serial string) (*models.Device, error)
	Create(ctx context.Context, device *models.Device) error
	Update(ctx context.Context, device *models.Device) error
	AppendLookup(ctx context.Context, lookup *models.DeviceLookup) error
	List(ctx context.Context, opts listQuery) ([]models.Device, error)
	ListLookups(ctx context.Context, deviceID uuid.UUID, opts listQuery) ([]models.DeviceLookup, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) FindBySerial(ctx context.Context, serial string) (*models.Device, error) {
	var device models.Device
	if err := r.db.WithContext(ctx).Where("serial_number = ?", serial).First(&device).Error; err != nil {
		return nil, err
	}
	return &device, nil
}

func (r *repositoryImpl) Create(ctx context.Context, device *models.Device) error {
	return r.db.WithContext(ctx).Create(device).Error
}

func (r *repositoryImpl) Update(ctx context.Context, device *models.Device) error {
	return r.db.WithContext(ctx).Save(device).Error
}

func (r *repositoryImpl) AppendLookup(ctx context.Context, lookup *models.DeviceLookup) error {
	return r.db.WithContext(ctx).Create(lookup).Error
}

func (r *repositoryImpl) List(ctx context.Context, opts listQuery) ([]models.Device, error) {
	query := r.db.WithContext(ctx).Model(&models.Device{})
	if opts.tier != "" {
		query = query.Where("lookup_tier = ?", opts.tier)
	}
	if opts.cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", opts.cursor.CreatedAt, opts.cursor.ID)
	}

	var rows []models.Device
	if err := query.Order("created_at DESC, id DESC").Limit(opts.limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repositoryImpl) ListLookups(ctx context.Context, deviceID uuid.UUID, opts listQuery) ([]models.DeviceLookup, error) {
	query := r.db.WithContext(ctx).Model(&models.DeviceLookup{}).Where("device_id = ?", deviceID)
	if opts.cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", opts.cursor.CreatedAt, opts.cursor.ID)
	}

	var rows []models.DeviceLookup
	if err := query.Order("created_at DESC, id DESC").Limit(opts.limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
