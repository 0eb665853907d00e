package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/Luis3c4/IMEI/internal/modelparse"
	"github.com/Luis3c4/IMEI/internal/pricing"
	"github.com/Luis3c4/IMEI/pkg/db"
	"github.com/Luis3c4/IMEI/pkg/db/models"
	"github.com/Luis3c4/IMEI/pkg/enums"
	pkgerrors "github.com/Luis3c4/IMEI/pkg/errors"
	"github.com/Luis3c4/IMEI/pkg/logger"
	"github.com/Luis3c4/IMEI/pkg/metrics"
	"github.com/Luis3c4/IMEI/pkg/outbox"
	"github.com/Luis3c4/IMEI/pkg/outbox/payloads"
	"github.com/Luis3c4/IMEI/pkg/redis"
)

// Service folds vendor sightings into the catalog and serves the storefront
// hierarchy view.
type Service interface {
	Reconcile(ctx context.Context, record RawRecord, descriptor modelparse.Descriptor, meta Metadata) ReconcileResult
	SetItemStatus(ctx context.Context, itemID uuid.UUID, status enums.ItemStatus) (*models.ProductItem, error)
	Hierarchy(ctx context.Context, category string) (*HierarchyView, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type service struct {
	repo     *Repository
	tx       txRunner
	outbox   outboxPublisher
	cache    redis.ViewCache
	pipeline *metrics.PipelineMetrics
	cacheTTL time.Duration
	logg     *logger.Logger
}

// NewService wires the catalog service. cache and pipeline may be nil; a nil
// cache or non-positive TTL serves the hierarchy straight from the store.
func NewService(
	repo *Repository,
	tx txRunner,
	publisher outboxPublisher,
	cache redis.ViewCache,
	pipeline *metrics.PipelineMetrics,
	cacheTTL time.Duration,
	logg *logger.Logger,
) (Service, error) {
	if repo == nil {
		return nil, errors.New("catalog: repository is required")
	}
	if tx == nil {
		return nil, errors.New("catalog: transaction runner is required")
	}
	if publisher == nil {
		return nil, errors.New("catalog: outbox publisher is required")
	}
	if logg == nil {
		return nil, errors.New("catalog: logger is required")
	}
	return &service{
		repo:     repo,
		tx:       tx,
		outbox:   publisher,
		cache:    cache,
		pipeline: pipeline,
		cacheTTL: cacheTTL,
		logg:     logg,
	}, nil
}

// Reconcile runs the find-or-create chain for one sighting: product by name,
// variant by (color, capacity), item by serial. Each step reads before it
// writes and relies on the unique indexes to settle concurrent inserts; only
// the item write and its outbox event share a transaction so the event always
// describes a committed unit. Failures come back as a result, never a panic.
func (s *service) Reconcile(ctx context.Context, record RawRecord, descriptor modelparse.Descriptor, meta Metadata) ReconcileResult {
	start := time.Now()
	defer func() {
		s.pipeline.ObserveDuration("reconcile", time.Since(start))
	}()

	serial := record.Identity()
	if serial == "" {
		s.pipeline.IncFailure("reconcile")
		return failure("record carries no serial number or imei")
	}
	name := productName(record, descriptor)
	if name == "" {
		s.pipeline.IncFailure("reconcile")
		return failure("record carries no usable model name")
	}
	ctx = s.logg.WithSerial(ctx, serial)

	product, err := s.findOrCreateProduct(ctx, name, descriptor.Brand)
	if err != nil {
		return s.reconcileFailed(ctx, "product step failed", err)
	}
	variant, err := s.findOrCreateVariant(ctx, product.ID, descriptor, record.ModelDescription, meta)
	if err != nil {
		return s.reconcileFailed(ctx, "variant step failed", err)
	}
	productNumber := resolveProductNumber(meta.ProductNumber, name)

	var item *models.ProductItem
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		found, err := s.upsertItem(ctx, repo, variant.ID, serial, productNumber)
		if err != nil {
			return err
		}
		item = found
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventDeviceReconciled,
			AggregateType: enums.AggregateDevice,
			AggregateID:   item.ID,
			Source:        &outbox.SourceRef{Tier: meta.Tier, OrderID: meta.OrderID},
			Data: payloads.DeviceReconciledEvent{
				SerialNumber:  serial,
				ProductID:     product.ID,
				VariantID:     variant.ID,
				ItemID:        item.ID,
				ProductName:   product.Name,
				Category:      product.Category,
				Color:         variant.Color,
				Capacity:      variant.Capacity,
				ProductNumber: item.ProductNumber,
				Price:         variant.Price,
				Tier:          meta.Tier,
				ReconciledAt:  time.Now().UTC(),
			},
		})
	})
	if err != nil {
		return s.reconcileFailed(ctx, "item step failed", err)
	}

	s.bumpHierarchyVersion(ctx)
	s.pipeline.IncSuccess("reconcile")
	return ReconcileResult{
		Success:       true,
		ProductID:     product.ID,
		VariantID:     variant.ID,
		ItemID:        item.ID,
		ProductNumber: item.ProductNumber,
	}
}

func (s *service) reconcileFailed(ctx context.Context, step string, err error) ReconcileResult {
	s.logg.Error(ctx, "reconcile: "+step, err)
	s.pipeline.IncFailure("reconcile")
	return failure(err.Error())
}

// SetItemStatus flips one unit between available and sold. The update and its
// event commit together; flipping to the status already stored is a no-op
// that emits nothing.
func (s *service) SetItemStatus(ctx context.Context, itemID uuid.UUID, status enums.ItemStatus) (*models.ProductItem, error) {
	if itemID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "item id is required")
	}
	if !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("invalid item status %q: must be one of available, sold", status))
	}

	var (
		updated *models.ProductItem
		changed bool
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		item, err := repo.FindItemByID(ctx, itemID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "item not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load item")
		}
		if item.Status == status {
			updated = item
			return nil
		}
		previous := item.Status
		if err := repo.UpdateItemStatus(ctx, item.ID, status); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update item status")
		}
		item.Status = status
		updated = item
		changed = true
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventItemStatusChanged,
			AggregateType: enums.AggregateProductItem,
			AggregateID:   item.ID,
			Data: payloads.ItemStatusChangedEvent{
				ItemID:       item.ID,
				SerialNumber: item.SerialNumber,
				Previous:     previous,
				Status:       status,
				ChangedAt:    time.Now().UTC(),
			},
		})
	})
	if err != nil {
		return nil, err
	}
	if changed {
		s.bumpHierarchyVersion(ctx)
	}
	return updated, nil
}

// Hierarchy returns the storefront view, read through the versioned cache.
// Cache trouble never fails the request; the view is rebuilt from the store.
func (s *service) Hierarchy(ctx context.Context, category string) (*HierarchyView, error) {
	category = strings.ToUpper(strings.TrimSpace(category))

	cacheKey := s.hierarchyCacheKey(ctx, category)
	if cacheKey != "" {
		if cached, err := s.cache.Get(ctx, cacheKey); err == nil && cached != "" {
			var view HierarchyView
			if err := json.Unmarshal([]byte(cached), &view); err == nil {
				return &view, nil
			}
		}
	}

	products, err := s.repo.ListProductsWithInventory(ctx, category)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load catalog inventory")
	}
	view := buildHierarchy(products)

	if cacheKey != "" {
		if payload, err := json.Marshal(view); err == nil {
			if err := s.cache.Set(ctx, cacheKey, payload, s.cacheTTL); err != nil {
				s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "hierarchy cache write failed")
			}
		}
	}
	return view, nil
}

func (s *service) findOrCreateProduct(ctx context.Context, name, brand string) (*models.Product, error) {
	product, err := s.repo.FindProductByName(ctx, name)
	if err == nil {
		return product, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	created := &models.Product{Name: name, Category: optional(brand)}
	if err := s.repo.CreateProduct(ctx, created); err != nil {
		if db.IsUniqueViolation(err, "ux_products_name") {
			// Lost the insert race; the winner's row is canonical.
			product, err := s.repo.FindProductByName(ctx, name)
			if err != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload product after insert race")
			}
			return product, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create product")
	}
	s.logg.Info(s.logg.WithField(ctx, "product", name), "catalog product created")
	return created, nil
}

func (s *service) findOrCreateVariant(ctx context.Context, productID uuid.UUID, descriptor modelparse.Descriptor, description string, meta Metadata) (*models.ProductVariant, error) {
	color := optional(descriptor.Color)
	capacity := variantCapacity(descriptor)

	variant, err := s.repo.FindVariant(ctx, productID, color, capacity)
	if err == nil {
		return s.refreshVariantDescription(ctx, variant, description)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load variant")
	}
	created := &models.ProductVariant{
		ProductID:        productID,
		Color:            color,
		Capacity:         capacity,
		Price:            variantPrice(meta),
		ModelDescription: optional(description),
	}
	if err := s.repo.CreateVariant(ctx, created); err != nil {
		if db.IsUniqueViolation(err, "ux_product_variants_identity") {
			variant, err := s.repo.FindVariant(ctx, productID, color, capacity)
			if err != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload variant after insert race")
			}
			return s.refreshVariantDescription(ctx, variant, description)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create variant")
	}
	return created, nil
}

// refreshVariantDescription keeps the stored vendor text current so a later,
// richer sighting improves the row in place instead of forking a duplicate.
func (s *service) refreshVariantDescription(ctx context.Context, variant *models.ProductVariant, description string) (*models.ProductVariant, error) {
	if description == "" {
		return variant, nil
	}
	if variant.ModelDescription != nil && *variant.ModelDescription == description {
		return variant, nil
	}
	if err := s.repo.UpdateVariantDescription(ctx, variant.ID, description); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update variant description")
	}
	variant.ModelDescription = &description
	return variant, nil
}

func (s *service) upsertItem(ctx context.Context, repo *Repository, variantID uuid.UUID, serial, productNumber string) (*models.ProductItem, error) {
	item, err := repo.FindItemBySerial(ctx, serial)
	if err == nil {
		return refreshItemProductNumber(ctx, repo, item, productNumber)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load item")
	}
	created := &models.ProductItem{
		VariantID:     variantID,
		SerialNumber:  serial,
		ProductNumber: optional(productNumber),
		Status:        enums.ItemStatusAvailable,
	}
	if err := repo.CreateItem(ctx, created); err != nil {
		if db.IsUniqueViolation(err, "ux_product_items_serial_number") {
			item, err := repo.FindItemBySerial(ctx, serial)
			if err != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload item after insert race")
			}
			return refreshItemProductNumber(ctx, repo, item, productNumber)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create item")
	}
	return created, nil
}

// refreshItemProductNumber overwrites the stored number once a better one is
// known; a re-sighting without a number never clears the existing one.
func refreshItemProductNumber(ctx context.Context, repo *Repository, item *models.ProductItem, productNumber string) (*models.ProductItem, error) {
	if productNumber == "" {
		return item, nil
	}
	if item.ProductNumber != nil && *item.ProductNumber == productNumber {
		return item, nil
	}
	if err := repo.UpdateItemProductNumber(ctx, item.ID, productNumber); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update item product number")
	}
	item.ProductNumber = &productNumber
	return item, nil
}

// hierarchyCacheKey returns "" when caching is disabled or the version
// counter is unreachable; the view is then built straight from the store.
func (s *service) hierarchyCacheKey(ctx context.Context, category string) string {
	if s.cache == nil || s.cacheTTL <= 0 {
		return ""
	}
	version, err := s.cache.HierarchyViewVersion(ctx)
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "hierarchy cache version unavailable")
		return ""
	}
	return s.cache.HierarchyViewKey(version, category)
}

// bumpHierarchyVersion invalidates cached views after a write. Failures are
// logged and swallowed: stale entries age out by TTL while writes keep going.
func (s *service) bumpHierarchyVersion(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.BumpHierarchyVersion(ctx); err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "hierarchy cache bump failed")
	}
}

// productName picks the canonical name: the cleaned vendor model field wins,
// the parsed descriptor backs it up, the raw description is the last resort.
func productName(record RawRecord, descriptor modelparse.Descriptor) string {
	if cleaned := modelparse.CleanDeviceModel(record.Model); cleaned != "" {
		return cleaned
	}
	if descriptor.FullModel != "" {
		return descriptor.FullModel
	}
	return modelparse.CleanDeviceModel(record.ModelDescription)
}

// resolveProductNumber prefers a manually assigned number over the static
// per-model table.
func resolveProductNumber(manual, productName string) string {
	if manual != "" {
		return manual
	}
	if number, ok := pricing.StaticProductNumber(productName); ok {
		return number
	}
	return ""
}

// variantCapacity folds RAM and storage into the variant identity. Computers
// carry "16GB/256GB"; everything else carries the bare capacity.
func variantCapacity(descriptor modelparse.Descriptor) *string {
	switch {
	case descriptor.RAM != "" && descriptor.Capacity != "":
		combined := descriptor.RAM + "/" + descriptor.Capacity
		return &combined
	case descriptor.Capacity != "":
		return optional(descriptor.Capacity)
	default:
		return nil
	}
}

// variantPrice prefers the resolved catalog price over the raw vendor lookup
// price. Neither present stays NULL; a zero price is never fabricated.
func variantPrice(meta Metadata) *decimal.Decimal {
	if meta.ProductPrice != nil {
		return meta.ProductPrice
	}
	return meta.LookupPrice
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
