package devices

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/Luis3c4/IMEI/pkg/db"
	"github.com/Luis3c4/IMEI/pkg/db/models"
	"github.com/Luis3c4/IMEI/pkg/enums"
	pkgerrors "github.com/Luis3c4/IMEI/pkg/errors"
	"github.com/Luis3c4/IMEI/pkg/logger"
	pkgpagination "github.com/Luis3c4/IMEI/pkg/pagination"
)

// SightingInput is one vendor lookup to fold into the device registry.
// SerialNumber carries the canonical identity; Payload keeps the raw record
// for the lookup history.
type SightingInput struct {
	SerialNumber string
	IMEI         string
	Name         string
	Brand        string
	Model        string
	Tier         enums.LookupTier
	Payload      json.RawMessage
	LookupPrice  *decimal.Decimal
	CatalogPrice *decimal.Decimal
}

// Service maintains the device registry and its append-only lookup history.
type Service interface {
	RecordSighting(ctx context.Context, input SightingInput) (*models.Device, error)
	GetDevice(ctx context.Context, serial string) (*models.Device, error)
	ListDevices(ctx context.Context, params ListParams) (*ListResult, error)
	ListLookups(ctx context.Context, serial string, params pkgpagination.Params) (*LookupListResult, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type service struct {
	repo Repository
	tx   txRunner
	logg *logger.Logger
}

func NewService(repo Repository, tx txRunner, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, errors.New("devices: repository is required")
	}
	if tx == nil {
		return nil, errors.New("devices: transaction runner is required")
	}
	if logg == nil {
		return nil, errors.New("devices: logger is required")
	}
	return &service{repo: repo, tx: tx, logg: logg}, nil
}

// RecordSighting upserts the registry row and appends one history entry, both
// in a single transaction so the history never references a missing device.
func (s *service) RecordSighting(ctx context.Context, input SightingInput) (*models.Device, error) {
	serial := strings.TrimSpace(input.SerialNumber)
	if serial == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "serial number is required")
	}
	if !input.Tier.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid lookup tier %q", input.Tier))
	}
	payload := input.Payload
	if len(payload) == 0 {
		payload = json.RawMessage(`{}`)
	}
	ctx = s.logg.WithLookupTier(s.logg.WithSerial(ctx, serial), input.Tier.String())

	now := time.Now().UTC()
	var device *models.Device
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		upserted, err := s.upsertDevice(ctx, repo, serial, input, now)
		if err != nil {
			return err
		}
		device = upserted
		lookup := &models.DeviceLookup{
			DeviceID:     device.ID,
			Tier:         input.Tier,
			Payload:      payload,
			LookupPrice:  input.LookupPrice,
			CatalogPrice: input.CatalogPrice,
		}
		if err := repo.AppendLookup(ctx, lookup); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append lookup history")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logg.Info(ctx, "device sighting recorded")
	return device, nil
}

func (s *service) GetDevice(ctx context.Context, serial string) (*models.Device, error) {
	serial = strings.TrimSpace(serial)
	if serial == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "serial number is required")
	}
	device, err := s.repo.FindBySerial(ctx, serial)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "device not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load device")
	}
	return device, nil
}

func (s *service) ListDevices(ctx context.Context, params ListParams) (*ListResult, error) {
	if params.Tier != "" && !params.Tier.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid lookup tier %q", params.Tier))
	}

	limit := pkgpagination.NormalizeLimit(params.Limit)
	query := listQuery{
		tier:  params.Tier,
		limit: pkgpagination.LimitWithBuffer(params.Limit),
	}
	if params.Cursor != "" {
		cursor, err := pkgpagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.cursor = cursor
	}

	rows, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list devices")
	}

	nextCursor := ""
	if len(rows) > limit {
		// The cursor names the last row handed out, so the next page
		// starts exactly one row later.
		rows = rows[:limit]
		last := rows[limit-1]
		nextCursor = pkgpagination.EncodeCursor(pkgpagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}

	items := make([]ListItem, len(rows))
	for i, row := range rows {
		items[i] = toListItem(row)
	}
	return &ListResult{Items: items, Cursor: nextCursor}, nil
}

func (s *service) ListLookups(ctx context.Context, serial string, params pkgpagination.Params) (*LookupListResult, error) {
	device, err := s.GetDevice(ctx, serial)
	if err != nil {
		return nil, err
	}

	limit := pkgpagination.NormalizeLimit(params.Limit)
	query := listQuery{limit: pkgpagination.LimitWithBuffer(params.Limit)}
	if params.Cursor != "" {
		cursor, err := pkgpagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.cursor = cursor
	}

	rows, err := s.repo.ListLookups(ctx, device.ID, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list device lookups")
	}

	nextCursor := ""
	if len(rows) > limit {
		rows = rows[:limit]
		last := rows[limit-1]
		nextCursor = pkgpagination.EncodeCursor(pkgpagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}

	items := make([]LookupItem, len(rows))
	for i, row := range rows {
		items[i] = toLookupItem(row)
	}
	return &LookupListResult{Items: items, Cursor: nextCursor}, nil
}

func (s *service) upsertDevice(ctx context.Context, repo Repository, serial string, input SightingInput, now time.Time) (*models.Device, error) {
	existing, err := repo.FindBySerial(ctx, serial)
	if err == nil {
		applySighting(existing, input, now)
		if err := repo.Update(ctx, existing); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update device")
		}
		return existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load device")
	}
	created := &models.Device{
		SerialNumber: serial,
		IMEI:         optional(input.IMEI),
		Name:         optional(input.Name),
		Brand:        optional(input.Brand),
		Model:        optional(input.Model),
		LookupTier:   input.Tier,
		LastLookupAt: &now,
	}
	if err := repo.Create(ctx, created); err != nil {
		if db.IsUniqueViolation(err, "ux_devices_serial_number") {
			existing, err := repo.FindBySerial(ctx, serial)
			if err != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload device after insert race")
			}
			applySighting(existing, input, now)
			if err := repo.Update(ctx, existing); err != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update device")
			}
			return existing, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create device")
	}
	s.logg.Info(s.logg.WithSerial(ctx, serial), "device registered")
	return created, nil
}

// applySighting refreshes the registry row from a new sighting. Fields fill
// or improve; a sparse lookup never blanks what a richer one stored.
func applySighting(device *models.Device, input SightingInput, now time.Time) {
	if device.IMEI == nil && input.IMEI != "" {
		device.IMEI = optional(input.IMEI)
	}
	if input.Name != "" {
		device.Name = optional(input.Name)
	}
	if input.Brand != "" {
		device.Brand = optional(input.Brand)
	}
	if input.Model != "" {
		device.Model = optional(input.Model)
	}
	device.LookupTier = input.Tier
	device.LastLookupAt = &now
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
