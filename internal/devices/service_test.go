package devices

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/Luis3c4/IMEI/pkg/db/models"
	"github.com/Luis3c4/IMEI/pkg/enums"
	pkgerrors "github.com/Luis3c4/IMEI/pkg/errors"
	"github.com/Luis3c4/IMEI/pkg/logger"
	pkgpagination "github.com/Luis3c4/IMEI/pkg/pagination"
)

var devicesDDL = []string{
	`CREATE TABLE devices (
		id TEXT PRIMARY KEY,
		serial_number TEXT NOT NULL,
		imei TEXT,
		name TEXT,
		brand TEXT,
		model TEXT,
		lookup_tier TEXT NOT NULL,
		last_lookup_at DATETIME,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE UNIQUE INDEX ux_devices_serial_number ON devices (serial_number)`,
	`CREATE TABLE device_lookups (
		id TEXT PRIMARY KEY,
		device_id TEXT NOT NULL,
		tier TEXT NOT NULL,
		payload TEXT NOT NULL,
		lookup_price NUMERIC,
		catalog_price NUMERIC,
		created_at DATETIME
	)`,
}

func openDevicesDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	for _, stmt := range devicesDDL {
		if err := conn.Exec(stmt).Error; err != nil {
			t.Fatalf("failed to apply test schema: %v", err)
		}
	}
	return conn
}

type testTx struct {
	db *gorm.DB
}

func (t testTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return t.db.WithContext(ctx).Transaction(fn)
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{
		ServiceName: "devices-test",
		Level:       zerolog.ErrorLevel,
		Output:      io.Discard,
	})
}

func newDevicesService(t *testing.T, conn *gorm.DB) Service {
	t.Helper()
	svc, err := NewService(NewRepository(conn), testTx{db: conn}, testLogger())
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func seedDevice(t *testing.T, conn *gorm.DB, serial string, tier enums.LookupTier, createdAt time.Time) *models.Device {
	t.Helper()
	device := &models.Device{
		SerialNumber: serial,
		LookupTier:   tier,
		CreatedAt:    createdAt,
	}
	if err := conn.Create(device).Error; err != nil {
		t.Fatalf("seed device %s: %v", serial, err)
	}
	return device
}

func seedLookup(t *testing.T, conn *gorm.DB, deviceID uuid.UUID, tier enums.LookupTier, createdAt time.Time) *models.DeviceLookup {
	t.Helper()
	lookup := &models.DeviceLookup{
		DeviceID:  deviceID,
		Tier:      tier,
		Payload:   json.RawMessage(fmt.Sprintf(`{"at":%q}`, createdAt.Format(time.RFC3339))),
		CreatedAt: createdAt,
	}
	if err := conn.Create(lookup).Error; err != nil {
		t.Fatalf("seed lookup: %v", err)
	}
	return lookup
}

func TestRecordSightingCreatesDeviceAndLookup(t *testing.T) {
	conn := openDevicesDB(t)
	svc := newDevicesService(t, conn)

	price := decimal.NewFromFloat(319.99)
	device, err := svc.RecordSighting(context.Background(), SightingInput{
		SerialNumber: "F2LLMB0QHG04",
		IMEI:         "353915102643441",
		Name:         "iPhone 17 Pro Max",
		Brand:        "Apple",
		Model:        "IPHONE 17 PRO MAX SILVER 512GB-USA",
		Tier:         enums.LookupTierIMEI,
		Payload:      json.RawMessage(`{"Model":"IPHONE 17 PRO MAX SILVER 512GB-USA"}`),
		LookupPrice:  &price,
	})
	if err != nil {
		t.Fatalf("RecordSighting: %v", err)
	}
	if device.ID == uuid.Nil {
		t.Fatal("expected device id to be assigned")
	}
	if device.IMEI == nil || *device.IMEI != "353915102643441" {
		t.Fatalf("expected imei recorded, got %v", device.IMEI)
	}
	if device.Name == nil || *device.Name != "iPhone 17 Pro Max" {
		t.Fatalf("expected name recorded, got %v", device.Name)
	}
	if device.LookupTier != enums.LookupTierIMEI {
		t.Fatalf("expected tier %s, got %s", enums.LookupTierIMEI, device.LookupTier)
	}
	if device.LastLookupAt == nil {
		t.Fatal("expected last lookup timestamp")
	}

	var lookups []models.DeviceLookup
	if err := conn.Find(&lookups).Error; err != nil {
		t.Fatalf("load lookups: %v", err)
	}
	if len(lookups) != 1 {
		t.Fatalf("expected 1 lookup row, got %d", len(lookups))
	}
	if lookups[0].DeviceID != device.ID {
		t.Fatalf("lookup references device %s, want %s", lookups[0].DeviceID, device.ID)
	}
	if lookups[0].LookupPrice == nil || !lookups[0].LookupPrice.Equal(price) {
		t.Fatalf("expected lookup price %s, got %v", price, lookups[0].LookupPrice)
	}
	if !strings.Contains(string(lookups[0].Payload), "IPHONE 17 PRO MAX") {
		t.Fatalf("expected raw payload preserved, got %s", lookups[0].Payload)
	}
}

func TestRecordSightingEnrichesExistingDevice(t *testing.T) {
	conn := openDevicesDB(t)
	svc := newDevicesService(t, conn)
	ctx := context.Background()

	// Sparse serial-tier sighting first.
	if _, err := svc.RecordSighting(ctx, SightingInput{
		SerialNumber: "C39TM2WYGRY7",
		Tier:         enums.LookupTierSerial,
	}); err != nil {
		t.Fatalf("first sighting: %v", err)
	}

	// Richer sighting fills the blanks.
	if _, err := svc.RecordSighting(ctx, SightingInput{
		SerialNumber: "C39TM2WYGRY7",
		IMEI:         "356656420109876",
		Name:         "iPad Pro 11-inch",
		Brand:        "Apple",
		Model:        "IPAD PRO 11-INCH 256GB -USA",
		Tier:         enums.LookupTierIMEI,
	}); err != nil {
		t.Fatalf("second sighting: %v", err)
	}

	// A later sparse sighting must not blank fields, and a conflicting
	// IMEI must not replace the stored one.
	device, err := svc.RecordSighting(ctx, SightingInput{
		SerialNumber: "C39TM2WYGRY7",
		IMEI:         "999999999999999",
		Tier:         enums.LookupTierSerial,
	})
	if err != nil {
		t.Fatalf("third sighting: %v", err)
	}

	var count int64
	if err := conn.Model(&models.Device{}).Count(&count).Error; err != nil {
		t.Fatalf("count devices: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected a single registry row, got %d", count)
	}
	if device.IMEI == nil || *device.IMEI != "356656420109876" {
		t.Fatalf("expected first recorded imei to stick, got %v", device.IMEI)
	}
	if device.Name == nil || *device.Name != "iPad Pro 11-inch" {
		t.Fatalf("expected name preserved, got %v", device.Name)
	}
	if device.Brand == nil || *device.Brand != "Apple" {
		t.Fatalf("expected brand preserved, got %v", device.Brand)
	}
	if device.LookupTier != enums.LookupTierSerial {
		t.Fatalf("expected tier to follow the latest sighting, got %s", device.LookupTier)
	}

	var lookups int64
	if err := conn.Model(&models.DeviceLookup{}).Count(&lookups).Error; err != nil {
		t.Fatalf("count lookups: %v", err)
	}
	if lookups != 3 {
		t.Fatalf("expected 3 history rows, got %d", lookups)
	}
}

func TestRecordSightingValidation(t *testing.T) {
	conn := openDevicesDB(t)
	svc := newDevicesService(t, conn)

	cases := []struct {
		name  string
		input SightingInput
	}{
		{name: "missing serial", input: SightingInput{Tier: enums.LookupTierIMEI}},
		{name: "blank serial", input: SightingInput{SerialNumber: "   ", Tier: enums.LookupTierIMEI}},
		{name: "unknown tier", input: SightingInput{SerialNumber: "F2LLMB0QHG04", Tier: enums.LookupTier("premium")}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.RecordSighting(context.Background(), tc.input)
			if err == nil {
				t.Fatal("expected a validation error")
			}
			appErr := pkgerrors.As(err)
			if appErr == nil || appErr.Code() != pkgerrors.CodeValidation {
				t.Fatalf("expected %s, got %v", pkgerrors.CodeValidation, err)
			}
		})
	}

	var devices, lookups int64
	conn.Model(&models.Device{}).Count(&devices)
	conn.Model(&models.DeviceLookup{}).Count(&lookups)
	if devices != 0 || lookups != 0 {
		t.Fatalf("rejected sightings must not write rows, got %d devices %d lookups", devices, lookups)
	}
}

func TestRecordSightingDefaultsPayload(t *testing.T) {
	conn := openDevicesDB(t)
	svc := newDevicesService(t, conn)

	if _, err := svc.RecordSighting(context.Background(), SightingInput{
		SerialNumber: "DMPWL6TYJF8X",
		Tier:         enums.LookupTierSerial,
	}); err != nil {
		t.Fatalf("RecordSighting: %v", err)
	}

	var lookup models.DeviceLookup
	if err := conn.First(&lookup).Error; err != nil {
		t.Fatalf("load lookup: %v", err)
	}
	if string(lookup.Payload) != "{}" {
		t.Fatalf("expected empty-object payload, got %q", lookup.Payload)
	}
}

func TestGetDeviceNotFound(t *testing.T) {
	conn := openDevicesDB(t)
	svc := newDevicesService(t, conn)

	_, err := svc.GetDevice(context.Background(), "NOPE123456")
	if err == nil {
		t.Fatal("expected not-found error")
	}
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected %s, got %v", pkgerrors.CodeNotFound, err)
	}
}

func TestListDevicesPaginatesWithoutSkips(t *testing.T) {
	conn := openDevicesDB(t)
	svc := newDevicesService(t, conn)

	base := time.Date(2026, time.January, 10, 12, 0, 0, 0, time.UTC)
	seedDevice(t, conn, "SERIAL-A", enums.LookupTierSerial, base)
	seedDevice(t, conn, "SERIAL-B", enums.LookupTierSerial, base.Add(time.Minute))
	seedDevice(t, conn, "SERIAL-C", enums.LookupTierSerial, base.Add(2*time.Minute))

	page1, err := svc.ListDevices(context.Background(), ListParams{Params: pkgpagination.Params{Limit: 2}})
	if err != nil {
		t.Fatalf("page 1: %v", err)
	}
	if len(page1.Items) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(page1.Items))
	}
	if page1.Items[0].SerialNumber != "SERIAL-C" || page1.Items[1].SerialNumber != "SERIAL-B" {
		t.Fatalf("expected newest-first ordering, got %s then %s", page1.Items[0].SerialNumber, page1.Items[1].SerialNumber)
	}
	if page1.Cursor == "" {
		t.Fatal("expected a next-page cursor")
	}

	page2, err := svc.ListDevices(context.Background(), ListParams{Params: pkgpagination.Params{Limit: 2, Cursor: page1.Cursor}})
	if err != nil {
		t.Fatalf("page 2: %v", err)
	}
	if len(page2.Items) != 1 || page2.Items[0].SerialNumber != "SERIAL-A" {
		t.Fatalf("expected exactly the remaining row, got %+v", page2.Items)
	}
	if page2.Cursor != "" {
		t.Fatalf("expected exhausted cursor, got %q", page2.Cursor)
	}
}

func TestListDevicesFiltersByTier(t *testing.T) {
	conn := openDevicesDB(t)
	svc := newDevicesService(t, conn)

	base := time.Date(2026, time.January, 10, 12, 0, 0, 0, time.UTC)
	seedDevice(t, conn, "SERIAL-A", enums.LookupTierIMEI, base)
	seedDevice(t, conn, "SERIAL-B", enums.LookupTierSerial, base.Add(time.Minute))
	seedDevice(t, conn, "SERIAL-C", enums.LookupTierIMEI, base.Add(2*time.Minute))

	result, err := svc.ListDevices(context.Background(), ListParams{Tier: enums.LookupTierIMEI})
	if err != nil {
		t.Fatalf("ListDevices: %v", err)
	}
	if len(result.Items) != 2 {
		t.Fatalf("expected 2 imei-tier rows, got %d", len(result.Items))
	}
	for _, item := range result.Items {
		if item.LookupTier != enums.LookupTierIMEI {
			t.Fatalf("unexpected tier %s for %s", item.LookupTier, item.SerialNumber)
		}
	}

	_, err = svc.ListDevices(context.Background(), ListParams{Tier: enums.LookupTier("vip")})
	if err == nil {
		t.Fatal("expected a validation error for an unknown tier filter")
	}
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected %s, got %v", pkgerrors.CodeValidation, err)
	}
}

func TestListDevicesRejectsMalformedCursor(t *testing.T) {
	conn := openDevicesDB(t)
	svc := newDevicesService(t, conn)

	_, err := svc.ListDevices(context.Background(), ListParams{Params: pkgpagination.Params{Cursor: "not-a-cursor"}})
	if err == nil {
		t.Fatal("expected a validation error")
	}
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected %s, got %v", pkgerrors.CodeValidation, err)
	}
}

func TestListLookupsNewestFirst(t *testing.T) {
	conn := openDevicesDB(t)
	svc := newDevicesService(t, conn)

	base := time.Date(2026, time.February, 1, 9, 0, 0, 0, time.UTC)
	device := seedDevice(t, conn, "F2LLMB0QHG04", enums.LookupTierIMEI, base)
	seedLookup(t, conn, device.ID, enums.LookupTierSerial, base)
	seedLookup(t, conn, device.ID, enums.LookupTierIMEI, base.Add(time.Minute))
	seedLookup(t, conn, device.ID, enums.LookupTierIMEI, base.Add(2*time.Minute))

	page1, err := svc.ListLookups(context.Background(), "F2LLMB0QHG04", pkgpagination.Params{Limit: 2})
	if err != nil {
		t.Fatalf("page 1: %v", err)
	}
	if len(page1.Items) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(page1.Items))
	}
	if !page1.Items[0].CreatedAt.After(page1.Items[1].CreatedAt) {
		t.Fatalf("expected newest-first ordering, got %s then %s", page1.Items[0].CreatedAt, page1.Items[1].CreatedAt)
	}
	if page1.Cursor == "" {
		t.Fatal("expected a next-page cursor")
	}

	page2, err := svc.ListLookups(context.Background(), "F2LLMB0QHG04", pkgpagination.Params{Limit: 2, Cursor: page1.Cursor})
	if err != nil {
		t.Fatalf("page 2: %v", err)
	}
	if len(page2.Items) != 1 {
		t.Fatalf("expected the oldest row alone, got %d", len(page2.Items))
	}
	if !page2.Items[0].CreatedAt.Equal(base) {
		t.Fatalf("expected the oldest lookup, got %s", page2.Items[0].CreatedAt)
	}
}

func TestListLookupsUnknownSerial(t *testing.T) {
	conn := openDevicesDB(t)
	svc := newDevicesService(t, conn)

	_, err := svc.ListLookups(context.Background(), "UNSEEN404", pkgpagination.Params{})
	if err == nil {
		t.Fatal("expected not-found error")
	}
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected %s, got %v", pkgerrors.CodeNotFound, err)
	}
}
