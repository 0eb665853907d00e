package controllers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Luis3c4/IMEI/api/responses"
	"github.com/Luis3c4/IMEI/api/validators"
	"github.com/Luis3c4/IMEI/internal/catalog"
	"github.com/Luis3c4/IMEI/internal/devices"
	"github.com/Luis3c4/IMEI/internal/identity"
	"github.com/Luis3c4/IMEI/internal/modelparse"
	"github.com/Luis3c4/IMEI/internal/pricing"
	"github.com/Luis3c4/IMEI/pkg/db/models"
	"github.com/Luis3c4/IMEI/pkg/enums"
	pkgerrors "github.com/Luis3c4/IMEI/pkg/errors"
	"github.com/Luis3c4/IMEI/pkg/logger"
	"github.com/Luis3c4/IMEI/pkg/metrics"
	pkgpagination "github.com/Luis3c4/IMEI/pkg/pagination"
)

// reconcileRequest carries one raw vendor lookup record plus caller metadata.
// Record keys may use the vendor's spaced names; they are normalized before
// the pipeline reads them.
type reconcileRequest struct {
	Record   map[string]any           `json:"record" validate:"required"`
	Metadata reconcileMetadataRequest `json:"metadata"`
}

type reconcileMetadataRequest struct {
	Tier          string           `json:"tier"`
	OrderID       string           `json:"order_id"`
	ProductNumber string           `json:"product_number"`
	ProductPrice  *decimal.Decimal `json:"product_price"`
}

func (m reconcileMetadataRequest) toMetadata(record catalog.RawRecord) (catalog.Metadata, error) {
	// Vendor exports occasionally pad these fields with junk; keep them bounded.
	meta := catalog.Metadata{
		ProductNumber: validators.SanitizeString(m.ProductNumber, 64),
		OrderID:       validators.SanitizeString(m.OrderID, 64),
		ProductPrice:  m.ProductPrice,
	}

	tier := strings.TrimSpace(m.Tier)
	if tier == "" {
		// The tier mirrors how the identity would have been looked up.
		if identity.DetectKind(record.Identity()) == identity.KindIMEI {
			meta.Tier = enums.LookupTierIMEI
		} else {
			meta.Tier = enums.LookupTierSerial
		}
		return meta, nil
	}

	parsed, err := enums.ParseLookupTier(tier)
	if err != nil {
		return catalog.Metadata{}, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("invalid lookup tier %q: must be %s (imei) or %s (serial)", tier, enums.LookupTierIMEI, enums.LookupTierSerial))
	}
	meta.Tier = parsed
	return meta, nil
}

type reconcileResponse struct {
	Success       bool                  `json:"success"`
	ProductID     *uuid.UUID            `json:"productId,omitempty"`
	VariantID     *uuid.UUID            `json:"variantId,omitempty"`
	ItemID        *uuid.UUID            `json:"itemId,omitempty"`
	ProductNumber *string               `json:"productNumber,omitempty"`
	Price         *decimal.Decimal      `json:"price,omitempty"`
	Descriptor    modelparse.Descriptor `json:"descriptor"`
	Error         string                `json:"error,omitempty"`
}

func reconcileResponseFrom(result catalog.ReconcileResult, descriptor modelparse.Descriptor, price *decimal.Decimal) reconcileResponse {
	resp := reconcileResponse{
		Success:    result.Success,
		Descriptor: descriptor,
		Error:      result.Error,
	}
	if !result.Success {
		return resp
	}
	productID, variantID, itemID := result.ProductID, result.VariantID, result.ItemID
	resp.ProductID = &productID
	resp.VariantID = &variantID
	resp.ItemID = &itemID
	resp.ProductNumber = result.ProductNumber
	resp.Price = price
	return resp
}

// DeviceReconcile runs the full intake pipeline for one vendor record:
// normalize keys, validate the identity, parse the description, resolve a
// price, reconcile into the catalog, and record the device sighting.
func DeviceReconcile(catalogSvc catalog.Service, deviceSvc devices.Service, pipeline *metrics.PipelineMetrics, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if catalogSvc == nil || deviceSvc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reconcile pipeline unavailable"))
			return
		}

		var payload reconcileRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		normalized, ok := catalog.NormalizeKeys(payload.Record).(map[string]any)
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "record must be a JSON object"))
			return
		}
		record := catalog.RecordFromPayload(normalized)

		if err := preflightIdentity(record); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		meta, err := payload.Metadata.toMetadata(record)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		descriptor := parseRecord(record)
		if price, resolved := pricing.Resolve(descriptor); resolved {
			meta.LookupPrice = &price
			pipeline.IncPriceResolution(true)
		} else {
			pipeline.IncPriceResolution(false)
		}

		result := catalogSvc.Reconcile(r.Context(), record, descriptor, meta)

		if result.Success {
			if _, err := deviceSvc.RecordSighting(r.Context(), sightingInputFrom(record, descriptor, meta, normalized)); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		responses.WriteSuccess(w, reconcileResponseFrom(result, descriptor, meta.LookupPrice))
	}
}

// preflightIdentity rejects records whose identifiers are present but
// malformed. IMEIs must pass the Luhn check digit; serials must match a known
// Apple format.
func preflightIdentity(record catalog.RawRecord) error {
	if record.IMEI != "" {
		if ok, msg := identity.ValidateIMEI(record.IMEI, true); !ok {
			return pkgerrors.New(pkgerrors.CodeValidation, msg)
		}
	}
	if record.SerialNumber != "" {
		if ok, msg := identity.ValidateSerial(record.SerialNumber); !ok {
			return pkgerrors.New(pkgerrors.CodeValidation, msg)
		}
	}
	if record.Identity() == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "record carries no serial number or imei")
	}
	return nil
}

func parseRecord(record catalog.RawRecord) modelparse.Descriptor {
	text := record.ModelDescription
	if strings.TrimSpace(text) == "" {
		text = record.Model
	}
	return modelparse.Parse(text)
}

func sightingInputFrom(record catalog.RawRecord, descriptor modelparse.Descriptor, meta catalog.Metadata, normalized map[string]any) devices.SightingInput {
	model := record.Model
	if model == "" {
		model = record.ModelDescription
	}

	var rawPayload json.RawMessage
	if data, err := json.Marshal(normalized); err == nil {
		rawPayload = data
	}

	return devices.SightingInput{
		SerialNumber: record.Identity(),
		IMEI:         record.IMEI,
		Name:         descriptor.FullModel,
		Brand:        descriptor.Brand,
		Model:        model,
		Tier:         meta.Tier,
		Payload:      rawPayload,
		LookupPrice:  meta.LookupPrice,
		CatalogPrice: meta.ProductPrice,
	}
}

type parseRequest struct {
	Description string `json:"description" validate:"required"`
}

type parseResponse struct {
	Descriptor    modelparse.Descriptor `json:"descriptor"`
	Price         *decimal.Decimal      `json:"price,omitempty"`
	PriceResolved bool                  `json:"priceResolved"`
}

// DeviceParse is the dry-run half of the pipeline: parse and price a
// description without touching the store.
func DeviceParse(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload parseRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		descriptor := modelparse.Parse(payload.Description)
		resp := parseResponse{Descriptor: descriptor}
		if price, resolved := pricing.Resolve(descriptor); resolved {
			resp.Price = &price
			resp.PriceResolved = true
		}

		responses.WriteSuccess(w, resp)
	}
}

type validateRequest struct {
	Value string `json:"value" validate:"required"`
	Kind  string `json:"kind" validate:"omitempty,oneof=imei serial"`
}

// DeviceValidate classifies a device identifier and validates it against the
// known IMEI and serial formats, without touching the store. Kind is optional;
// when omitted the kind is detected from the value itself.
func DeviceValidate(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload validateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, identity.Validate(payload.Value, identity.Kind(payload.Kind)))
	}
}

// DeviceList returns the paginated device registry, optionally filtered by
// lookup tier.
func DeviceList(svc devices.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "device service unavailable"))
			return
		}

		params := devices.ListParams{}

		limit, err := validators.ParseQueryInt(r, "limit", 0, 1, pkgpagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params.Limit = limit

		if cursor := strings.TrimSpace(r.URL.Query().Get("cursor")); cursor != "" {
			params.Cursor = cursor
		}
		if tier := strings.TrimSpace(r.URL.Query().Get("tier")); tier != "" {
			params.Tier = enums.LookupTier(tier)
		}

		result, err := svc.ListDevices(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

type deviceResponse struct {
	ID           uuid.UUID        `json:"id"`
	SerialNumber string           `json:"serial_number"`
	IMEI         *string          `json:"imei,omitempty"`
	Name         *string          `json:"name,omitempty"`
	Brand        *string          `json:"brand,omitempty"`
	Model        *string          `json:"model,omitempty"`
	LookupTier   enums.LookupTier `json:"lookup_tier"`
	LastLookupAt *time.Time       `json:"last_lookup_at,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

func deviceResponseFromModel(m *models.Device) deviceResponse {
	return deviceResponse{
		ID:           m.ID,
		SerialNumber: m.SerialNumber,
		IMEI:         m.IMEI,
		Name:         m.Name,
		Brand:        m.Brand,
		Model:        m.Model,
		LookupTier:   m.LookupTier,
		LastLookupAt: m.LastLookupAt,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

// DeviceDetail returns one registry row by serial number.
func DeviceDetail(svc devices.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "device service unavailable"))
			return
		}

		serial := strings.TrimSpace(chi.URLParam(r, "serial"))
		device, err := svc.GetDevice(r.Context(), serial)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, deviceResponseFromModel(device))
	}
}

// DeviceLookups returns the paginated lookup history for one device.
func DeviceLookups(svc devices.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "device service unavailable"))
			return
		}

		serial := strings.TrimSpace(chi.URLParam(r, "serial"))

		params := pkgpagination.Params{}
		limit, err := validators.ParseQueryInt(r, "limit", 0, 1, pkgpagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params.Limit = limit
		if cursor := strings.TrimSpace(r.URL.Query().Get("cursor")); cursor != "" {
			params.Cursor = cursor
		}

		result, err := svc.ListLookups(r.Context(), serial, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
