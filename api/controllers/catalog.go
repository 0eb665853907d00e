package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/Luis3c4/IMEI/api/responses"
	"github.com/Luis3c4/IMEI/api/validators"
	"github.com/Luis3c4/IMEI/internal/catalog"
	"github.com/Luis3c4/IMEI/pkg/db/models"
	"github.com/Luis3c4/IMEI/pkg/enums"
	pkgerrors "github.com/Luis3c4/IMEI/pkg/errors"
	"github.com/Luis3c4/IMEI/pkg/logger"
)

// CatalogHierarchy returns the nested product → capacity group → item view,
// optionally filtered by category.
func CatalogHierarchy(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		category := strings.TrimSpace(r.URL.Query().Get("category"))
		view, err := svc.Hierarchy(r.Context(), category)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

type itemStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=available sold"`
}

type itemResponse struct {
	ID            uuid.UUID        `json:"id"`
	VariantID     uuid.UUID        `json:"variant_id"`
	SerialNumber  string           `json:"serial_number"`
	ProductNumber *string          `json:"product_number,omitempty"`
	Status        enums.ItemStatus `json:"status"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

func itemResponseFromModel(m *models.ProductItem) itemResponse {
	return itemResponse{
		ID:            m.ID,
		VariantID:     m.VariantID,
		SerialNumber:  m.SerialNumber,
		ProductNumber: m.ProductNumber,
		Status:        m.Status,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

// CatalogItemStatus transitions one inventory unit between available and sold.
func CatalogItemStatus(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		itemID, err := uuid.Parse(strings.TrimSpace(chi.URLParam(r, "itemId")))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid item id"))
			return
		}

		var payload itemStatusRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		status, err := enums.ParseItemStatus(strings.TrimSpace(payload.Status))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid item status"))
			return
		}

		item, err := svc.SetItemStatus(r.Context(), itemID, status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, itemResponseFromModel(item))
	}
}
