package catalog

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Luis3c4/IMEI/pkg/enums"
)

// Metadata carries caller context for a reconciliation: which vendor tier
// produced the record, the prices known at lookup time, and an optional
// manually assigned product number that outranks the static table.
type Metadata struct {
	Tier          enums.LookupTier
	LookupPrice   *decimal.Decimal
	ProductPrice  *decimal.Decimal
	ProductNumber string
	OrderID       string
}

// ReconcileResult reports which catalog rows a sighting resolved to. A store
// failure lands in Error with Success false; reconciliation never surfaces a
// panic or a partial crash to the caller.
type ReconcileResult struct {
	Success       bool      `json:"success"`
	ProductID     uuid.UUID `json:"productId,omitempty"`
	VariantID     uuid.UUID `json:"variantId,omitempty"`
	ItemID        uuid.UUID `json:"itemId,omitempty"`
	ProductNumber *string   `json:"productNumber,omitempty"`
	Error         string    `json:"error,omitempty"`
}

func failure(message string) ReconcileResult {
	return ReconcileResult{Success: false, Error: message}
}

// ColorFacet pairs a color name with the hex swatch the storefront renders.
type ColorFacet struct {
	Name string `json:"name"`
	Hex  string `json:"hex"`
}

// GroupItem is one physical unit inside a capacity group.
type GroupItem struct {
	Serial        string  `json:"serial"`
	ProductNumber *string `json:"productNumber"`
	Capacity      *string `json:"capacity"`
	Color         *string `json:"color"`
	ColorHex      string  `json:"colorHex"`
}

// CapacityGroup collects every available unit of a product that shares one
// capacity, regardless of which variant row it lives on. Capacity is nil for
// the group of units whose variants carry no capacity at all.
type CapacityGroup struct {
	ID       string       `json:"id"`
	Capacity *string      `json:"capacity"`
	Quantity int          `json:"quantity"`
	Colors   []ColorFacet `json:"colors"`
	Items    []GroupItem  `json:"items"`
}

// HierarchicalProduct is the storefront projection of one product: its
// sellable quantity, the capacity and color facets across variants, and the
// units grouped by capacity. Products with nothing available are omitted
// from the view entirely rather than rendered empty.
type HierarchicalProduct struct {
	ID             uuid.UUID       `json:"id"`
	Name           string          `json:"name"`
	Category       *string         `json:"category,omitempty"`
	TotalQuantity  int             `json:"totalQuantity"`
	Capacities     []*string       `json:"capacities"`
	Colors         []ColorFacet    `json:"colors"`
	LastUpdate     string          `json:"lastUpdate"`
	CapacityGroups []CapacityGroup `json:"capacityGroups"`
}

// HierarchyView is the full catalog projection returned to clients.
type HierarchyView struct {
	Products []HierarchicalProduct `json:"products"`
	Count    int                   `json:"count"`
}
