package catalog

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/Luis3c4/IMEI/pkg/db/models"
	"github.com/Luis3c4/IMEI/pkg/enums"
)

func strPtr(s string) *string { return &s }

func testItem(serial string, status enums.ItemStatus, createdAt time.Time) models.ProductItem {
	return models.ProductItem{
		ID:           uuid.New(),
		SerialNumber: serial,
		Status:       status,
		CreatedAt:    createdAt,
	}
}

func TestBuildHierarchyGroupsByCapacityAcrossVariants(t *testing.T) {
	created := time.Date(2026, time.January, 29, 10, 0, 0, 0, time.UTC)
	product := models.Product{
		ID:       uuid.New(),
		Name:     "IPHONE 17 PRO",
		Category: strPtr("IPHONE"),
		Variants: []models.ProductVariant{
			{
				ID: uuid.New(), Color: strPtr("SILVER"), Capacity: strPtr("256GB"),
				Items: []models.ProductItem{testItem("S1", enums.ItemStatusAvailable, created)},
			},
			{
				ID: uuid.New(), Color: strPtr("SPACE BLACK"), Capacity: strPtr("256GB"),
				Items: []models.ProductItem{testItem("S2", enums.ItemStatusAvailable, created.Add(time.Hour))},
			},
			{
				ID: uuid.New(), Color: strPtr("SILVER"), Capacity: strPtr("512GB"),
				Items: []models.ProductItem{testItem("S3", enums.ItemStatusAvailable, created.Add(2 * time.Hour))},
			},
		},
	}

	view := buildHierarchy([]models.Product{product})
	if view.Count != 1 || len(view.Products) != 1 {
		t.Fatalf("expected a single product, got count=%d len=%d", view.Count, len(view.Products))
	}
	projected := view.Products[0]

	if projected.TotalQuantity != 3 {
		t.Errorf("TotalQuantity = %d, want 3", projected.TotalQuantity)
	}
	if len(projected.CapacityGroups) != 2 {
		t.Fatalf("expected 2 capacity groups, got %d", len(projected.CapacityGroups))
	}

	first := projected.CapacityGroups[0]
	if first.Capacity == nil || *first.Capacity != "256GB" {
		t.Fatalf("first group capacity = %v, want 256GB", first.Capacity)
	}
	if first.Quantity != 2 || len(first.Items) != 2 {
		t.Errorf("256GB group should fold both color variants: quantity=%d items=%d", first.Quantity, len(first.Items))
	}
	if len(first.Colors) != 2 {
		t.Errorf("256GB group colors = %v, want both variant colors", first.Colors)
	}
	if first.ID != product.ID.String()+":256gb" {
		t.Errorf("group ID = %q", first.ID)
	}

	if len(projected.Capacities) != 2 || *projected.Capacities[0] != "256GB" || *projected.Capacities[1] != "512GB" {
		t.Errorf("capacities = %v, want [256GB 512GB]", derefAll(projected.Capacities))
	}
	if len(projected.Colors) != 2 {
		t.Errorf("product colors = %v, want SILVER and SPACE BLACK", projected.Colors)
	}
	if projected.LastUpdate != "29 de enero" {
		t.Errorf("LastUpdate = %q, want %q", projected.LastUpdate, "29 de enero")
	}
}

func TestBuildHierarchyExcludesSoldItemsAndEmptyProducts(t *testing.T) {
	now := time.Now()
	sellable := models.Product{
		ID:   uuid.New(),
		Name: "IPAD PRO 11-INCH",
		Variants: []models.ProductVariant{
			{
				ID: uuid.New(), Capacity: strPtr("256GB"),
				Items: []models.ProductItem{
					testItem("A1", enums.ItemStatusAvailable, now),
					testItem("A2", enums.ItemStatusSold, now),
				},
			},
			{
				// Nothing available: this variant must not contribute facets.
				ID: uuid.New(), Color: strPtr("SILVER"), Capacity: strPtr("512GB"),
				Items: []models.ProductItem{testItem("A3", enums.ItemStatusSold, now)},
			},
		},
	}
	soldOut := models.Product{
		ID:   uuid.New(),
		Name: "APPLE TV 4K",
		Variants: []models.ProductVariant{
			{
				ID: uuid.New(), Capacity: strPtr("64GB"),
				Items: []models.ProductItem{testItem("T1", enums.ItemStatusSold, now)},
			},
		},
	}

	view := buildHierarchy([]models.Product{sellable, soldOut})
	if view.Count != 1 {
		t.Fatalf("sold-out product must disappear from the view, count = %d", view.Count)
	}
	projected := view.Products[0]
	if projected.Name != "IPAD PRO 11-INCH" {
		t.Fatalf("unexpected product %q", projected.Name)
	}
	if projected.TotalQuantity != 1 {
		t.Errorf("TotalQuantity = %d, want 1", projected.TotalQuantity)
	}
	if len(projected.Capacities) != 1 || *projected.Capacities[0] != "256GB" {
		t.Errorf("capacities = %v, want only 256GB", derefAll(projected.Capacities))
	}
	if len(projected.Colors) != 0 {
		t.Errorf("colors = %v, want none; the SILVER variant has nothing available", projected.Colors)
	}
	for _, group := range projected.CapacityGroups {
		for _, item := range group.Items {
			if item.Serial == "A2" || item.Serial == "A3" {
				t.Errorf("sold item %s leaked into the view", item.Serial)
			}
		}
	}
}

func TestBuildHierarchyAbsentCapacitySortsLast(t *testing.T) {
	now := time.Now()
	product := models.Product{
		ID:   uuid.New(),
		Name: "AIRPODS PRO",
		Variants: []models.ProductVariant{
			{
				ID:    uuid.New(),
				Items: []models.ProductItem{testItem("N1", enums.ItemStatusAvailable, now)},
			},
			{
				ID: uuid.New(), Capacity: strPtr("128GB"),
				Items: []models.ProductItem{testItem("N2", enums.ItemStatusAvailable, now)},
			},
		},
	}

	view := buildHierarchy([]models.Product{product})
	projected := view.Products[0]

	if len(projected.Capacities) != 2 {
		t.Fatalf("capacities = %v", derefAll(projected.Capacities))
	}
	if projected.Capacities[0] == nil || *projected.Capacities[0] != "128GB" {
		t.Errorf("first capacity = %v, want 128GB", projected.Capacities[0])
	}
	if projected.Capacities[1] != nil {
		t.Errorf("absent capacity must sort last, got %v", *projected.Capacities[1])
	}

	last := projected.CapacityGroups[1]
	if last.Capacity != nil {
		t.Fatalf("last group should be the no-capacity group")
	}
	if last.ID != product.ID.String()+":none" {
		t.Errorf("no-capacity group ID = %q", last.ID)
	}
}

func TestBuildHierarchyColorHexes(t *testing.T) {
	now := time.Now()
	product := models.Product{
		ID:   uuid.New(),
		Name: "IPHONE 17",
		Variants: []models.ProductVariant{
			{
				ID: uuid.New(), Color: strPtr("SILVER"), Capacity: strPtr("256GB"),
				Items: []models.ProductItem{testItem("C1", enums.ItemStatusAvailable, now)},
			},
			{
				ID: uuid.New(), Color: strPtr("NEON FLAME"), Capacity: strPtr("256GB"),
				Items: []models.ProductItem{testItem("C2", enums.ItemStatusAvailable, now)},
			},
			{
				ID: uuid.New(), Capacity: strPtr("512GB"),
				Items: []models.ProductItem{testItem("C3", enums.ItemStatusAvailable, now)},
			},
		},
	}

	view := buildHierarchy([]models.Product{product})
	projected := view.Products[0]

	if len(projected.Colors) != 2 {
		t.Fatalf("colors = %v; the colorless variant adds no facet", projected.Colors)
	}
	byName := map[string]string{}
	for _, facet := range projected.Colors {
		byName[facet.Name] = facet.Hex
	}
	if byName["SILVER"] != "#C0C0C0" {
		t.Errorf("SILVER hex = %q", byName["SILVER"])
	}
	if byName["NEON FLAME"] != "#808080" {
		t.Errorf("unknown color hex = %q, want neutral gray", byName["NEON FLAME"])
	}

	for _, group := range projected.CapacityGroups {
		for _, item := range group.Items {
			if item.Serial == "C3" {
				if item.Color != nil {
					t.Errorf("colorless item should keep a nil color")
				}
				if item.ColorHex != "#808080" {
					t.Errorf("colorless item hex = %q", item.ColorHex)
				}
			}
		}
	}
}

func TestFormatUpdateDate(t *testing.T) {
	if got := formatUpdateDate(time.Time{}); got != "Sin actualización" {
		t.Errorf("zero time = %q", got)
	}
	if got := formatUpdateDate(time.Date(2026, time.January, 29, 0, 0, 0, 0, time.UTC)); got != "29 de enero" {
		t.Errorf("got %q, want %q", got, "29 de enero")
	}
	if got := formatUpdateDate(time.Date(2025, time.December, 3, 0, 0, 0, 0, time.UTC)); got != "3 de diciembre" {
		t.Errorf("got %q, want %q", got, "3 de diciembre")
	}
}

func derefAll(values []*string) []string {
	out := make([]string, len(values))
	for i, value := range values {
		if value == nil {
			out[i] = "<nil>"
			continue
		}
		out[i] = *value
	}
	return out
}
