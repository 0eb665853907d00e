package catalog

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Luis3c4/IMEI/internal/modelparse"
	"github.com/Luis3c4/IMEI/pkg/db/models"
	"github.com/Luis3c4/IMEI/pkg/enums"
)

var spanishMonths = [...]string{
	"enero", "febrero", "marzo", "abril", "mayo", "junio",
	"julio", "agosto", "septiembre", "octubre", "noviembre", "diciembre",
}

const noUpdateLabel = "Sin actualización"

// formatUpdateDate renders the storefront's humanized date, "29 de enero".
func formatUpdateDate(t time.Time) string {
	if t.IsZero() {
		return noUpdateLabel
	}
	return fmt.Sprintf("%d de %s", t.Day(), spanishMonths[int(t.Month())-1])
}

// buildHierarchy projects loaded catalog rows into the storefront view. Only
// available items count: a variant with nothing available contributes no
// facets, and a product with nothing available disappears from the view.
func buildHierarchy(products []models.Product) *HierarchyView {
	view := &HierarchyView{Products: make([]HierarchicalProduct, 0, len(products))}
	for _, product := range products {
		if projected, ok := buildProduct(product); ok {
			view.Products = append(view.Products, projected)
		}
	}
	view.Count = len(view.Products)
	return view
}

func buildProduct(product models.Product) (HierarchicalProduct, bool) {
	var (
		total      int
		lastUpdate time.Time
		colors     []ColorFacet
		seenColors = map[string]bool{}
		groups     = map[string]*CapacityGroup{}
	)

	for _, variant := range product.Variants {
		available := availableItems(variant.Items)
		if len(available) == 0 {
			continue
		}
		total += len(available)

		if variant.Color != nil && !seenColors[*variant.Color] {
			seenColors[*variant.Color] = true
			colors = append(colors, ColorFacet{
				Name: *variant.Color,
				Hex:  modelparse.ColorHex(*variant.Color),
			})
		}

		// Groups span variants: two variants that differ only by color
		// fold their units into the same capacity group.
		key := capacityKey(variant.Capacity)
		group, ok := groups[key]
		if !ok {
			group = &CapacityGroup{
				ID:       groupID(product.ID.String(), variant.Capacity),
				Capacity: variant.Capacity,
			}
			groups[key] = group
		}
		for _, item := range available {
			if item.CreatedAt.After(lastUpdate) {
				lastUpdate = item.CreatedAt
			}
			group.Items = append(group.Items, GroupItem{
				Serial:        item.SerialNumber,
				ProductNumber: item.ProductNumber,
				Capacity:      variant.Capacity,
				Color:         variant.Color,
				ColorHex:      colorHexFor(variant.Color),
			})
		}
	}

	if total == 0 {
		return HierarchicalProduct{}, false
	}

	ordered := make([]CapacityGroup, 0, len(groups))
	for _, group := range groups {
		group.Quantity = len(group.Items)
		group.Colors = groupColors(group.Items)
		ordered = append(ordered, *group)
	}
	// Capacities sort lexically; the no-capacity facet always renders last.
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i].Capacity, ordered[j].Capacity
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return *a < *b
		}
	})

	capacities := make([]*string, len(ordered))
	for i, group := range ordered {
		capacities[i] = group.Capacity
	}

	return HierarchicalProduct{
		ID:             product.ID,
		Name:           product.Name,
		Category:       product.Category,
		TotalQuantity:  total,
		Capacities:     capacities,
		Colors:         colors,
		LastUpdate:     formatUpdateDate(lastUpdate),
		CapacityGroups: ordered,
	}, true
}

func availableItems(items []models.ProductItem) []models.ProductItem {
	kept := make([]models.ProductItem, 0, len(items))
	for _, item := range items {
		if item.Status == enums.ItemStatusAvailable {
			kept = append(kept, item)
		}
	}
	return kept
}

func groupColors(items []GroupItem) []ColorFacet {
	var facets []ColorFacet
	seen := map[string]bool{}
	for _, item := range items {
		if item.Color == nil || seen[*item.Color] {
			continue
		}
		seen[*item.Color] = true
		facets = append(facets, ColorFacet{Name: *item.Color, Hex: item.ColorHex})
	}
	return facets
}

func capacityKey(capacity *string) string {
	if capacity == nil {
		return ""
	}
	return *capacity
}

func groupID(productID string, capacity *string) string {
	if capacity == nil {
		return productID + ":none"
	}
	return productID + ":" + strings.ToLower(*capacity)
}

func colorHexFor(color *string) string {
	if color == nil {
		return modelparse.ColorHex("")
	}
	return modelparse.ColorHex(*color)
}
