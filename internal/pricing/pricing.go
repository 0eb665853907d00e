// Package pricing resolves catalog prices for parsed device descriptors
// against a static price table. Resolution tries a fixed chain of fallback
// strategies; when none matches the price is absent, never zero.
package pricing

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Luis3c4/IMEI/internal/modelparse"
)

// lookupStrategy answers with a price from one sub-table or passes to the
// next strategy in the chain.
type lookupStrategy func(sub map[string]decimal.Decimal, combined, storage string) (decimal.Decimal, bool)

// Sub-table strategies in priority order: the combined RAM/storage key, the
// storage-only key, the DEFAULT entry, then a lone entry taken
// unconditionally.
var lookupChain = []lookupStrategy{
	combinedKeyEntry,
	storageOnlyEntry,
	defaultEntry,
	singleEntry,
}

// Resolve returns the catalog price for a descriptor, or false when no
// strategy matches. Callers must treat absence as "price unknown", never as
// zero.
func Resolve(d modelparse.Descriptor) (decimal.Decimal, bool) {
	key := strings.ToUpper(strings.TrimSpace(d.FullModel))
	if key == "" {
		return decimal.Decimal{}, false
	}

	storage := strings.ToUpper(strings.TrimSpace(d.Capacity))
	if d.Brand == modelparse.BrandAppleWatch {
		// Price tables key Apple Watch by band size; prefer a size token
		// still present in the model text over the parsed capacity.
		if size := modelparse.WatchBandSize(key); size != "" {
			storage = size
		}
	}

	ram := strings.ToUpper(strings.TrimSpace(d.RAM))
	combined := storage
	if ram != "" && storage != "" {
		combined = ram + "/" + storage
	}

	if sub, ok := applePricing[key]; ok {
		return lookupPrice(sub, combined, storage)
	}

	// No exact model key: scan longest-first for a key contained in the
	// model text. A key whose sub-table yields nothing does not stop the
	// scan.
	for _, tableKey := range pricingKeysByLength {
		if !strings.Contains(key, tableKey) {
			continue
		}
		if price, ok := lookupPrice(applePricing[tableKey], combined, storage); ok {
			return price, true
		}
	}
	return decimal.Decimal{}, false
}

// StaticProductNumber returns the fixed product number for models that carry
// one, trying an exact name match before a longest-first containment scan.
func StaticProductNumber(productName string) (string, bool) {
	name := strings.ToUpper(strings.TrimSpace(productName))
	if name == "" {
		return "", false
	}
	if number, ok := staticProductNumbers[name]; ok {
		return number, true
	}
	for _, key := range productNumberKeysByLength {
		if strings.Contains(name, key) {
			return staticProductNumbers[key], true
		}
	}
	return "", false
}

func lookupPrice(sub map[string]decimal.Decimal, combined, storage string) (decimal.Decimal, bool) {
	for _, strategy := range lookupChain {
		if price, ok := strategy(sub, combined, storage); ok {
			return price, true
		}
	}
	return decimal.Decimal{}, false
}

func combinedKeyEntry(sub map[string]decimal.Decimal, combined, _ string) (decimal.Decimal, bool) {
	if combined == "" {
		return decimal.Decimal{}, false
	}
	price, ok := sub[combined]
	return price, ok
}

func storageOnlyEntry(sub map[string]decimal.Decimal, combined, storage string) (decimal.Decimal, bool) {
	if storage == "" || storage == combined {
		return decimal.Decimal{}, false
	}
	price, ok := sub[storage]
	return price, ok
}

func defaultEntry(sub map[string]decimal.Decimal, _, _ string) (decimal.Decimal, bool) {
	price, ok := sub[defaultPriceKey]
	return price, ok
}

func singleEntry(sub map[string]decimal.Decimal, _, _ string) (decimal.Decimal, bool) {
	if len(sub) != 1 {
		return decimal.Decimal{}, false
	}
	for _, price := range sub {
		return price, true
	}
	return decimal.Decimal{}, false
}
