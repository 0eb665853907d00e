package pricing

import (
	"sort"

	"github.com/shopspring/decimal"
)

// defaultPriceKey prices a model when no capacity-specific entry applies.
const defaultPriceKey = "DEFAULT"

func usd(amount int64) decimal.Decimal {
	return decimal.NewFromInt(amount)
}

// applePricing holds list prices in USD as of January 2026, keyed by model
// then capacity. Apple Watch capacities are band sizes (42MM, 49MM). MacBook
// keys intentionally omit the closing parenthesis so one entry covers every
// sub-variant suffix through the partial-match scan.
var applePricing = map[string]map[string]decimal.Decimal{
	// iPhone
	"IPHONE 17 PRO": {
		"256GB": usd(1099),
		"512GB": usd(1299),
		"1TB":   usd(1499),
	},
	"IPHONE 17 PRO MAX": {
		"256GB": usd(1199),
		"512GB": usd(1399),
		"1TB":   usd(1599),
		"2TB":   usd(1999),
	},
	"IPHONE 17": {
		"128GB": usd(699),
		"256GB": usd(799),
		"512GB": usd(999),
	},
	"IPHONE 17 AIR": {
		"256GB": usd(1099),
	},

	// MacBook; RAM/storage combined keys first, storage-only fallbacks after.
	"MACBOOK AIR (13-INCH M4": {
		"16GB/256GB":    usd(999),
		"16GB/512GB":    usd(1199),
		"24GB/512GB":    usd(1399),
		"256GB":         usd(999),
		"512GB":         usd(1299),
		defaultPriceKey: usd(999),
	},
	"MACBOOK AIR (15-INCH M4": {
		"16GB/256GB":    usd(1199),
		"16GB/512GB":    usd(1399),
		"24GB/512GB":    usd(1599),
		"256GB":         usd(1199),
		"512GB":         usd(1399),
		defaultPriceKey: usd(1199),
	},
	"MACBOOK PRO (14-INCH": {
		"24GB/512GB": usd(1999),
		"24GB/1TB":   usd(2399),
		"36GB/1TB":   usd(2399),
		"512GB":      usd(1599),
		"1TB":        usd(1999),
	},
	"MACBOOK PRO (16-INCH": {
		"24GB/512GB": usd(2499),
		"48GB/512GB": usd(2899),
		"16GB/1TB":   usd(2899),
		"512GB":      usd(2499),
		"1TB":        usd(2899),
	},
	"MACBOOK PRO (14-INCH M5)": {
		"16GB/512GB": usd(1599),
		"16GB/1TB":   usd(1799),
		"24GB/1TB":   usd(1999),
		"512GB":      usd(1599),
		"1TB":        usd(1999),
	},
	"MACBOOK AIR": {
		defaultPriceKey: usd(1220),
	},

	// Apple Watch
	"APPLE WATCH SERIES 11": {
		"42MM": usd(399),
		"46MM": usd(429),
	},
	"APPLE WATCH ULTRA 3": {
		"49MM": usd(799),
	},
	"APPLE WATCH ULTRA 2": {
		"49MM": usd(799),
	},
	"APPLE WATCH SE": {
		"40MM": usd(249),
		"44MM": usd(279),
	},

	// Apple TV
	"APPLE TV 4K": {
		"64GB":          usd(129),
		"128GB":         usd(149),
		defaultPriceKey: usd(129),
	},

	// iPad
	"IPAD MINI": {
		"128GB": usd(499),
		"256GB": usd(599),
		"512GB": usd(799),
	},
	"IPAD PRO 11-INCH": {
		"256GB": usd(999),
		"512GB": usd(1199),
		"1TB":   usd(1599),
		"2TB":   usd(1999),
	},
	"IPAD PRO 13-INCH": {
		"256GB": usd(1299),
		"512GB": usd(1499),
		"1TB":   usd(1899),
		"2TB":   usd(2299),
	},
	"IPAD AIR": {
		"64GB":  usd(549),
		"256GB": usd(699),
	},
	"IPAD": {
		"64GB":  usd(329),
		"256GB": usd(479),
	},

	// AirPods
	"AIRPODS": {
		defaultPriceKey: usd(129),
	},
	"AIRPODS PRO": {
		defaultPriceKey: usd(249),
	},
	"AIRPODS MAX": {
		defaultPriceKey: usd(549),
	},

	// Accessories
	"IPAD MAGIC KEYBOARD": {
		defaultPriceKey: usd(299),
	},
	"APPLE PENCIL PRO": {
		defaultPriceKey: usd(129),
	},
}

// staticProductNumbers covers products whose number never varies by unit, so
// a lookup can assign one without a device-level source.
var staticProductNumbers = map[string]string{
	"APPLE WATCH SERIES 11": "MEUX4LW/A",
	"APPLE WATCH SE":        "MX2D3AM/A",

	"APPLE TV 4K": "MN893LL/A",

	"IPAD PRO 13-INCH": "MPF37LL/A",
	"IPAD PRO 11-INCH": "MRP4RLL/A",

	"AIRPODS":     "MX2D3AM/A",
	"AIRPODS PRO": "MFHP4LL/A",
	"AIRPODS MAX": "MX2D3AM/A",

	"MAGIC KEYBOARD": "MWR23LL/A",

	"APPLE PENCIL PRO": "MX2D3AM/A",

	"MACBOOK AIR": "MEE3LUIS/A",
}

// Partial-match scans walk keys longest-first so the most specific entry
// wins; ties break lexicographically to keep the order deterministic.
var (
	pricingKeysByLength       = keysByLength(applePricing)
	productNumberKeysByLength = keysByLength(staticProductNumbers)
)

func keysByLength[V any](table map[string]V) []string {
	keys := make([]string, 0, len(table))
	for key := range table {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	return keys
}
