// Package modelparse turns free-text device descriptions into structured
// descriptors. Extraction runs as an ordered pipeline over a working copy of
// the text; each stage removes what it matched so later stages cannot
// re-match it. Capacity tokens are the exception: they are located in the
// original text so that earlier stripping can never hide them.
package modelparse

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Descriptor is the structured result of parsing a free-text device
// description. An empty field means the text carried no recognizable token
// for it.
type Descriptor struct {
	Brand     string `json:"brand,omitempty"`
	Model     string `json:"model,omitempty"`
	FullModel string `json:"full_model,omitempty"`
	Capacity  string `json:"capacity,omitempty"`
	RAM       string `json:"ram,omitempty"`
	Color     string `json:"color,omitempty"`
	Country   string `json:"country,omitempty"`
}

// BrandAppleWatch keys its capacity by band size rather than storage tier.
const BrandAppleWatch = "APPLE WATCH"

const brandMacBook = "MACBOOK"

// Brand prefixes ordered longest-first; the first prefix match wins and is
// stripped from the working text.
var brandPrefixes = []string{
	"APPLE PENCIL",
	BrandAppleWatch,
	"APPLE TV",
	brandMacBook,
	"AIRPODS",
	"IPHONE",
	"IPAD",
}

// accessoryRule maps a phrase found anywhere in the text to the canonical
// category the catalog files the accessory under. Accessories pre-empt brand
// detection so a keyboard never registers as the iPad it attaches to.
type accessoryRule struct {
	phrase   string
	category string
}

var accessoryRules = []accessoryRule{
	{phrase: "MAGSAFE CHARGER", category: "MAGSAFE CHARGER"},
	{phrase: "MAGIC KEYBOARD", category: "IPAD MAGIC KEYBOARD"},
	{phrase: "SMART FOLIO", category: "IPAD SMART FOLIO"},
	{phrase: "AIRTAG", category: "AIRTAG"},
}

var (
	capacityPattern  = regexp.MustCompile(`(\d+)(GB|TB|MB)`)
	bandSizePattern  = regexp.MustCompile(`\b(41|42|44|45|46|49)(MM)?\b`)
	watchSizePattern = regexp.MustCompile(`\b\d+MM\b`)

	// The country marker must start its own token. Suffixes glued to a
	// capacity token ("512GB-USA") are exposed once the capacity stage
	// consumes the token; hyphens inside model text ("11-INCH") stay put.
	countryPattern = regexp.MustCompile(`(?:^|\s)[-/]\s*([A-Z]{2,}(?:\s+[A-Z]{2,})?)\s*$`)
)

// Parse extracts a Descriptor from a raw description. It never fails; empty
// or unrecognizable input yields a zero Descriptor.
func Parse(description string) Descriptor {
	var d Descriptor

	original := strings.ToUpper(strings.TrimSpace(description))
	if original == "" {
		return d
	}

	working := original
	working = extractAccessory(working, &d)
	if d.Brand == "" {
		working = extractBrand(working, &d)
	}
	working = extractCapacity(original, working, &d)
	working = extractCountry(working, &d)
	working = extractColor(working, &d)

	// Some vendor strings repeat the brand inside the descriptive tail.
	if d.Brand != "" {
		working = strings.ReplaceAll(working, d.Brand, " ")
	}
	d.Model = collapse(working)

	switch {
	case d.Brand != "" && d.Model != "":
		d.FullModel = d.Brand + " " + d.Model
	case d.Brand != "":
		d.FullModel = d.Brand
	default:
		d.FullModel = d.Model
	}
	return d
}

func extractAccessory(text string, d *Descriptor) string {
	for _, rule := range accessoryRules {
		if !strings.Contains(text, rule.phrase) {
			continue
		}
		d.Brand = rule.category
		for _, prefix := range brandPrefixes {
			if strings.HasPrefix(text, prefix+" ") {
				text = strings.TrimSpace(text[len(prefix):])
				break
			}
		}
		return strings.TrimSpace(strings.Replace(text, rule.phrase, " ", 1))
	}
	return text
}

func extractBrand(text string, d *Descriptor) string {
	for _, brand := range brandPrefixes {
		if strings.HasPrefix(text, brand) {
			d.Brand = brand
			return strings.TrimSpace(text[len(brand):])
		}
	}
	return text
}

// extractCapacity scans the original text for storage tokens and the working
// text for Apple Watch band sizes. MacBook listings carry RAM and storage in
// either order, so assignment goes by magnitude: smallest token is RAM,
// largest is capacity. Every other brand takes the last occurring token.
func extractCapacity(original, working string, d *Descriptor) string {
	matches := capacityPattern.FindAllStringSubmatch(original, -1)

	if d.Brand == BrandAppleWatch {
		if idx := bandSizePattern.FindStringSubmatchIndex(working); idx != nil {
			d.Capacity = working[idx[2]:idx[3]] + "MM"
			working = working[:idx[0]] + " " + working[idx[1]:]
		}
		return consumeTokens(working, matches)
	}

	if len(matches) == 0 {
		return working
	}

	if d.Brand == brandMacBook && len(matches) >= 2 {
		smallest, largest := matches[0], matches[0]
		for _, m := range matches[1:] {
			if sizeInMB(m) < sizeInMB(smallest) {
				smallest = m
			}
			if sizeInMB(m) > sizeInMB(largest) {
				largest = m
			}
		}
		d.RAM = smallest[0]
		d.Capacity = largest[0]
	} else {
		d.Capacity = matches[len(matches)-1][0]
	}
	return consumeTokens(working, matches)
}

// consumeTokens blanks every matched capacity token out of the working text,
// longest token first so a shorter token cannot split a longer occurrence.
func consumeTokens(working string, matches [][]string) string {
	if len(matches) == 0 {
		return working
	}
	tokens := make([]string, 0, len(matches))
	for _, m := range matches {
		tokens = append(tokens, m[0])
	}
	sort.Slice(tokens, func(i, j int) bool { return len(tokens[i]) > len(tokens[j]) })
	for _, token := range tokens {
		working = strings.ReplaceAll(working, token, " ")
	}
	return working
}

func sizeInMB(match []string) int64 {
	value, err := strconv.ParseInt(match[1], 10, 64)
	if err != nil {
		return 0
	}
	switch match[2] {
	case "TB":
		return value * 1024 * 1024
	case "GB":
		return value * 1024
	default:
		return value
	}
}

func extractCountry(working string, d *Descriptor) string {
	m := countryPattern.FindStringSubmatchIndex(working)
	if m == nil {
		return working
	}
	d.Country = collapse(working[m[2]:m[3]])
	return working[:m[0]]
}

func extractColor(working string, d *Descriptor) string {
	for _, name := range colorNamesByLength {
		if strings.Contains(working, name) {
			d.Color = name
			return strings.Replace(working, name, " ", 1)
		}
	}
	fields := strings.Fields(working)
	for i, token := range fields {
		full, ok := colorAbbreviations[token]
		if !ok {
			continue
		}
		d.Color = full
		rest := make([]string, 0, len(fields)-1)
		rest = append(rest, fields[:i]...)
		rest = append(rest, fields[i+1:]...)
		return strings.Join(rest, " ")
	}
	return working
}

// CleanDeviceModel canonicalizes a raw device model field for use as a
// product name: uppercase, whitespace collapsed, and for Apple Watch the
// band-size token dropped since size identifies the variant, not the product.
func CleanDeviceModel(model string) string {
	text := strings.ToUpper(strings.TrimSpace(model))
	if text == "" {
		return ""
	}
	if strings.Contains(text, BrandAppleWatch) {
		text = watchSizePattern.ReplaceAllString(text, " ")
	}
	return collapse(text)
}

// WatchBandSize returns the first band-size token (e.g. "45MM") in the text,
// or "" when none is present.
func WatchBandSize(text string) string {
	return watchSizePattern.FindString(strings.ToUpper(text))
}

func collapse(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
