package modelparse

import (
	"sort"
	"strings"
)

const defaultColorHex = "#808080"

// colorHex maps canonical color names to the hex badge shown in catalog
// views. Keys double as the parser's color vocabulary.
var colorHex = map[string]string{
	"BLACK":     "#000000",
	"WHITE":     "#FFFFFF",
	"SILVER":    "#C0C0C0",
	"GOLD":      "#FFD700",
	"ROSE GOLD": "#E0BFB8",

	"SPACE GRAY":  "#747678",
	"SPACE GREY":  "#747678",
	"SPACE BLACK": "#1C1C1E",

	"MIDNIGHT":       "#1D1D1F",
	"MIDNIGHT BLACK": "#1D1D1F",
	"STARLIGHT":      "#F9F6EF",
	"DEEP BLUE":      "#1F456E",
	"RED":            "#C1292E",
	"GREEN":          "#3F5F4D",
	"YELLOW":         "#FFD700",
	"PURPLE":         "#6E3B6E",
	"PINK":           "#FCE4E4",
	"CORANGE":        "#FF6B35",

	"GRAPHITE":     "#41424C",
	"SIERRA BLUE":  "#9DB5BB",
	"ALPINE GREEN": "#4F625A",
	"DEEP PURPLE":  "#594F63",
	"SAGE":         "#B5B89A",
	"DBLUE":        "#1F456E",

	"TITANIUM":         "#B8B8B8",
	"NATURAL TITANIUM": "#B8B8B8",
	"BLUE TITANIUM":    "#5E7A9B",
	"WHITE TITANIUM":   "#E8E8E8",
	"BLACK TITANIUM":   "#3D3D3D",

	"SKY BLUE":    "#87CEEB",
	"ALPINE BLUE": "#6B8E9F",
	"MIST BLUE":   "#C5D7E0",
	"LAVENDER":    "#E6D7FF",
	"BLUE":        "#0071E3",

	"JET BLACK": "#0A0A0A",
}

// Vendor shorthand for colors, matched whole-token only.
var colorAbbreviations = map[string]string{
	"SG": "SPACE GRAY",
	"SB": "SPACE BLACK",
	"RG": "ROSE GOLD",
	"JB": "JET BLACK",
}

// colorNamesByLength lists every known color longest-first so compound names
// match before the plain names they contain (SPACE BLACK before BLACK).
var colorNamesByLength = sortedColorNames()

func sortedColorNames() []string {
	names := make([]string, 0, len(colorHex))
	for name := range colorHex {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if len(names[i]) != len(names[j]) {
			return len(names[i]) > len(names[j])
		}
		return names[i] < names[j]
	})
	return names
}

// ColorHex resolves a color name to its badge hex, falling back to a neutral
// gray for unknown or absent colors.
func ColorHex(name string) string {
	if name == "" {
		return defaultColorHex
	}
	if hex, ok := colorHex[strings.ToUpper(strings.TrimSpace(name))]; ok {
		return hex
	}
	return defaultColorHex
}
