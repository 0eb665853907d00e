package validators

import "strings"

// SanitizeString trims surrounding whitespace and clamps the result to
// maxLen runes. A maxLen of zero or less disables clamping.
func SanitizeString(input string, maxLen int) string {
	trimmed := strings.TrimSpace(input)
	if maxLen <= 0 {
		return trimmed
	}
	runes := []rune(trimmed)
	if len(runes) <= maxLen {
		return trimmed
	}
	return string(runes[:maxLen])
}
