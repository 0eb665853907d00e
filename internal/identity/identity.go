// Package identity validates device identifiers before a lookup record is
// accepted: IMEIs (15 digits, optional Luhn check digit) and Apple serial
// numbers (known 10/11/12/13 character formats).
package identity

import (
	"regexp"
	"strings"
)

// Kind classifies a device identifier.
type Kind string

const (
	KindIMEI    Kind = "imei"
	KindSerial  Kind = "serial"
	KindUnknown Kind = "unknown"
)

const (
	serialMinLen = 8
	serialMaxLen = 20
)

var (
	imeiPattern   = regexp.MustCompile(`^\d{15}$`)
	alnumPattern  = regexp.MustCompile(`^[A-Z0-9]+$`)
	detectPattern = regexp.MustCompile(`^[A-Z0-9]{8,20}$`)

	// Apple serial formats by generation.
	serialFormats = []*regexp.Regexp{
		regexp.MustCompile(`^[A-Z0-9]{10}$`), // compact
		regexp.MustCompile(`^[A-Z0-9]{11}$`), // old
		regexp.MustCompile(`^[A-Z0-9]{12}$`), // new
		regexp.MustCompile(`^[A-Z0-9]{13}$`), // iMac and some Macs
	}
)

// Result reports the outcome of validating a device identifier.
type Result struct {
	Valid   bool   `json:"valid"`
	Kind    Kind   `json:"kind"`
	Cleaned string `json:"cleaned_value"`
	Message string `json:"message"`
}

// Clean strips spaces and hyphens and uppercases the identifier.
func Clean(value string) string {
	cleaned := strings.ReplaceAll(value, " ", "")
	cleaned = strings.ReplaceAll(cleaned, "-", "")
	return strings.ToUpper(strings.TrimSpace(cleaned))
}

// DetectKind guesses whether the input is an IMEI or a serial number.
func DetectKind(value string) Kind {
	if strings.TrimSpace(value) == "" {
		return KindUnknown
	}
	cleaned := Clean(value)
	if imeiPattern.MatchString(cleaned) {
		return KindIMEI
	}
	if detectPattern.MatchString(cleaned) {
		return KindSerial
	}
	return KindUnknown
}

// ValidIMEIFormat reports whether the value is exactly 15 digits once cleaned.
func ValidIMEIFormat(value string) bool {
	if value == "" {
		return false
	}
	return imeiPattern.MatchString(Clean(value))
}

// LuhnCheck validates the IMEI check digit. The last digit is the check;
// every second payload digit from the right is doubled before summing.
func LuhnCheck(value string) bool {
	cleaned := Clean(value)
	if !imeiPattern.MatchString(cleaned) {
		return false
	}

	digits := make([]int, len(cleaned))
	for i, r := range cleaned {
		digits[i] = int(r - '0')
	}
	check := digits[len(digits)-1]
	payload := digits[:len(digits)-1]

	for i := len(payload) - 1; i >= 0; i -= 2 {
		payload[i] *= 2
		if payload[i] > 9 {
			payload[i] -= 9
		}
	}
	total := 0
	for _, d := range payload {
		total += d
	}
	return (10-total%10)%10 == check
}

// ValidateIMEI checks format and, when checkLuhn is set, the check digit.
func ValidateIMEI(value string, checkLuhn bool) (bool, string) {
	if strings.TrimSpace(value) == "" {
		return false, "imei is empty"
	}
	cleaned := Clean(value)
	if !imeiPattern.MatchString(cleaned) {
		return false, "imei must be exactly 15 digits"
	}
	if checkLuhn && !LuhnCheck(cleaned) {
		return false, "imei failed the check digit validation"
	}
	return true, "imei is valid"
}

// ValidateSerial checks length bounds, the character set, and the known
// Apple serial formats.
func ValidateSerial(value string) (bool, string) {
	if strings.TrimSpace(value) == "" {
		return false, "serial number is empty"
	}
	cleaned := strings.ToUpper(strings.TrimSpace(value))
	if len(cleaned) < serialMinLen {
		return false, "serial number is too short (minimum 8 characters)"
	}
	if len(cleaned) > serialMaxLen {
		return false, "serial number is too long (maximum 20 characters)"
	}
	if !alnumPattern.MatchString(cleaned) {
		return false, "serial number must contain only letters and digits"
	}
	for _, format := range serialFormats {
		if format.MatchString(cleaned) {
			return true, "serial number is valid"
		}
	}
	return false, "serial number length does not match a known format"
}

// Validate cleans the input, detects or honors the expected kind, and runs
// the matching validator. IMEI intake validates format only; callers that
// need the check digit run LuhnCheck separately.
func Validate(value string, expected Kind) Result {
	if strings.TrimSpace(value) == "" {
		return Result{Kind: KindUnknown, Message: "input is empty"}
	}

	cleaned := Clean(value)
	kind := expected
	if kind == "" || kind == KindUnknown {
		kind = DetectKind(value)
	}

	switch kind {
	case KindIMEI:
		valid, message := ValidateIMEI(cleaned, false)
		return Result{Valid: valid, Kind: KindIMEI, Cleaned: cleaned, Message: message}
	case KindSerial:
		valid, message := ValidateSerial(cleaned)
		return Result{Valid: valid, Kind: KindSerial, Cleaned: cleaned, Message: message}
	default:
		return Result{Kind: KindUnknown, Cleaned: cleaned, Message: "could not detect the identifier kind"}
	}
}
