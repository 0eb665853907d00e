package catalog

import (
	"regexp"
	"strings"
)

var keyWhitespace = regexp.MustCompile(`\s+`)

// RawRecord is a vendor lookup payload reduced to the fields reconciliation
// reads. Vendors disagree on spacing and casing of field names, so payloads
// go through NormalizeKeys before they are lifted into this struct.
type RawRecord struct {
	Model            string `json:"model,omitempty"`
	ModelDescription string `json:"model_description,omitempty"`
	SerialNumber     string `json:"serial_number,omitempty"`
	IMEI             string `json:"imei,omitempty"`
}

// Identity returns the serial number, falling back to the IMEI when the
// vendor omitted one. An empty return means the record cannot be tracked
// as a physical unit.
func (r RawRecord) Identity() string {
	if r.SerialNumber != "" {
		return r.SerialNumber
	}
	return r.IMEI
}

// NormalizeKeys rewrites every map key by trimming it and collapsing internal
// whitespace runs to a single underscore, recursing through nested maps and
// slices. Values are never touched, so "Serial  Number" and "Serial_Number"
// address the same field while the serial itself keeps its spacing.
func NormalizeKeys(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		normalized := make(map[string]any, len(typed))
		for key, nested := range typed {
			normalized[normalizeKey(key)] = NormalizeKeys(nested)
		}
		return normalized
	case []any:
		normalized := make([]any, len(typed))
		for i, nested := range typed {
			normalized[i] = NormalizeKeys(nested)
		}
		return normalized
	default:
		return value
	}
}

func normalizeKey(key string) string {
	return keyWhitespace.ReplaceAllString(strings.TrimSpace(key), "_")
}

// RecordFromPayload lifts a key-normalized vendor payload into a RawRecord.
// Missing or non-string fields are left empty rather than failing the whole
// record; reconciliation decides what it can do without them.
func RecordFromPayload(payload map[string]any) RawRecord {
	return RawRecord{
		Model:            stringField(payload, "Model"),
		ModelDescription: stringField(payload, "Model_Description"),
		SerialNumber:     stringField(payload, "Serial_Number"),
		IMEI:             stringField(payload, "IMEI"),
	}
}

func stringField(payload map[string]any, key string) string {
	value, ok := payload[key]
	if !ok {
		return ""
	}
	text, ok := value.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(text)
}
