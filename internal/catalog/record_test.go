package catalog

import (
	"reflect"
	"testing"
)

func TestNormalizeKeysCollapsesWhitespace(t *testing.T) {
	payload := map[string]any{
		" Serial  Number ": "F2LLD0AXQ1GC",
		"Model Description": map[string]any{
			"Display  Name": "IPHONE 17 PRO",
		},
		"History": []any{
			map[string]any{"Lookup  Tier": "30"},
			"plain entry",
		},
	}

	normalized, ok := NormalizeKeys(payload).(map[string]any)
	if !ok {
		t.Fatalf("expected a map, got %T", NormalizeKeys(payload))
	}

	if _, found := normalized["Serial_Number"]; !found {
		t.Errorf("expected Serial_Number key, got keys %v", reflect.ValueOf(normalized).MapKeys())
	}
	nested, ok := normalized["Model_Description"].(map[string]any)
	if !ok {
		t.Fatalf("expected nested map under Model_Description")
	}
	if _, found := nested["Display_Name"]; !found {
		t.Errorf("nested keys were not normalized: %v", nested)
	}
	history, ok := normalized["History"].([]any)
	if !ok || len(history) != 2 {
		t.Fatalf("expected history list of 2, got %v", normalized["History"])
	}
	entry, ok := history[0].(map[string]any)
	if !ok {
		t.Fatalf("expected map inside history list")
	}
	if _, found := entry["Lookup_Tier"]; !found {
		t.Errorf("list element keys were not normalized: %v", entry)
	}
	if history[1] != "plain entry" {
		t.Errorf("scalar list entries must pass through, got %v", history[1])
	}
}

func TestNormalizeKeysLeavesValuesAlone(t *testing.T) {
	payload := map[string]any{"Serial Number": "AB  CD 12"}
	normalized := NormalizeKeys(payload).(map[string]any)
	if normalized["Serial_Number"] != "AB  CD 12" {
		t.Errorf("value spacing changed: %q", normalized["Serial_Number"])
	}
}

func TestRecordFromPayload(t *testing.T) {
	record := RecordFromPayload(map[string]any{
		"Model":             " iPhone 17 Pro ",
		"Model_Description": "IPHONE 17 PRO 256GB SILVER",
		"Serial_Number":     "F2LLD0AXQ1GC",
		"IMEI":              351234567891234.0,
	})

	if record.Model != "iPhone 17 Pro" {
		t.Errorf("Model = %q", record.Model)
	}
	if record.ModelDescription != "IPHONE 17 PRO 256GB SILVER" {
		t.Errorf("ModelDescription = %q", record.ModelDescription)
	}
	if record.SerialNumber != "F2LLD0AXQ1GC" {
		t.Errorf("SerialNumber = %q", record.SerialNumber)
	}
	if record.IMEI != "" {
		t.Errorf("non-string IMEI should be dropped, got %q", record.IMEI)
	}
}

func TestRawRecordIdentity(t *testing.T) {
	cases := []struct {
		name   string
		record RawRecord
		want   string
	}{
		{"serial wins", RawRecord{SerialNumber: "SER1", IMEI: "IMEI1"}, "SER1"},
		{"imei fallback", RawRecord{IMEI: "351234567891234"}, "351234567891234"},
		{"neither", RawRecord{Model: "IPHONE"}, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.record.Identity(); got != tc.want {
				t.Errorf("Identity() = %q, want %q", got, tc.want)
			}
		})
	}
}
