package validators

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	pkgerrors "github.com/Luis3c4/IMEI/pkg/errors"
)

type reconcilePayload struct {
	Serial   string `json:"serial" validate:"required"`
	ModelRaw string `json:"model_raw" validate:"required,min=2"`
}

func TestDecodeJSONBodyAcceptsValidPayload(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"serial":"F2LLMB0QHG04","model_raw":"iPhone 12 Pro"}`))
	var payload reconcilePayload
	if err := DecodeJSONBody(r, &payload); err != nil {
		t.Fatalf("DecodeJSONBody: %v", err)
	}
	if payload.Serial != "F2LLMB0QHG04" {
		t.Fatalf("serial = %q", payload.Serial)
	}
}

func TestDecodeJSONBodyRejectsUnknownFields(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"serial":"X","model_raw":"iPhone","extra":true}`))
	var payload reconcilePayload
	err := DecodeJSONBody(r, &payload)
	if err == nil {
		t.Fatal("unknown fields must be rejected")
	}
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("err = %v, want validation error", err)
	}
}

func TestDecodeJSONBodyReportsFieldsByJSONName(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"serial":"F2LLMB0QHG04"}`))
	var payload reconcilePayload
	err := DecodeJSONBody(r, &payload)
	if err == nil {
		t.Fatal("missing model_raw must fail validation")
	}
	typed := pkgerrors.As(err)
	if typed == nil {
		t.Fatalf("err = %v, want typed error", err)
	}
	details, ok := typed.Details().(map[string]string)
	if !ok {
		t.Fatalf("details have type %T", typed.Details())
	}
	if details["model_raw"] != "is required" {
		t.Fatalf("details = %v, want model_raw flagged under its json name", details)
	}
}

func TestSanitizeStringClampsRunes(t *testing.T) {
	if got := SanitizeString("  iPhone 12  ", 0); got != "iPhone 12" {
		t.Fatalf("got %q", got)
	}
	if got := SanitizeString("Pixel 9 Pro", 5); got != "Pixel" {
		t.Fatalf("got %q", got)
	}
	if got := SanitizeString("ünïcodé", 3); got != "ünï" {
		t.Fatalf("got %q, clamp must not split multi-byte characters", got)
	}
}

func TestParseQueryInt(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/?limit=25", nil)
	got, err := ParseQueryInt(r, "limit", 0, 1, 100)
	if err != nil || got != 25 {
		t.Fatalf("got %d, %v", got, err)
	}

	r = httptest.NewRequest(http.MethodGet, "/", nil)
	got, err = ParseQueryInt(r, "limit", 50, 1, 100)
	if err != nil || got != 50 {
		t.Fatalf("default: got %d, %v", got, err)
	}

	r = httptest.NewRequest(http.MethodGet, "/?limit=abc", nil)
	if _, err := ParseQueryInt(r, "limit", 0, 1, 100); err == nil {
		t.Fatal("non-numeric limit must fail")
	}

	r = httptest.NewRequest(http.MethodGet, "/?limit=1000", nil)
	if _, err := ParseQueryInt(r, "limit", 0, 1, 100); err == nil {
		t.Fatal("out-of-range limit must fail")
	}
}
