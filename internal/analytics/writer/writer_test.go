package writer

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"google.golang.org/api/googleapi"

	"github.com/Luis3c4/IMEI/internal/analytics/types"
	pkgbigquery "github.com/Luis3c4/IMEI/pkg/bigquery"
)

type recordedPut struct {
	table string
	rows  int
}

type recordingInserter struct {
	errs []error
	puts []recordedPut
}

func (r *recordingInserter) InsertRows(_ context.Context, table string, rows []any) error {
	call := len(r.puts)
	r.puts = append(r.puts, recordedPut{table: table, rows: len(rows)})
	if call < len(r.errs) {
		return r.errs[call]
	}
	return nil
}

func newTestWriter(t *testing.T) (*BigQueryWriter, *recordingInserter) {
	t.Helper()
	w, err := New(&pkgbigquery.Client{}, Config{SightingsTable: "device_sightings"})
	if err != nil {
		t.Fatalf("construct writer: %v", err)
	}
	rec := &recordingInserter{}
	w.inserter = rec
	return w, rec
}

func TestNewRejectsMissingInputs(t *testing.T) {
	if _, err := New(nil, Config{}); err == nil {
		t.Fatal("expected error when client missing")
	}
	if _, err := New(&pkgbigquery.Client{}, Config{SightingsTable: " "}); err == nil {
		t.Fatal("expected error when sightings table missing")
	}
}

func TestInsertSightingRetriesTransientFailure(t *testing.T) {
	w, rec := newTestWriter(t)
	rec.errs = []error{
		&googleapi.Error{Code: http.StatusServiceUnavailable},
		nil,
	}

	if err := w.InsertSighting(context.Background(), types.DeviceSightingRow{EventID: "1"}); err != nil {
		t.Fatalf("unexpected error writing row: %v", err)
	}
	if len(rec.puts) != 2 {
		t.Fatalf("expected two insert attempts, got %d", len(rec.puts))
	}
	if rec.puts[1].table != w.table {
		t.Fatalf("expected sightings table on retry, got %s", rec.puts[1].table)
	}
	if len(w.pending) != 0 {
		t.Fatal("expected buffer to be empty after success")
	}
}

func TestInsertSightingStopsOnPermanentFailure(t *testing.T) {
	w, rec := newTestWriter(t)
	rec.errs = []error{
		&googleapi.Error{Code: http.StatusBadRequest},
	}

	if err := w.InsertSighting(context.Background(), types.DeviceSightingRow{EventID: "1"}); err == nil {
		t.Fatal("expected permanent error to surface")
	}
	if len(rec.puts) != 1 {
		t.Fatalf("expected single insert attempt, got %d", len(rec.puts))
	}
	if len(w.pending) != 1 {
		t.Fatal("expected failed row to stay buffered")
	}
}

func TestInsertSightingBuffersUntilBatchFull(t *testing.T) {
	w, rec := newTestWriter(t)
	w.flushAt = 2

	if err := w.InsertSighting(context.Background(), types.DeviceSightingRow{EventID: "1"}); err != nil {
		t.Fatalf("unexpected error on first insert: %v", err)
	}
	if len(rec.puts) != 0 {
		t.Fatalf("expected no insert before batch full, got %d", len(rec.puts))
	}

	if err := w.InsertSighting(context.Background(), types.DeviceSightingRow{EventID: "2"}); err != nil {
		t.Fatalf("unexpected error on second insert: %v", err)
	}
	if len(rec.puts) != 1 {
		t.Fatalf("expected single insert after batch flush, got %d", len(rec.puts))
	}
	if rec.puts[0].rows != 2 {
		t.Fatalf("expected two rows inserted, got %d", rec.puts[0].rows)
	}
}

func TestFlushDrainsBuffer(t *testing.T) {
	w, rec := newTestWriter(t)
	w.flushAt = 10

	if err := w.InsertSighting(context.Background(), types.DeviceSightingRow{EventID: "1"}); err != nil {
		t.Fatalf("unexpected insert error: %v", err)
	}
	if err := w.Flush(context.Background()); err != nil {
		t.Fatalf("unexpected flush error: %v", err)
	}
	if len(rec.puts) != 1 {
		t.Fatalf("expected flush to insert once, got %d", len(rec.puts))
	}
	if err := w.Flush(context.Background()); err != nil {
		t.Fatalf("unexpected empty flush error: %v", err)
	}
	if len(rec.puts) != 1 {
		t.Fatal("expected empty flush to skip the inserter")
	}
}

func TestEncodeJSON(t *testing.T) {
	nj, err := EncodeJSON(map[string]any{"foo": "bar"})
	if err != nil {
		t.Fatalf("unexpected error encoding json: %v", err)
	}
	if !nj.Valid {
		t.Fatal("expected json to be marked valid")
	}

	nj, err = EncodeJSON(nil)
	if err != nil {
		t.Fatalf("unexpected error for nil json: %v", err)
	}
	if nj.Valid {
		t.Fatal("expected nil json to be invalid")
	}

	raw := json.RawMessage(`{"foo":"baz"}`)
	nj, err = EncodeJSON(raw)
	if err != nil {
		t.Fatalf("unexpected error encoding raw json: %v", err)
	}
	if nj.JSONVal != string(raw) {
		t.Fatalf("expected raw json passed through, got %s", nj.JSONVal)
	}

	nj, err = EncodeJSON([]byte(nil))
	if err != nil {
		t.Fatalf("unexpected error for empty bytes: %v", err)
	}
	if nj.Valid {
		t.Fatal("expected empty bytes to be invalid")
	}
}
