package writer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	cbigquery "cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/Luis3c4/IMEI/internal/analytics/types"
	pkgbigquery "github.com/Luis3c4/IMEI/pkg/bigquery"
)

// Zero-value Config falls back to these: every row flushes immediately
// and transient insert failures get a few short retries.
const (
	defaultBatchSize      = 1
	defaultMaxAttempts    = 3
	defaultInitialBackoff = 250 * time.Millisecond
	defaultMaximumBackoff = 2 * time.Second
)

// Config controls the sightings writer behavior.
type Config struct {
	SightingsTable string
	BatchSize      int
	RetryPolicy    RetryPolicy
}

// RetryPolicy controls how many times BigQuery inserts are retried.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaximumBackoff time.Duration
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = defaultMaxAttempts
	}
	if p.InitialBackoff <= 0 {
		p.InitialBackoff = defaultInitialBackoff
	}
	if p.MaximumBackoff <= 0 {
		p.MaximumBackoff = defaultMaximumBackoff
	}
	if p.MaximumBackoff < p.InitialBackoff {
		p.MaximumBackoff = p.InitialBackoff
	}
	return p
}

type rowInserter interface {
	InsertRows(ctx context.Context, table string, rows []any) error
}

// BigQueryWriter buffers sighting rows and streams them into BigQuery,
// retrying transient insert failures.
type BigQueryWriter struct {
	inserter rowInserter
	table    string
	flushAt  int
	retry    RetryPolicy

	pending []types.DeviceSightingRow
}

// New creates a sightings writer backed by a shared BigQuery client.
func New(client *pkgbigquery.Client, cfg Config) (*BigQueryWriter, error) {
	if client == nil {
		return nil, errors.New("bigquery client required")
	}
	table := strings.TrimSpace(cfg.SightingsTable)
	if table == "" {
		return nil, errors.New("sightings table is required")
	}
	flushAt := cfg.BatchSize
	if flushAt <= 0 {
		flushAt = defaultBatchSize
	}

	return &BigQueryWriter{
		inserter: client,
		table:    table,
		flushAt:  flushAt,
		retry:    cfg.RetryPolicy.withDefaults(),
	}, nil
}

// InsertSighting queues a sighting row, flushing once the batch is full.
func (w *BigQueryWriter) InsertSighting(ctx context.Context, row types.DeviceSightingRow) error {
	w.pending = append(w.pending, row)
	if len(w.pending) < w.flushAt {
		return nil
	}
	return w.Flush(ctx)
}

// Flush writes any buffered rows immediately. Rows stay buffered when the
// insert fails so a later flush can try again.
func (w *BigQueryWriter) Flush(ctx context.Context) error {
	if len(w.pending) == 0 {
		return nil
	}
	rows := make([]any, len(w.pending))
	for i := range w.pending {
		rows[i] = &w.pending[i]
	}
	if err := w.insert(ctx, rows); err != nil {
		return err
	}
	w.pending = w.pending[:0]
	return nil
}

func (w *BigQueryWriter) insert(ctx context.Context, rows []any) error {
	delay := w.retry.InitialBackoff

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := w.inserter.InsertRows(ctx, w.table, rows)
		if err == nil {
			return nil
		}
		if attempt >= w.retry.MaxAttempts || !retryable(err) {
			return fmt.Errorf("insert %d rows into %s: %w", len(rows), w.table, err)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		delay *= 2
		if delay > w.retry.MaximumBackoff {
			delay = w.retry.MaximumBackoff
		}
	}
}

// retryable reports whether every failure bundled in err is transient.
// Streaming inserts surface per-row faults as nested multi errors, so a
// batch only retries when no row hit a permanent fault.
func retryable(err error) bool {
	if err == nil {
		return false
	}

	var multi *cbigquery.MultiError
	if errors.As(err, &multi) {
		return multi != nil && allRetryable(*multi)
	}

	var putErr *cbigquery.PutMultiError
	if errors.As(err, &putErr) {
		if putErr == nil || len(*putErr) == 0 {
			return false
		}
		for _, row := range *putErr {
			if !retryable(row.Errors) {
				return false
			}
		}
		return true
	}

	var rowErr *cbigquery.RowInsertionError
	if errors.As(err, &rowErr) {
		return rowErr != nil && allRetryable(rowErr.Errors)
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusTooManyRequests,
			http.StatusRequestTimeout,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return true
		}
		return false
	}

	var grpcErr interface{ GRPCStatus() *status.Status }
	if errors.As(err, &grpcErr) {
		if st := grpcErr.GRPCStatus(); st != nil {
			switch st.Code() {
			case codes.Aborted,
				codes.DeadlineExceeded,
				codes.Internal,
				codes.ResourceExhausted,
				codes.Unavailable:
				return true
			}
		}
		return false
	}

	return false
}

func allRetryable(errs []error) bool {
	if len(errs) == 0 {
		return false
	}
	for _, inner := range errs {
		if !retryable(inner) {
			return false
		}
	}
	return true
}

// EncodeJSON converts an event payload into a BigQuery JSON column value.
// Raw JSON inputs pass through untouched; anything else is marshaled.
func EncodeJSON(payload any) (cbigquery.NullJSON, error) {
	switch value := payload.(type) {
	case nil:
		return cbigquery.NullJSON{}, nil
	case cbigquery.NullJSON:
		return value, nil
	case json.RawMessage:
		return rawJSON(value), nil
	case []byte:
		return rawJSON(value), nil
	}

	buf, err := json.Marshal(payload)
	if err != nil {
		return cbigquery.NullJSON{}, fmt.Errorf("marshal json: %w", err)
	}
	return rawJSON(buf), nil
}

func rawJSON(buf []byte) cbigquery.NullJSON {
	if len(buf) == 0 {
		return cbigquery.NullJSON{}
	}
	return cbigquery.NullJSON{Valid: true, JSONVal: string(buf)}
}
