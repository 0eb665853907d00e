package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Luis3c4/IMEI/api/responses"
	pkgerrors "github.com/Luis3c4/IMEI/pkg/errors"
	"github.com/Luis3c4/IMEI/pkg/logger"
	pkgredis "github.com/Luis3c4/IMEI/pkg/redis"
)

const (
	defaultIdempotencyTTL  = 24 * time.Hour
	criticalIdempotencyTTL = 7 * 24 * time.Hour
)

// routeTTL decides which mutating routes are replay-guarded and for how
// long. Reconcile batches come from scanners and re-runnable import jobs,
// so they get the long dedup window. Status transitions are operator
// driven and only need protection against double submits.
func routeTTL(method, path string) (time.Duration, bool) {
	switch method {
	case http.MethodPost:
		if path == "/api/v1/devices/reconcile" {
			return criticalIdempotencyTTL, true
		}
	case http.MethodPatch:
		if strings.HasPrefix(path, "/api/v1/catalog/items/") && strings.HasSuffix(path, "/status") {
			return defaultIdempotencyTTL, true
		}
	}
	return 0, false
}

// Idempotency guards the mutating routes against replays. Matched requests
// must carry an Idempotency-Key header; the first response is recorded in
// Redis and served back verbatim for the key's TTL. Reusing a key with a
// different body is a conflict.
func Idempotency(store pkgredis.IdempotencyStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return &idempotencyGuard{store: store, logg: logg, next: next}
	}
}

type idempotencyGuard struct {
	store pkgredis.IdempotencyStore
	logg  *logger.Logger
	next  http.Handler
}

func (g *idempotencyGuard) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ttl, guarded := routeTTL(r.Method, r.URL.Path)
	if !guarded || g.store == nil {
		g.next.ServeHTTP(w, r)
		return
	}

	idempotencyKey := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if idempotencyKey == "" {
		responses.WriteError(r.Context(), g.logg, w, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header required"))
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		responses.WriteError(r.Context(), g.logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request"))
		return
	}
	r.Body = io.NopCloser(bytes.NewReader(body))

	digest := bodyDigest(body)
	// Keyed by method and concrete path, so the same client key can be
	// reused across different items without colliding.
	storeKey := g.store.IdempotencyKey(r.Method+"|"+r.URL.Path, idempotencyKey)

	prior, err := g.lookup(r.Context(), storeKey)
	switch {
	case err != nil:
		responses.WriteError(r.Context(), g.logg, w, err)
		return
	case prior != nil:
		if prior.RequestHash != digest {
			responses.WriteError(r.Context(), g.logg, w, pkgerrors.New(pkgerrors.CodeConflict, "idempotency key reused with different request body"))
			return
		}
		prior.replay(w)
		return
	}

	capture := &captureWriter{ResponseWriter: w}
	g.next.ServeHTTP(capture, r)
	g.remember(r.Context(), storeKey, capture.record(digest), ttl)
}

func (g *idempotencyGuard) lookup(ctx context.Context, key string) (*storedResponse, error) {
	raw, err := g.store.Get(ctx, key)
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency")
	}
	if raw == "" {
		return nil, nil
	}

	var rec storedResponse
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotency record")
	}
	return &rec, nil
}

// remember persists the captured response after it has already been sent,
// so storage failures can only be logged, not surfaced.
func (g *idempotencyGuard) remember(ctx context.Context, key string, rec storedResponse, ttl time.Duration) {
	payload, err := json.Marshal(rec)
	if err != nil {
		g.logFailure(ctx, "marshal idempotency record", err)
		return
	}
	if _, err := g.store.SetNX(ctx, key, string(payload), ttl); err != nil {
		g.logFailure(ctx, "persist idempotency record", err)
	}
}

func (g *idempotencyGuard) logFailure(ctx context.Context, msg string, err error) {
	if g.logg == nil {
		return
	}
	g.logg.Error(ctx, msg, err)
}

type storedResponse struct {
	Status      int               `json:"status"`
	Body        string            `json:"body"`
	Headers     map[string]string `json:"headers,omitempty"`
	RequestHash string            `json:"request_hash"`
}

func (rec *storedResponse) replay(w http.ResponseWriter) {
	if ct := rec.Headers["Content-Type"]; ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.WriteHeader(rec.Status)
	if body, err := base64.StdEncoding.DecodeString(rec.Body); err == nil {
		_, _ = w.Write(body)
	}
}

// captureWriter tees the handler's response so it can be stored for replay.
type captureWriter struct {
	http.ResponseWriter
	status int
	buf    bytes.Buffer
}

func (c *captureWriter) WriteHeader(code int) {
	c.status = code
	c.ResponseWriter.WriteHeader(code)
}

func (c *captureWriter) Write(p []byte) (int, error) {
	if c.status == 0 {
		c.status = http.StatusOK
	}
	c.buf.Write(p)
	return c.ResponseWriter.Write(p)
}

func (c *captureWriter) record(digest string) storedResponse {
	rec := storedResponse{
		Status:      c.status,
		Body:        base64.StdEncoding.EncodeToString(c.buf.Bytes()),
		RequestHash: digest,
	}
	if rec.Status == 0 {
		rec.Status = http.StatusOK
	}
	if ct := c.Header().Get("Content-Type"); ct != "" {
		rec.Headers = map[string]string{"Content-Type": ct}
	}
	return rec
}

func bodyDigest(body []byte) string {
	sum := sha256.Sum256(body)
	return base64.StdEncoding.EncodeToString(sum[:])
}
