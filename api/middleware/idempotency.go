package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/stockline/backoffice/api/responses"
	"github.com/stockline/backoffice/api/validators"
	pkgerrors "github.com/stockline/backoffice/pkg/errors"
	"github.com/stockline/backoffice/pkg/logger"
)

// IdempotencyHeader names the client supplied replay key.
const IdempotencyHeader = "Idempotency-Key"

// ReplayedHeader marks a response served from the replay store.
const ReplayedHeader = "Idempotent-Replayed"

// DefaultReplayTTL is how long a stored response can be replayed.
const DefaultReplayTTL = 24 * time.Hour

// inFlightTTL bounds how long a crashed request keeps its key reserved.
const inFlightTTL = time.Minute

// ReplayStore is the redis surface the replay guard needs.
type ReplayStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	IdempotencyKey(scope, id string) string
}

// replayRecord is either a reservation held by the request in flight or the
// finished response.
type replayRecord struct {
	RequestHash string `json:"request_hash"`
	InFlight    bool   `json:"in_flight,omitempty"`
	Status      int    `json:"status,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body,omitempty"`
}

// Idempotency makes a POST safe to retry under an Idempotency-Key. The
// first request reserves the key, runs, and stores its response; repeats
// with the same body get that response back. A repeat while the first is
// still running, or with a different body, is a conflict. Server errors
// release the key so the client can retry. Redis failures fail open.
func Idempotency(store ReplayStore, ttl time.Duration, logg *logger.Logger) func(http.Handler) http.Handler {
	if ttl <= 0 {
		ttl = DefaultReplayTTL
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientKey := strings.TrimSpace(r.Header.Get(IdempotencyHeader))
			if store == nil || clientKey == "" {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()

			body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, validators.MaxBodyBytes))
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "request body too large or unreadable"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			key := store.IdempotencyKey(r.Method+"|"+r.URL.Path, clientKey)
			hash := fingerprint(body)

			reserved, err := reserve(ctx, store, key, hash)
			if err != nil {
				warn(ctx, logg, "idempotency store unavailable, serving without replay", err)
				next.ServeHTTP(w, r)
				return
			}
			if !reserved {
				replayOrReject(ctx, store, key, hash, w, r, next, logg)
				return
			}

			capture := &responseCapture{ResponseWriter: w}
			next.ServeHTTP(capture, r)

			if capture.code() >= http.StatusInternalServerError {
				if err := store.Del(ctx, key); err != nil {
					warn(ctx, logg, "release idempotency key", err)
				}
				return
			}
			done, _ := json.Marshal(replayRecord{
				RequestHash: hash,
				Status:      capture.code(),
				ContentType: capture.Header().Get("Content-Type"),
				Body:        capture.body.Bytes(),
			})
			if err := store.Set(ctx, key, string(done), ttl); err != nil {
				warn(ctx, logg, "persist idempotent response", err)
			}
		})
	}
}

func reserve(ctx context.Context, store ReplayStore, key, hash string) (bool, error) {
	pending, _ := json.Marshal(replayRecord{RequestHash: hash, InFlight: true})
	return store.SetNX(ctx, key, string(pending), inFlightTTL)
}

func replayOrReject(ctx context.Context, store ReplayStore, key, hash string, w http.ResponseWriter, r *http.Request, next http.Handler, logg *logger.Logger) {
	raw, err := store.Get(ctx, key)
	if errors.Is(err, redis.Nil) {
		// the holder released the key between our reserve and read
		next.ServeHTTP(w, r)
		return
	}
	var record replayRecord
	if err == nil {
		err = json.Unmarshal([]byte(raw), &record)
	}
	if err != nil {
		warn(ctx, logg, "read idempotency record", err)
		next.ServeHTTP(w, r)
		return
	}

	switch {
	case record.RequestHash != hash:
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeConflict, "Idempotency-Key reused with a different request body"))
	case record.InFlight:
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeConflict, "A request with this Idempotency-Key is still in progress"))
	default:
		if record.ContentType != "" {
			w.Header().Set("Content-Type", record.ContentType)
		}
		w.Header().Set(ReplayedHeader, "true")
		w.WriteHeader(record.Status)
		_, _ = w.Write(record.Body)
	}
}

func fingerprint(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

type responseCapture struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (c *responseCapture) WriteHeader(code int) {
	if c.status == 0 {
		c.status = code
	}
	c.ResponseWriter.WriteHeader(code)
}

func (c *responseCapture) Write(b []byte) (int, error) {
	if c.status == 0 {
		c.status = http.StatusOK
	}
	c.body.Write(b)
	return c.ResponseWriter.Write(b)
}

func (c *responseCapture) code() int {
	if c.status == 0 {
		return http.StatusOK
	}
	return c.status
}

func warn(ctx context.Context, logg *logger.Logger, msg string, err error) {
	if logg == nil {
		return
	}
	logg.Warn(logg.WithField(ctx, "error", err.Error()), msg)
}
