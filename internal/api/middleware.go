/**
 * @description
 * This file provides the Idempotency-Key middleware for the mutating ledger
 * endpoints. When a request carries an Idempotency-Key header, the first
 * response (status below 500) is cached in Redis for the configured TTL and
 * replayed verbatim for any retry carrying the same key. Requests without the
 * header, and deployments without Redis, pass straight through.
 *
 * @dependencies
 * - encoding/json, net/http: Standard Go libraries.
 * - github.com/redis/go-redis/v9: Response cache backend.
 */

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// IdempotencyStore caches responses keyed by Idempotency-Key header value.
type IdempotencyStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewIdempotencyStore creates an idempotency cache. A nil client disables
// caching; the middleware then passes every request through.
func NewIdempotencyStore(client redis.UniversalClient, prefix string, ttl time.Duration) *IdempotencyStore {
	trimmedPrefix := strings.TrimSpace(prefix)
	if trimmedPrefix == "" {
		trimmedPrefix = "ledger:idempotency"
	}
	trimmedPrefix = strings.TrimSuffix(trimmedPrefix, ":")
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &IdempotencyStore{client: client, prefix: trimmedPrefix, ttl: ttl}
}

type cachedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

func (s *IdempotencyStore) key(raw string) string {
	return s.prefix + ":" + raw
}

func (s *IdempotencyStore) lookup(ctx context.Context, key string) (*cachedResponse, bool) {
	raw, err := s.client.Get(ctx, s.key(key)).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Printf("level=warn component=idempotency msg=\"cache lookup failed\" err=%v", err)
		}
		return nil, false
	}
	var cached cachedResponse
	if err := json.Unmarshal(raw, &cached); err != nil {
		log.Printf("level=warn component=idempotency msg=\"cache entry corrupt; ignoring\" err=%v", err)
		return nil, false
	}
	return &cached, true
}

func (s *IdempotencyStore) save(ctx context.Context, key string, response cachedResponse) {
	raw, err := json.Marshal(response)
	if err != nil {
		return
	}
	// SetNX keeps the first completed response authoritative under racing retries.
	if err := s.client.SetNX(ctx, s.key(key), raw, s.ttl).Err(); err != nil {
		log.Printf("level=warn component=idempotency msg=\"cache save failed\" err=%v", err)
	}
}

// responseRecorder captures the response so it can be cached after serving.
type responseRecorder struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (r *responseRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

// Idempotency returns the middleware backed by the given store.
func Idempotency(store *IdempotencyStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if store == nil || store.client == nil {
				next.ServeHTTP(w, r)
				return
			}
			key := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			if cached, ok := store.lookup(r.Context(), key); ok {
				w.Header().Set("Content-Type", cached.ContentType)
				w.Header().Set("X-Idempotency-Hit", "true")
				w.WriteHeader(cached.Status)
				w.Write(cached.Body)
				return
			}

			recorder := &responseRecorder{ResponseWriter: w}
			next.ServeHTTP(recorder, r)

			// Server errors are not cached so a retry can succeed.
			if recorder.status >= http.StatusInternalServerError {
				return
			}
			store.save(r.Context(), key, cachedResponse{
				Status:      recorder.status,
				ContentType: recorder.Header().Get("Content-Type"),
				Body:        recorder.body.Bytes(),
			})
		})
	}
}
