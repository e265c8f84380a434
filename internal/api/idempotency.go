package api

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"

	"courier/internal/types"
)

const (
	idempotencyHeader = "Idempotency-Key"
	maxIdempotencyKey = 255

	errCodeIdempotencyInProgress types.ErrorCode = "conflict_idempotency_in_progress"
)

// IdempotencyStore keeps one record per key. Reserve is atomic: exactly one
// caller gets true for a key that is absent. Get returns nil for an unknown
// key.
type IdempotencyStore interface {
	Get(ctx context.Context, key string) (*types.IdempotencyRecord, error)
	Reserve(ctx context.Context, key string) (bool, error)
	Complete(ctx context.Context, key string, status int, body []byte) error
	Release(ctx context.Context, key string) error
}

// bufferedResponse holds the handler's response until it has been stored.
type bufferedResponse struct {
	underlying http.ResponseWriter
	header     http.Header
	status     int
	body       bytes.Buffer
}

func newBufferedResponse(w http.ResponseWriter) *bufferedResponse {
	return &bufferedResponse{underlying: w, header: make(http.Header)}
}

func (b *bufferedResponse) Header() http.Header { return b.header }

func (b *bufferedResponse) WriteHeader(code int) {
	if b.status == 0 {
		b.status = code
	}
}

func (b *bufferedResponse) Write(p []byte) (int, error) {
	if b.status == 0 {
		b.status = http.StatusOK
	}
	return b.body.Write(p)
}

func (b *bufferedResponse) flush() {
	for k, vs := range b.header {
		for _, v := range vs {
			b.underlying.Header().Add(k, v)
		}
	}
	if b.status == 0 {
		b.status = http.StatusOK
	}
	b.underlying.WriteHeader(b.status)
	_, _ = b.underlying.Write(b.body.Bytes())
}

// IdempotencyMiddleware makes POSTs carrying an Idempotency-Key header run
// at most once per key and path:
//   - key completed: the stored response is replayed
//   - key in progress: 409
//   - new key: the handler runs; responses below 500 are stored, a 5xx
//     releases the key so the client can retry
//
// Store errors fail open. Without a store the middleware is a no-op.
func (s *Server) IdempotencyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get(idempotencyHeader)
		if s.Idempotency == nil || r.Method != http.MethodPost || header == "" {
			next.ServeHTTP(w, r)
			return
		}
		if len(header) > maxIdempotencyKey {
			Error(w, r, types.NewAppError(types.ErrCodeValidationInvalidField,
				"Idempotency-Key must not exceed 255 characters", nil))
			return
		}

		ctx := r.Context()
		key := r.URL.Path + ":" + header
		log := s.Logger.With(slog.String("idempotency_key", header), slog.String("path", r.URL.Path))

		reserved, err := s.Idempotency.Reserve(ctx, key)
		if err != nil {
			log.Error("idempotency reserve failed", slog.String("error", err.Error()))
			next.ServeHTTP(w, r)
			return
		}
		if !reserved {
			s.replay(w, r, key, log)
			return
		}

		buf := newBufferedResponse(w)
		next.ServeHTTP(buf, r)

		// The request context may be near its deadline; storing must not
		// be cut short by it.
		storeCtx := context.WithoutCancel(ctx)
		if buf.status >= http.StatusInternalServerError {
			if err := s.Idempotency.Release(storeCtx, key); err != nil {
				log.Error("idempotency release failed", slog.String("error", err.Error()))
			}
		} else if err := s.Idempotency.Complete(storeCtx, key, max(buf.status, http.StatusOK), buf.body.Bytes()); err != nil {
			log.Error("idempotency complete failed", slog.String("error", err.Error()))
		}
		buf.flush()
	})
}

func (s *Server) replay(w http.ResponseWriter, r *http.Request, key string, log *slog.Logger) {
	rec, err := s.Idempotency.Get(r.Context(), key)
	switch {
	case err != nil:
		log.Error("idempotency lookup failed", slog.String("error", err.Error()))
		Error(w, r, err)
	case rec == nil || rec.InProgress():
		log.Warn("idempotency key in progress")
		Error(w, r, types.NewAppError(errCodeIdempotencyInProgress,
			"a request with this idempotency key is being processed", nil))
	default:
		log.Info("idempotency key hit, replaying response", slog.Int("status", rec.Status))
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Idempotent-Replayed", "true")
		w.WriteHeader(rec.Status)
		_, _ = w.Write(rec.Body)
	}
}
