package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/jcmexdev/food-ordering/internal/core/domain"
	"github.com/jcmexdev/food-ordering/internal/pkg/auth"
	"github.com/jcmexdev/food-ordering/internal/pkg/cache"
	"github.com/jcmexdev/food-ordering/internal/pkg/interceptors"
	"github.com/jcmexdev/food-ordering/internal/pkg/interceptors/constants"
)

const (
	idempotencyTTL = 24 * time.Hour
	inFlight       = "in-flight"
)

// CallerID returns the authenticated user of the request.
func CallerID(ctx context.Context) string {
	id, _ := ctx.Value(constants.ContextKeyCallerID).(string)
	return id
}

func withCallerID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, constants.ContextKeyCallerID, userID)
}

// Authenticate resolves the bearer token into the caller id.
func Authenticate(verifier *auth.Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := auth.FromHeader(r.Header.Get("Authorization"))
			if err == nil {
				var userID string
				if userID, err = verifier.Verify(token); err == nil {
					next.ServeHTTP(w, r.WithContext(withCallerID(r.Context(), userID)))
					return
				}
			}
			writeDomainError(w, r, err)
		})
	}
}

type replay struct {
	Status int             `json:"status"`
	Body   json.RawMessage `json:"body"`
}

// Idempotent replays the stored response of a POST that carried the same
// X-Idempotency-Key from the same caller. A key whose first request is still
// running answers 409. Server errors are not stored so the client may retry.
func Idempotent(c cache.Cache) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			idemKey := interceptors.IdempotencyKey(r.Context())
			if r.Method != http.MethodPost || idemKey == "" || c == nil {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			key := c.GenerateKey("idempotency", CallerID(ctx)+":"+r.URL.Path+":"+idemKey)

			stored, err := c.Get(ctx, key)
			if err != nil {
				slog.WarnContext(ctx, "idempotency cache unavailable", "error", err)
				next.ServeHTTP(w, r)
				return
			}
			if stored == "" {
				claimed, err := c.SetNX(ctx, key, inFlight, idempotencyTTL)
				if err != nil {
					slog.WarnContext(ctx, "idempotency cache unavailable", "error", err)
					next.ServeHTTP(w, r)
					return
				}
				if claimed {
					record(w, r, next, c, key)
					return
				}
				stored, _ = c.Get(ctx, key)
			}

			if stored == inFlight || stored == "" {
				writeError(w, http.StatusConflict, "REQUEST_IN_PROGRESS", "a request with this idempotency key is still being processed")
				return
			}
			var rep replay
			if err := json.Unmarshal([]byte(stored), &rep); err != nil {
				slog.WarnContext(ctx, "corrupt idempotency entry", "key", key, "error", err)
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Idempotent-Replayed", "true")
			w.WriteHeader(rep.Status)
			_, _ = w.Write(rep.Body)
		})
	}
}

func record(w http.ResponseWriter, r *http.Request, next http.Handler, c cache.Cache, key string) {
	ctx := context.WithoutCancel(r.Context())
	defer func() {
		if rec := recover(); rec != nil {
			if err := c.Delete(ctx, key); err != nil {
				slog.WarnContext(ctx, "failed to release idempotency key", "key", key, "error", err)
			}
			panic(rec)
		}
	}()

	var body bytes.Buffer
	ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
	ww.Tee(&body)
	next.ServeHTTP(ww, r)

	status := ww.Status()
	if status >= http.StatusInternalServerError || !json.Valid(body.Bytes()) {
		if err := c.Delete(ctx, key); err != nil {
			slog.WarnContext(ctx, "failed to release idempotency key", "key", key, "error", err)
		}
		return
	}
	data, err := json.Marshal(replay{Status: status, Body: bytes.TrimSpace(body.Bytes())})
	if err == nil {
		err = c.Set(ctx, key, data, idempotencyTTL)
	}
	if err != nil {
		slog.WarnContext(ctx, "failed to store idempotent response", "key", key, "error", err)
	}
}

func requireCaller(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := CallerID(r.Context())
	if id == "" {
		writeDomainError(w, r, domain.Errorf(domain.KindUnauthorized, "authentication required"))
		return "", false
	}
	return id, true
}
