package httpmw

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/cachegate/cachegate/pkg/idempotency"
)

// Idempotency wraps a handler with idempotent-replay semantics. A
// duplicate request receives the stored response verbatim with
// X-Idempotency-Replayed set to true; a key conflict is answered with
// 409 before the handler runs; everything else passes through with its
// response recorded for later replay.
func Idempotency(guard *idempotency.Guard) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			out, err := guard.Check(r.Context(), r)
			if err != nil {
				var conflict *idempotency.ConflictError
				if errors.As(err, &conflict) {
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusConflict)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"error": conflict.Error(),
					})
					return
				}
				// Any other error fails open
				next.ServeHTTP(w, r)
				return
			}

			if !out.Applicable {
				next.ServeHTTP(w, r)
				return
			}

			if out.Duplicate {
				for name, values := range out.Response.Headers {
					for _, v := range values {
						w.Header().Add(name, v)
					}
				}
				w.Header().Set(idempotency.HeaderReplayed, "true")
				w.WriteHeader(out.Response.StatusCode)
				_, _ = w.Write(out.Response.Body)
				return
			}

			w.Header().Set(idempotency.HeaderReplayed, "false")

			rec := newTeeRecorder(w)
			next.ServeHTTP(rec, r)

			guard.Store(r.Context(), out.Key, out.Fingerprint, &idempotency.Response{
				StatusCode: rec.Status(),
				Headers:    rec.Header().Clone(),
				Body:       rec.Body(),
			})
		})
	}
}
