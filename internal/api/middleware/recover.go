package middleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// MaxFaultDetail bounds how much of an internal error reaches the client.
const MaxFaultDetail = 200

// FaultDetail renders v for a 500 response body, truncated to MaxFaultDetail
// characters.
func FaultDetail(v any) string {
	msg := []rune(fmt.Sprint(v))
	if len(msg) > MaxFaultDetail {
		msg = msg[:MaxFaultDetail]
	}
	return "Erreur interne du serveur: " + string(msg)
}

// Recover turns any panic below it into a JSON 500. Headers already set by
// CORS survive because they live on the same ResponseWriter.
func Recover(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
					panic(rec)
				}

				logger.ErrorContext(r.Context(), "unhandled fault",
					"method", r.Method,
					"path", r.URL.Path,
					"request_id", chimiddleware.GetReqID(r.Context()),
					"panic", fmt.Sprint(rec),
					"stack", string(debug.Stack()),
				)

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				json.NewEncoder(w).Encode(map[string]string{"detail": FaultDetail(rec)})
			}()

			next.ServeHTTP(w, r)
		})
	}
}
