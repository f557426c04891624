package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime/debug"

	apperrors "github.com/kbukum/relay/errors"
	"github.com/kbukum/relay/logger"
)

// Recovery returns middleware that recovers from panics, logs the stack and
// answers 500 with an INTERNAL_ERROR body.
func Recovery(log *logger.Logger) Middleware {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				log.WithContext(r.Context()).Error("Panic recovered", map[string]interface{}{
					logger.FieldError:    fmt.Sprintf("%v", rec),
					"stack":              string(debug.Stack()),
					logger.FieldPath:     r.URL.Path,
					logger.FieldMethod:   r.Method,
					logger.FieldClientIP: r.RemoteAddr,
				})
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				_ = json.NewEncoder(w).Encode(apperrors.Internal(nil).ToResponse())
			}()
			next.ServeHTTP(w, r)
		})
	}
}
