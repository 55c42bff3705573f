// Package recovery turns handler panics into 500 responses.
package recovery

import (
	"fmt"
	"net/http"
	"runtime/debug"

	applog "expensetracker/internal/log"
)

// Middleware recovers from panics in next, logs the stack and answers 500
// through onPanic. http.ErrAbortHandler is re-raised.
func Middleware(onPanic func(http.ResponseWriter, *http.Request)) func(http.Handler) http.Handler {
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

				applog.FromContext(r.Context()).ErrorContext(r.Context(), "Handler panicked",
					applog.FieldError, fmt.Sprint(rec),
					applog.FieldMethod, r.Method,
					applog.FieldPath, r.URL.Path,
					"stack", string(debug.Stack()))

				if onPanic != nil {
					onPanic(w, r)
					return
				}
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			}()

			next.ServeHTTP(w, r)
		})
	}
}
