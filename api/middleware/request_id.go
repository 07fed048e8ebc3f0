package middleware

import (
	"net/http"

	"github.com/stockline/backoffice/pkg/logger"
	"github.com/stockline/backoffice/pkg/requestid"
)

// RequestID accepts the caller's correlation id or mints one, echoes it back
// and stores it on the context for logs and outbound calls.
func RequestID(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := requestid.Accept(r.Header.Get(requestid.Header))
			w.Header().Set(requestid.Header, id)

			ctx := requestid.With(r.Context(), id)
			if logg != nil {
				ctx = logg.WithRequestID(ctx, id)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
