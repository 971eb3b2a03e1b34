package middleware

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/josima5/venda-projetos-sub001/api/responses"
	pkgerrors "github.com/josima5/venda-projetos-sub001/pkg/errors"
	"github.com/josima5/venda-projetos-sub001/pkg/logger"
)

// Recoverer converts a handler panic into the generic internal error body.
// http.ErrAbortHandler is re-raised so net/http can drop the connection.
func Recoverer(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer recoverHandler(w, r, logg)
			next.ServeHTTP(w, r)
		})
	}
}

func recoverHandler(w http.ResponseWriter, r *http.Request, logg *logger.Logger) {
	rec := recover()
	switch {
	case rec == nil:
		return
	case rec == http.ErrAbortHandler:
		panic(rec)
	}

	ctx := r.Context()
	if logg != nil {
		fields := map[string]any{"panic": fmt.Sprint(rec)}
		if rctx := chi.RouteContext(ctx); rctx != nil && rctx.RoutePattern() != "" {
			fields["route"] = rctx.RoutePattern()
		}
		ctx = logg.WithFields(ctx, fields)
	}
	err := pkgerrors.Wrap(pkgerrors.CodeInternal, fmt.Errorf("recovered panic in %s %s: %v", r.Method, r.URL.Path, rec), "handler panicked")
	responses.WriteError(ctx, logg, w, err)
}
