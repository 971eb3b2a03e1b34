package middleware

import (
	"context"
	"net/http"

	"github.com/josima5/venda-projetos-sub001/api/responses"
	pkgauth "github.com/josima5/venda-projetos-sub001/pkg/auth"
	"github.com/josima5/venda-projetos-sub001/pkg/config"
	pkgerrors "github.com/josima5/venda-projetos-sub001/pkg/errors"
	"github.com/josima5/venda-projetos-sub001/pkg/logger"
)

// Auth requires a valid bearer token and attaches its Principal to the context.
func Auth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := pkgauth.BearerToken(r.Header.Get("Authorization"))
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}
			claims, err := pkgauth.ParseAccessToken(cfg, token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}
			next.ServeHTTP(w, r.WithContext(withPrincipal(r, logg, claims)))
		})
	}
}

// OptionalAuth attaches the Principal when a valid token is present and lets
// anonymous or badly-authenticated requests through untouched.
func OptionalAuth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := pkgauth.BearerToken(r.Header.Get("Authorization"))
			if token == "" || cfg.Secret == "" {
				next.ServeHTTP(w, r)
				return
			}
			claims, err := pkgauth.ParseAccessToken(cfg, token)
			if err != nil {
				if logg != nil {
					logg.Debug(logg.WithField(r.Context(), "reason", err.Error()), "ignoring invalid optional token")
				}
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(withPrincipal(r, logg, claims)))
		})
	}
}

func withPrincipal(r *http.Request, logg *logger.Logger, claims *pkgauth.AccessTokenClaims) context.Context {
	p := Principal{UserID: claims.User(), Email: claims.Email}
	ctx := WithPrincipal(r.Context(), p)
	if logg != nil {
		ctx = logg.WithUserID(ctx, p.UserID)
	}
	return ctx
}
