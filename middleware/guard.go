package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	goSession "github.com/MrEthical07/goSession"
)

type identityContextKey struct{}

// IdentityFromContext returns the identity stored by [Guard].
func IdentityFromContext(ctx context.Context) (*goSession.Identity, bool) {
	id, ok := ctx.Value(identityContextKey{}).(*goSession.Identity)
	return id, ok
}

// WithIdentity stores id in ctx the way [Guard] does.
func WithIdentity(ctx context.Context, id *goSession.Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

// Guard authenticates the bearer access token of every request. Failures
// get a 401 with a JSON body {"code": ...}; TOKEN_EXPIRED tells the client
// to refresh.
func Guard(engine *goSession.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				writeUnauthorized(w, goSession.CodeTokenInvalid)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				writeUnauthorized(w, goSession.CodeTokenInvalid)
				return
			}

			id, err := engine.Authenticate(r.Context(), token)
			if err != nil {
				writeUnauthorized(w, goSession.ErrorCode(err))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, code string) {
	switch code {
	case goSession.CodeTokenExpired, goSession.CodeTokenTypeMismatch:
	default:
		code = goSession.CodeTokenInvalid
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"code": code})
}

func bearerToken(value string) (string, bool) {
	const bearer = "bearer "
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}
