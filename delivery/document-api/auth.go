package documentapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog/log"
)

type scopeContextKey struct{}

// WithCallerScope extracts the caller's scope set from the HMAC-signed
// bearer token's "scope" claim and stores it in the request context. A
// missing or invalid token yields an empty scope set; whether that is
// enough is then purely the document policies' decision.
func WithCallerScope(secret []byte) Middleware {
	return func(next httprouter.Handle) httprouter.Handle {
		return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
			tokens := parseScopes(r.Header.Get("Authorization"), secret)
			ctx := context.WithValue(r.Context(), scopeContextKey{}, tokens)
			next(w, r.WithContext(ctx), p)
		}
	}
}

// CallerScope returns the scope set stored by WithCallerScope.
func CallerScope(ctx context.Context) []string {
	scopes, _ := ctx.Value(scopeContextKey{}).([]string)
	return scopes
}

func parseScopes(header string, secret []byte) []string {
	if !strings.HasPrefix(header, "Bearer ") {
		return nil
	}
	raw := strings.TrimPrefix(header, "Bearer ")
	if raw == "" {
		return nil
	}

	parsed, err := jwt.Parse(raw, func(parsed *jwt.Token) (interface{}, error) {
		if _, ok := parsed.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrInvalidKeyType
		}
		return secret, nil
	})
	if err != nil || !parsed.Valid {
		log.Warn().Msgf("rejecting bearer token: %v", err)
		return nil
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil
	}

	switch scopes := claims["scope"].(type) {
	case []any:
		out := make([]string, 0, len(scopes))
		for _, s := range scopes {
			if v, ok := s.(string); ok {
				out = append(out, v)
			}
		}
		return out
	case string:
		return strings.Fields(scopes)
	}
	return nil
}
