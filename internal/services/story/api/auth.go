package api

import (
	"context"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/inkhaven/inkhaven/internal/services/story/app"
)

type contextKey int

const claimsKey contextKey = iota

// Claims is the bearer token payload. GMCampaigns lists the campaigns where
// the subject is the privileged actor.
type Claims struct {
	jwt.RegisteredClaims
	GMCampaigns []string `json:"gm,omitempty"`
}

// NewToken mints a signed bearer token. Used by the CLI and by tests; token
// issuance itself lives outside this service.
func NewToken(secret, userID string, gmCampaigns []string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		GMCampaigns: gmCampaigns,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// authenticate verifies the bearer token and stores its claims on the
// request context.
func authenticate(secret string) func(http.Handler) http.Handler {
	keyFunc := func(*jwt.Token) (any, error) { return []byte(secret), nil }
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				respond(w, http.StatusUnauthorized, errorResponse{Error: errorBody{
					Code: "UNAUTHENTICATED", Message: "missing bearer token",
				}})
				return
			}

			claims := &Claims{}
			parsed, err := jwt.ParseWithClaims(token, claims, keyFunc,
				jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
			if err != nil || !parsed.Valid || claims.Subject == "" {
				respond(w, http.StatusUnauthorized, errorResponse{Error: errorBody{
					Code: "UNAUTHENTICATED", Message: "invalid bearer token",
				}})
				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey, claims)))
		})
	}
}

// identity resolves the caller's app identity for one campaign. Privilege is
// per campaign, never global.
func identity(r *http.Request, campaignID string) app.Identity {
	claims, ok := r.Context().Value(claimsKey).(*Claims)
	if !ok {
		return app.Identity{}
	}
	return app.Identity{
		UserID:     claims.Subject,
		Privileged: slices.Contains(claims.GMCampaigns, campaignID),
	}
}
