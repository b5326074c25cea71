package middlewares

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/oauth"

	"github.com/mbolis/survey-board/httpx"
	"github.com/mbolis/survey-board/log"
)

// Authenticated checks the bearer token and makes the requester available
// through httpx.Owner.
func Authenticated(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return chi.Chain(oauth.Authorize(secret, nil), owner).Handler(next)
	}
}

func owner(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, _ := r.Context().Value(oauth.ClaimsContext).(map[string]string)
		userID := claims[httpx.ClaimUserID]
		if userID == "" {
			httpx.LogStatus(w, r, http.StatusUnauthorized, log.DebugLevel, "auth.claims.user_id")
			return
		}

		next.ServeHTTP(w, r.WithContext(httpx.WithOwner(r.Context(), userID)))
	})
}

// RequireOwner rejects requests that reach an owner-only handler without an
// identity on the context.
func RequireOwner(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := httpx.Owner(r.Context()); !ok {
			httpx.LogStatus(w, r, http.StatusUnauthorized, log.DebugLevel, "auth.owner")
			return
		}
		next.ServeHTTP(w, r)
	})
}
