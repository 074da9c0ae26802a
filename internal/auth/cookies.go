package auth

import (
	"net/http"
	"time"
)

// TokenCookieName is the cookie carrying the session token
const TokenCookieName = "token"

// SetAuthCookie attaches the session token to the response. Production
// deployments serve the frontend from another origin, so the cookie must
// be cross-site-sendable (SameSite=None) and therefore Secure; local
// development stays on Lax over plain HTTP.
func SetAuthCookie(w http.ResponseWriter, token string, isProduction bool, duration time.Duration) {
	sameSite := http.SameSiteLaxMode
	if isProduction {
		sameSite = http.SameSiteNoneMode
	}

	http.SetCookie(w, &http.Cookie{
		Name:     TokenCookieName,
		Value:    token,
		Path:     "/",
		Expires:  time.Now().Add(duration),
		MaxAge:   int(duration.Seconds()),
		HttpOnly: true,
		Secure:   isProduction,
		SameSite: sameSite,
	})
}

// ClearAuthCookie overwrites the session cookie with an empty value and a
// past expiry. This is the whole of logout: the token itself stays
// cryptographically valid until its natural expiry.
func ClearAuthCookie(w http.ResponseWriter, isProduction bool) {
	sameSite := http.SameSiteLaxMode
	if isProduction {
		sameSite = http.SameSiteNoneMode
	}

	http.SetCookie(w, &http.Cookie{
		Name:     TokenCookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   isProduction,
		SameSite: sameSite,
	})
}

// GetTokenFromCookie extracts the session token from the request cookie
func GetTokenFromCookie(r *http.Request) (string, error) {
	cookie, err := r.Cookie(TokenCookieName)
	if err != nil {
		return "", err
	}
	return cookie.Value, nil
}
