package http

import (
	"net"
	"net/http"
	"time"

	"github.com/crealith/authcore/internal/app/session"
)

// SessionCookieName carries only the opaque session id, never a token.
const SessionCookieName = "crealith_session"

type CookieConfig struct {
	// Secure also switches SameSite to Strict; off is for local development.
	Secure bool          `mapstructure:"secure" json:"secure"`
	Domain string        `mapstructure:"domain" json:"domain"`
	MaxAge time.Duration `mapstructure:"max_age" json:"max_age"`
}

func SetSessionCookie(w http.ResponseWriter, cfg CookieConfig, sessionID string) {
	sameSite := http.SameSiteLaxMode
	if cfg.Secure {
		sameSite = http.SameSiteStrictMode
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    sessionID,
		Path:     "/",
		Domain:   cfg.Domain,
		MaxAge:   int(cfg.MaxAge.Seconds()),
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: sameSite,
	})
}

func ClearSessionCookie(w http.ResponseWriter, cfg CookieConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   cfg.Domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   cfg.Secure,
	})
}

// SessionIDFromRequest returns the cookie-carried session id, or empty.
func SessionIDFromRequest(r *http.Request) string {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// RequestContextOf captures the client attributes a session records.
func RequestContextOf(r *http.Request) session.RequestContext {
	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}

	return session.RequestContext{
		IP:             ip,
		UserAgent:      r.UserAgent(),
		AcceptLanguage: r.Header.Get("Accept-Language"),
		AcceptEncoding: r.Header.Get("Accept-Encoding"),
	}
}
