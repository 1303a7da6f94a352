package portal

import (
	"encoding/base64"
	"net/http"
	"time"
)

const flashCookieName = "flash"

// setFlash stores a one-shot message shown by the next rendered page.
func (p *Portal) setFlash(w http.ResponseWriter, msg string) {
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookieName,
		Value:    base64.RawURLEncoding.EncodeToString([]byte(msg)),
		Path:     "/",
		HttpOnly: true,
		Secure:   p.config.Sessions.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

// popFlash returns the pending message, if any, and expires its cookie.
func (p *Portal) popFlash(w http.ResponseWriter, r *http.Request) string {
	cookie, err := r.Cookie(flashCookieName)
	if err != nil {
		return ""
	}

	http.SetCookie(w, &http.Cookie{
		Name:     flashCookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   p.config.Sessions.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})

	msg, err := base64.RawURLEncoding.DecodeString(cookie.Value)
	if err != nil {
		return ""
	}
	return string(msg)
}

// redirectWithFlash sets msg and sends a 303 to target.
func (p *Portal) redirectWithFlash(w http.ResponseWriter, r *http.Request, target, msg string) {
	p.setFlash(w, msg)
	http.Redirect(w, r, target, http.StatusSeeOther)
}
