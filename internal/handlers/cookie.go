package handlers

import (
	"net/http"
	"time"

	"github.com/google/uuid"
)

const sessionCookieName = "tvd_session"
const sessionCookieDays = 30

// sessionID returns the dashboard session id carried by r, issuing a new one
// on w when r has none.
func (h *Handler) sessionID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(sessionCookieName); err == nil {
		if _, err := uuid.Parse(c.Value); err == nil {
			return c.Value
		}
	}
	id := uuid.NewString()
	h.setSessionCookie(w, id)
	return id
}

func (h *Handler) setSessionCookie(w http.ResponseWriter, value string) {
	expiration := time.Now().Add(time.Hour * 24 * sessionCookieDays)
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    value,
		Path:     "/",
		Expires:  expiration,
		MaxAge:   int((time.Hour * 24 * sessionCookieDays).Seconds()),
		HttpOnly: true,
		SameSite: h.sameSite(),
		Secure:   h.env.Secure(),
	})
}

func (h *Handler) sameSite() http.SameSite {
	if h.env.Secure() {
		return http.SameSiteNoneMode
	}
	return http.SameSiteLaxMode
}
