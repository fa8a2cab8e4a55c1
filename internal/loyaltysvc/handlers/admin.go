package handlers

import (
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/avvvet/loyalty-services/internal/loyaltysvc/auth"
	"github.com/avvvet/loyalty-services/internal/loyaltysvc/models"
)

const sessionHeader = "X-Admin-Session"

func sessionToken(r *http.Request) string {
	if t := r.Header.Get(sessionHeader); t != "" {
		return t
	}
	if h := r.Header.Get("Authorization"); len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// RequireAdminSession admits requests carrying a valid PIN session token.
func (h *Handler) RequireAdminSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !h.guard.VerifySession(sessionToken(r), h.guard.Now()) {
			h.CreateResponse(w, Response{Message: "unauthorized", Code: http.StatusUnauthorized, Error: "unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) PinInfo(w http.ResponseWriter, r *http.Request) {
	h.ok(w, "pin", map[string]int{"pinLength": h.guard.PinLength(r.Context())})
}

func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Pin string `json:"pin"`
	}
	if err := decode(w, r, &req, false); err != nil {
		h.fail(w, r, err)
		return
	}

	res := h.guard.VerifyPin(r.Context(), req.Pin, clientAddr(r))
	switch res.Status {
	case auth.Granted:
		h.ok(w, "session granted", map[string]string{"token": res.Token})
	case auth.Blocked:
		secs := int(math.Ceil(res.RetryAfter.Seconds()))
		if secs < 1 {
			secs = 1
		}
		w.Header().Set("Retry-After", strconv.Itoa(secs))
		h.CreateResponse(w, Response{
			Message: "too many attempts",
			Code:    http.StatusTooManyRequests,
			Data:    map[string]int{"retryAfter": secs},
			Error:   "too many attempts",
		})
	default:
		h.CreateResponse(w, Response{Message: "invalid pin", Code: http.StatusUnauthorized, Error: "invalid pin"})
	}
}

func (h *Handler) Analytics(w http.ResponseWriter, r *http.Request) {
	sum, err := h.analytics.Summary(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, "analytics", sum)
}

type cardPayload struct {
	*models.Card
	URL string `json:"url"`
}

func (h *Handler) withURL(c *models.Card) cardPayload {
	return cardPayload{Card: c, URL: models.CardURL(h.publicOrigin, c.ID)}
}
