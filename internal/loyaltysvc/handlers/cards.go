package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi"

	"github.com/avvvet/loyalty-services/internal/loyaltysvc/models"
	"github.com/avvvet/loyalty-services/internal/loyaltysvc/service"
)

func (h *Handler) Onboard(w http.ResponseWriter, r *http.Request) {
	var req service.OnboardRequest
	if err := decode(w, r, &req, false); err != nil {
		h.fail(w, r, err)
		return
	}

	res, err := h.customers.Onboard(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.ok(w, "welcome", map[string]interface{}{
		"customer": res.Customer,
		"card":     h.withURL(res.Card),
		"existing": res.Existing,
	})
}

func (h *Handler) GetCard(w http.ResponseWriter, r *http.Request) {
	view, err := h.cards.View(r.Context(), chi.URLParam(r, "cardId"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, "card", map[string]interface{}{
		"card":          h.withURL(view.Card),
		"currentCardId": view.CurrentCardID,
	})
}

func (h *Handler) CardHistory(w http.ResponseWriter, r *http.Request) {
	events, err := h.cards.CardHistory(r.Context(), chi.URLParam(r, "cardId"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, "history", events)
}

// LookupCard resolves a scanned QR payload or typed id for the stamp screen.
func (h *Handler) LookupCard(w http.ResponseWriter, r *http.Request) {
	card, err := h.cards.Lookup(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	data := map[string]interface{}{"card": h.withURL(card)}
	cust, err := h.customers.Get(r.Context(), card.CustomerID)
	switch {
	case err == nil:
		data["customer"] = cust
	case !errors.Is(err, models.ErrNotFound):
		h.fail(w, r, err)
		return
	}
	h.ok(w, "card", data)
}

func (h *Handler) AddStamp(w http.ResponseWriter, r *http.Request) {
	req := models.StampRequest{AddedBy: models.AddedByBarista}
	if err := decode(w, r, &req, true); err != nil {
		h.fail(w, r, err)
		return
	}

	snap, err := h.cards.AddStamp(r.Context(), chi.URLParam(r, "cardId"), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, "stamp", snap)
}

func (h *Handler) RedeemCard(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CustomerID string `json:"customerId"`
		RewardID   string `json:"rewardId"`
	}
	if err := decode(w, r, &req, true); err != nil {
		h.fail(w, r, err)
		return
	}

	next, err := h.cards.RedeemCard(r.Context(), chi.URLParam(r, "cardId"), req.CustomerID, req.RewardID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, "redeemed", map[string]interface{}{"card": h.withURL(next)})
}
