package handlers

import (
	"net/http"

	"github.com/go-chi/chi"
)

func (h *Handler) ListCustomers(w http.ResponseWriter, r *http.Request) {
	list, err := h.customers.List(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, "customers", list)
}

func (h *Handler) LookupCustomer(w http.ResponseWriter, r *http.Request) {
	cust, err := h.customers.LookupByPhone(r.Context(), r.URL.Query().Get("phone"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, "customer", cust)
}

func (h *Handler) CustomerCard(w http.ResponseWriter, r *http.Request) {
	card, err := h.customers.CurrentCard(r.Context(), chi.URLParam(r, "customerId"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, "card", h.withURL(card))
}

func (h *Handler) UpdateNotes(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Notes string `json:"notes"`
	}
	if err := decode(w, r, &req, false); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.customers.UpdateNotes(r.Context(), chi.URLParam(r, "customerId"), req.Notes); err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, "notes updated", nil)
}

func (h *Handler) DeactivateCustomer(w http.ResponseWriter, r *http.Request) {
	if err := h.customers.Deactivate(r.Context(), chi.URLParam(r, "customerId")); err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, "customer removed", nil)
}
