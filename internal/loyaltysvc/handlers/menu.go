package handlers

import (
	"net/http"

	"github.com/go-chi/chi"

	"github.com/avvvet/loyalty-services/internal/loyaltysvc/models"
)

func (h *Handler) PublicMenu(w http.ResponseWriter, r *http.Request) {
	sections, err := h.menu.Public(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, "menu", sections)
}

func (h *Handler) AdminMenu(w http.ResponseWriter, r *http.Request) {
	sections, err := h.menu.All(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, "menu", sections)
}

func (h *Handler) CreateSection(w http.ResponseWriter, r *http.Request) {
	var sec models.MenuSection
	if err := decode(w, r, &sec, false); err != nil {
		h.fail(w, r, err)
		return
	}
	created, err := h.menu.CreateSection(r.Context(), sec)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, "section created", created)
}

func (h *Handler) UpdateSection(w http.ResponseWriter, r *http.Request) {
	var sec models.MenuSection
	if err := decode(w, r, &sec, false); err != nil {
		h.fail(w, r, err)
		return
	}
	updated, err := h.menu.UpdateSection(r.Context(), chi.URLParam(r, "sectionId"), sec)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, "section updated", updated)
}

func (h *Handler) DeleteSection(w http.ResponseWriter, r *http.Request) {
	if err := h.menu.DeleteSection(r.Context(), chi.URLParam(r, "sectionId")); err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, "section deleted", nil)
}

func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	var it models.MenuItem
	if err := decode(w, r, &it, false); err != nil {
		h.fail(w, r, err)
		return
	}
	created, err := h.menu.AddItem(r.Context(), chi.URLParam(r, "sectionId"), it)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, "item created", created)
}

func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	var it models.MenuItem
	if err := decode(w, r, &it, false); err != nil {
		h.fail(w, r, err)
		return
	}
	updated, err := h.menu.UpdateItem(r.Context(), chi.URLParam(r, "sectionId"), chi.URLParam(r, "itemId"), it)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, "item updated", updated)
}

func (h *Handler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	if err := h.menu.DeleteItem(r.Context(), chi.URLParam(r, "sectionId"), chi.URLParam(r, "itemId")); err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, "item deleted", nil)
}
