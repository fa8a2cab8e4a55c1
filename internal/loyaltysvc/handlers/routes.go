package handlers

import (
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/jwtauth"
	log "github.com/sirupsen/logrus"
)

func (h *Handler) SetRoutes(r chi.Router) {
	r.Route("/v1", func(r chi.Router) {

		// public routes
		r.Post("/onboarding", h.Onboard)
		r.Get("/cards/{cardId}", h.GetCard)
		r.Get("/cards/{cardId}/history", h.CardHistory)
		r.Get("/menu", h.PublicMenu)

		r.Route("/admin", func(r chi.Router) {
			r.Get("/pin", h.PinInfo)
			r.Post("/session", h.CreateSession)

			// behind a PIN session
			r.Group(func(r chi.Router) {
				r.Use(h.RequireAdminSession)

				r.Get("/cards/lookup", h.LookupCard)
				r.Post("/cards/{cardId}/stamps", h.AddStamp)
				r.Post("/cards/{cardId}/redeem", h.RedeemCard)

				r.Get("/customers", h.ListCustomers)
				r.Get("/customers/lookup", h.LookupCustomer)
				r.Get("/customers/{customerId}/card", h.CustomerCard)
				r.Patch("/customers/{customerId}/notes", h.UpdateNotes)
				r.Delete("/customers/{customerId}", h.DeactivateCustomer)

				r.Get("/analytics", h.Analytics)

				r.Get("/menu", h.AdminMenu)
				r.Post("/menu/sections", h.CreateSection)
				r.Put("/menu/sections/{sectionId}", h.UpdateSection)
				r.Delete("/menu/sections/{sectionId}", h.DeleteSection)
				r.Post("/menu/sections/{sectionId}/items", h.AddItem)
				r.Put("/menu/sections/{sectionId}/items/{itemId}", h.UpdateItem)
				r.Delete("/menu/sections/{sectionId}/items/{itemId}", h.DeleteItem)
			})
		})

		// service routes
		r.Group(func(r chi.Router) {
			r.Use(jwtauth.Verifier(h.tokenAuth))
			r.Use(jwtauth.Authenticator)

			r.Get("/health", h.HealthHandler)
		})
	})
}

// InitAuth sets up the service JWT used by ops tooling and returns a
// week-long token for it.
func (h *Handler) InitAuth(jwtKey string) string {
	h.tokenAuth = jwtauth.New("HS256", []byte(jwtKey), nil)

	expirationTime := time.Now().Add(7 * 24 * time.Hour).Unix()

	_, tokenString, err := h.tokenAuth.Encode(map[string]interface{}{
		"service_id": "loyalty",
		"exp":        expirationTime,
	})
	if err != nil {
		log.Errorf("unable to mint service token: %v", err)
	}
	return tokenString
}
