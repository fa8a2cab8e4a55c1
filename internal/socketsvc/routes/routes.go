package routes

import (
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/jwtauth"
	log "github.com/sirupsen/logrus"

	"github.com/avvvet/loyalty-services/internal/socketsvc/handlers"
	"github.com/avvvet/loyalty-services/internal/socketsvc/ws"
)

var tokenAuth *jwtauth.JWTAuth

// SetRoutes needs InitAuth to have run first.
func SetRoutes(r chi.Router, ws *ws.Ws) {
	h := handlers.NewHandler(ws)
	r.Route("/v1", func(r chi.Router) {
		r.Get("/ws", h.HandleWebSocket)
		// Secure routes
		r.Group(func(r chi.Router) {
			r.Use(jwtauth.Verifier(tokenAuth))
			r.Use(jwtauth.Authenticator)

			r.Get("/health", h.HealthHandler)
		})
	})
}

// InitAuth sets the service JWT key and returns a week-long token for ops tooling.
func InitAuth(jwtKey string) string {
	tokenAuth = jwtauth.New("HS256", []byte(jwtKey), nil)

	expirationTime := time.Now().Add(7 * 24 * time.Hour).Unix()

	_, tokenString, err := tokenAuth.Encode(map[string]interface{}{
		"service_id": "socket",
		"exp":        expirationTime,
	})
	if err != nil {
		log.Errorf("unable to mint service token: %v", err)
	}
	return tokenString
}
