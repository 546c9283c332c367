package handlers

import (
	"os"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/jwtauth"
	log "github.com/sirupsen/logrus"
)

func (h *Handler) SetRoutes(r *chi.Mux) {
	r.Route("/v1", func(r chi.Router) {

		// public routes
		r.Get("/health", h.HealthHandler)
		r.Get("/events", h.HandleWebSocket)

		// Secure routes
		r.Group(func(r chi.Router) {
			r.Use(jwtauth.Verifier(h.tokenAuth))
			r.Use(jwtauth.Authenticator)

			r.Post("/bids", h.ProposeBid)
			r.Get("/bids/mine", h.MyBids)
			r.Get("/bids/incoming", h.IncomingBids)
			r.Get("/bids/{bidID}", h.GetBid)
			r.Post("/bids/{bidID}/seller-decision", h.SellerDecision)

			r.Get("/clubs/{clubID}/balance", h.GetBalance)
			r.Get("/players/{playerID}/owner", h.GetOwner)

			// admin only
			r.Group(func(r chi.Router) {
				r.Use(h.RequireAdmin)

				r.Get("/bids", h.ListBids)
				r.Post("/bids/{bidID}/admin-decision", h.AdminDecision)
				r.Post("/accounts", h.CreateAccount)
				r.Post("/clubs/{clubID}/grant", h.GrantCash)
				r.Post("/clubs/{clubID}/deduct", h.DeductCash)
				r.Put("/players/{playerID}/owner", h.SetOwner)
				r.Get("/transfers/logs", h.TransferLogs)
			})
		})
	})
}

func (h *Handler) InitAuth() {
	var jwtKey = os.Getenv("JWT_SECRET_KEY")
	h.tokenAuth = jwtauth.New("HS256", []byte(jwtKey), nil)

	expirationTime := time.Now().Add(7 * 24 * time.Hour).Unix()

	_, tokenString, _ := h.tokenAuth.Encode(map[string]interface{}{
		"club_id": "club-admin",
		"role":    "admin",
		"exp":     expirationTime,
	})

	// For debugging only, comment it out in production
	log.Infof("DEBUG: admin JWT for testing: %s", tokenString)
}
