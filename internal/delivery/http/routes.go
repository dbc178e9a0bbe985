package http

import (
	"net/http"

	"notifyhub/internal/entity"

	"github.com/go-chi/chi/v5"
)

func MapHttpRoutes(r chi.Router, httpHandler *HttpHandler, adminHandler *AdminHandler, websocketHandler http.Handler, authMiddleware *AuthMiddleware) {
	r.Get("/healthz", httpHandler.Health)
	r.Handle("/ws", websocketHandler)

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(authMiddleware.Authenticate)

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", httpHandler.ListNotifications)
			r.Get("/unread-count", httpHandler.UnreadCount)
			r.Post("/read-all", httpHandler.MarkAllAsRead)
			r.Post("/{id}/read", httpHandler.MarkAsRead)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(authMiddleware.RequireRole(entity.RoleAdmin))

			r.Route("/ws", func(r chi.Router) {
				r.Get("/stats", adminHandler.Stats)
				r.Get("/connections", adminHandler.Connections)
				r.Delete("/connections", adminHandler.DisconnectAll)
				r.Delete("/users/{userId}", adminHandler.DisconnectUser)
				r.Delete("/users/{userId}/connections/{connectionId}", adminHandler.DisconnectConnection)
			})

			r.Put("/users/{userId}/role", adminHandler.SetUserRole)
			r.Post("/notifications", adminHandler.CreateNotification)
			r.Post("/broadcast", adminHandler.Broadcast)
			r.Post("/jobs/update", adminHandler.JobUpdate)
			r.Post("/jobs/stats", adminHandler.JobStats)
		})
	})
}
