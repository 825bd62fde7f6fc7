package web

import (
	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/face-attendance/internal/web/handlers"
	"github.com/kozaktomas/face-attendance/internal/web/middleware"
)

func (s *Server) setupRoutes(sessionManager *middleware.SessionManager) {
	authHandler := handlers.NewAuthHandler(s.deps.Credentials, sessionManager)
	attendanceHandler := handlers.NewAttendanceHandler(s.deps.Station, s.deps.Ledger)
	peopleHandler := handlers.NewPeopleHandler(s.deps.Ledger, s.deps.Enrollment, s.deps.Events)
	galleryHandler := handlers.NewGalleryHandler(s.deps.Loader, s.deps.Station, s.config.Matching.Tolerance)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", handlers.HealthCheck)

		r.Post("/auth/login", authHandler.Login)
		r.Post("/auth/logout", authHandler.Logout)
		r.Get("/auth/status", authHandler.Status)

		// Capture station, used unattended by the kiosk
		r.Post("/attendance/recognize", attendanceHandler.Recognize)
		r.Post("/attendance/capture", attendanceHandler.Capture)
		r.Get("/attendance/total", attendanceHandler.Total)

		// Admin panel
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth(sessionManager))

			r.Get("/people", peopleHandler.List)
			r.Post("/people", peopleHandler.Create)
			r.Get("/people/{name}", peopleHandler.Get)
			r.Put("/people/{name}", peopleHandler.Update)
			r.Delete("/people/{name}", peopleHandler.Delete)
			r.Post("/people/{name}/absences", peopleHandler.MarkAbsent)
			r.Get("/people/{name}/events", peopleHandler.Events)

			r.Get("/gallery", galleryHandler.Get)
			r.Post("/gallery/reload", galleryHandler.Reload)
		})
	})
}
