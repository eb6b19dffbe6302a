package routes

import (
	"log/slog"
	"net/http"
	"time"

	_ "github.com/Dosada05/lunch-roulette/docs"
	"github.com/Dosada05/lunch-roulette/handlers"
	"github.com/Dosada05/lunch-roulette/metrics"
	"github.com/Dosada05/lunch-roulette/middleware"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger"
)

type Handlers struct {
	Session    *handlers.SessionHandler
	Tournament *handlers.TournamentHandler
	Restaurant *handlers.RestaurantHandler
	Contact    *handlers.ContactHandler
	Info       *handlers.InfoHandler
	WebSocket  *handlers.WebSocketHandler
}

type Options struct {
	Logger             *slog.Logger
	Metrics            *metrics.Metrics
	MetricsHandler     http.Handler
	Sessions           *middleware.Sessions
	ContactLimiter     *middleware.RateLimiter
	CORSAllowedOrigins []string
}

func SetupRoutes(router chi.Router, h Handlers, opts Options) {
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(middleware.LegacyMobileRedirect)
	router.Use(middleware.Layout)
	router.Use(middleware.RequestLogger(opts.Logger, opts.Metrics))
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id", "Sec-CH-Viewport-Width"},
		ExposedHeaders:   []string{"Link", middleware.LayoutHeader, middleware.SessionTokenHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	router.Get("/health", handlers.Health)
	if opts.MetricsHandler != nil {
		router.Handle("/metrics", opts.MetricsHandler)
	}
	router.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	router.Route("/api", func(r chi.Router) {
		r.Use(chiMiddleware.Timeout(30 * time.Second))

		r.Route("/info", func(r chi.Router) {
			r.Get("/faq", h.Info.FAQ)
			r.Get("/patchnotes", h.Info.PatchNotes)
			r.Get("/contact-types", h.Info.ContactTypes)
		})

		r.With(opts.ContactLimiter.Middleware).Post("/questions", h.Contact.SubmitQuestion)

		r.Get("/restaurants/{rid}", h.Restaurant.GetDetail)
		r.Get("/search/autocomplete", h.Restaurant.Autocomplete)

		r.Post("/session", h.Session.CreateSession)
		r.Group(func(r chi.Router) {
			r.Use(opts.Sessions.RequireSession)

			r.Get("/session", h.Session.GetSession)
			r.Put("/session/radius", h.Session.ChangeRadius)
			r.Post("/session/search", h.Session.Search)
			r.Delete("/session/search", h.Session.ResetSearch)
			r.Post("/session/categories/{name}/toggle", h.Session.ToggleCategory)
			r.Delete("/session/candidates/{candidateID}", h.Session.RemoveCandidate)
			r.Post("/session/refresh", h.Session.Refresh)
			r.Get("/session/markers", h.Session.Markers)
			r.Post("/session/share", h.Session.Share)

			r.Route("/session/tournament", func(r chi.Router) {
				r.Post("/", h.Tournament.StartTournament)
				r.Get("/", h.Tournament.GetTournament)
				r.Delete("/", h.Tournament.CloseTournament)
				r.Post("/winner", h.Tournament.ReportWinner)
			})
		})
	})

	router.With(opts.Sessions.RequireSession).Get("/ws/session", h.WebSocket.ServeWs)
}
