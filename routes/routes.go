package routes

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/Dosada05/tombola/docs"
	"github.com/Dosada05/tombola/handlers"
	"github.com/Dosada05/tombola/middleware"
	"github.com/Dosada05/tombola/models"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger"
)

type Handlers struct {
	Auth      *handlers.AuthHandler
	Variant   *handlers.VariantHandler
	Game      *handlers.GameHandler
	Card      *handlers.CardHandler
	Prize     *handlers.PrizeHandler
	User      *handlers.UserHandler
	AdminUser *handlers.AdminUserHandler
	WebSocket *handlers.WebSocketHandler
	Health    *handlers.HealthHandler
}

type Options struct {
	JWTSecret          string
	CORSAllowedOrigins []string
	Logger             *slog.Logger
}

func SetupRoutes(router chi.Router, opts Options, h Handlers) {
	origins := opts.CORSAllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(middleware.StructuredLogger(opts.Logger))
	router.Use(chimiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           int((12 * time.Hour).Seconds()),
	}))

	authenticate := middleware.Authenticate(opts.JWTSecret)
	adminOnly := middleware.Authorize(models.RoleAdmin)

	router.Get("/health", h.Health.Check)
	router.Get("/swagger/doc.json", serveOpenAPI)
	router.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	router.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.Auth.Register)
		r.Post("/login", h.Auth.Login)
	})

	router.Route("/variants", func(r chi.Router) {
		r.Get("/", h.Variant.List)
		r.Get("/{name}", h.Variant.Get)
	})

	router.With(authenticate).Get("/ws", h.WebSocket.ServeWs)

	router.Group(func(r chi.Router) {
		r.Use(authenticate)

		r.Route("/games", func(r chi.Router) {
			r.Get("/", h.Game.ListHandler)
			r.With(adminOnly).Post("/", h.Game.CreateHandler)

			r.Route("/{gameID}", func(r chi.Router) {
				r.Get("/", h.Game.GetByIDHandler)
				r.Patch("/", h.Game.UpdateHandler)
				r.Delete("/", h.Game.DeleteHandler)
				r.Put("/status", h.Game.SetStatusHandler)
				r.Post("/extract", h.Game.ExtractHandler)
				r.Get("/cards", h.Card.ListHandler)
				r.Post("/cards", h.Card.CreateHandler)
			})
		})

		r.Route("/cards", func(r chi.Router) {
			r.Get("/", h.Card.ListHandler)
			r.Get("/{cardID}", h.Card.GetByIDHandler)
			r.Delete("/{cardID}", h.Card.DeleteHandler)
		})

		r.Get("/users/me", h.User.GetMe)
		r.With(adminOnly).Get("/admin/users", h.AdminUser.ListUsers)

		r.Route("/prizes", func(r chi.Router) {
			r.Get("/", h.Prize.ListHandler)
			r.Get("/{prizeID}", h.Prize.GetByIDHandler)
			r.With(adminOnly).Post("/", h.Prize.CreateHandler)
			r.With(adminOnly).Delete("/{prizeID}", h.Prize.DeleteHandler)
		})
	})
}

func serveOpenAPI(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write(docs.OpenAPI)
}
