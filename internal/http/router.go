package http

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/inventio/inventory-api/internal/auth"
	"github.com/inventio/inventory-api/internal/config"
	"github.com/inventio/inventory-api/internal/contact"
	"github.com/inventio/inventory-api/internal/httputil"
	"github.com/inventio/inventory-api/internal/logging"
	"github.com/inventio/inventory-api/internal/product"
	"github.com/inventio/inventory-api/internal/user"
)

// Handlers bundles the route handlers the router wires up
type Handlers struct {
	Auth    *auth.Handler
	User    *user.Handler
	Product *product.Handler
	Contact *contact.Handler
}

// NewRouter creates and configures the HTTP router
func NewRouter(cfg *config.Config, h Handlers, authMiddleware *auth.Middleware, logger *logging.Logger) *chi.Mux {
	r := chi.NewRouter()

	// CORS - must be first
	if len(cfg.Server.TrustedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.Server.TrustedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			ExposedHeaders:   []string{"Content-Length"},
			AllowCredentials: true,
			MaxAge:           300, // 5 minutes
		}))
	}

	// Global middleware
	r.Use(SecurityHeaders)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.RequestLogger(logger))
	r.Use(middleware.Compress(5))

	r.Get("/health", handleHealth)

	// Swagger UI - only in development
	if cfg.Server.IsDevelopment() {
		log.Println("Swagger UI enabled at /swagger/*")
		r.Get("/swagger/*", httpSwagger.WrapHandler)
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/users", func(r chi.Router) {
			// Public
			r.Post("/register", h.Auth.Register)
			r.Post("/login", h.Auth.Login)
			r.Get("/logout", h.Auth.Logout)
			r.Get("/loggedin", h.Auth.LoginStatus)
			r.Post("/forgotpassword", h.Auth.ForgotPassword)
			r.Put("/resetpassword/{resetToken}", h.Auth.ResetPassword)

			// Authenticated
			r.Group(func(r chi.Router) {
				r.Use(authMiddleware.RequireAuth)
				r.Get("/getuser", h.User.GetUser)
				r.Patch("/updateuser", h.User.UpdateUser)
				r.Patch("/changepassword", h.Auth.ChangePassword)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.RequireAuth)

			r.Route("/products", func(r chi.Router) {
				r.Post("/", h.Product.Create)
				r.Get("/", h.Product.List)
				r.Get("/{id}", h.Product.Get)
				r.Patch("/{id}", h.Product.Update)
				r.Delete("/{id}", h.Product.Delete)
			})

			r.Post("/contactus", h.Contact.ContactUs)
		})
	})

	return r
}

// handleHealth is a simple health check endpoint
// @Summary      Health check
// @Description  Check if the API is running
// @Tags         health
// @Produce      json
// @Success      200 {object} map[string]string
// @Router       /health [get]
func handleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.RespondJSON(w, map[string]string{"status": "api is running"}, http.StatusOK)
}
