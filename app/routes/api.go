// Package routes declares the storefront's HTTP surface.
package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/tommyfx/storefront/app/controllers"
	"github.com/tommyfx/storefront/app/services"
	"github.com/tommyfx/storefront/pkg/logger"
	"github.com/tommyfx/storefront/pkg/metrics"
	"github.com/tommyfx/storefront/pkg/middleware"
	"github.com/tommyfx/storefront/pkg/rbac"
	"github.com/tommyfx/storefront/pkg/reqid"
	"github.com/tommyfx/storefront/pkg/response"
	"github.com/tommyfx/storefront/pkg/router"
	"github.com/tommyfx/storefront/pkg/ws"
)

// Deps is everything the handlers need. Zero values are fine for listing
// routes.
type Deps struct {
	Auth         *services.Auth
	Moderation   *services.Moderation
	Testimonials *services.Testimonials
	Profile      *services.Profile

	Hub   *ws.Hub
	Probe func(ctx context.Context) error
	CORS  middleware.CORSOptions

	// RateLimit is requests per minute per client IP; 0 disables it.
	RateLimit int
}

// New builds the router with the global middleware stack and every route.
func New(d Deps) (*router.Router, error) {
	r := router.New()

	// Outermost first: metrics sees total latency, recovery wraps the rest.
	r.Use(metrics.Middleware())
	r.Use(middleware.Recovery)
	r.Use(reqid.Middleware())
	r.Use(middleware.Logger)
	r.Use(middleware.CORS(d.CORS))
	if d.RateLimit > 0 {
		r.Use(middleware.RateLimit(d.RateLimit, time.Minute))
	}

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) { response.NotFound(w) })
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		response.Error(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	if err := Register(r, d); err != nil {
		return nil, err
	}
	return r, nil
}

// Register mounts every route on r.
func Register(r *router.Router, d Deps) error {
	if d.Hub == nil {
		d.Hub = ws.NewHub()
	}

	authC := controllers.NewAuthController(d.Auth)
	testimonials := controllers.NewTestimonialsController(d.Testimonials)
	profile := controllers.NewProfileController(d.Profile)
	moderation := controllers.NewModerationController(d.Moderation, d.Hub)
	health := controllers.NewHealthController(d.Probe)

	gqlHandler, err := controllers.NewGraphQLHandler(d.Testimonials)
	if err != nil {
		return err
	}

	r.Get("/health", "health", health.Show)
	r.Handle("/metrics", "metrics", metrics.Handler())
	r.Post("/graphql", "graphql", gqlHandler)
	r.Get("/graphql", "graphql.get", gqlHandler)

	api := r.Group("/api")
	api.Post("/login", "auth.login", authC.Login)
	api.Get("/testimonials", "testimonials.index", testimonials.Index)
	api.Get("/testimonials/stream", "testimonials.stream", testimonials.Stream)

	member := api.Group("", middleware.Authenticate)
	member.Post("/logout", "auth.logout", authC.Logout)
	member.Get("/me", "auth.me", authC.Me)
	member.Get("/profile", "profile.show", profile.Show)
	member.Post("/feedback", "feedback.store", profile.SubmitFeedback)

	admin := api.Group("/admin", middleware.Authenticate, rbac.Admin)
	admin.Get("/feedback", "moderation.index", moderation.Index)
	admin.Post("/feedback/{id}/approve", "moderation.approve", moderation.Approve)
	admin.Post("/feedback/{id}/unapprove", "moderation.unapprove", moderation.Unapprove)
	admin.Delete("/feedback/{id}", "moderation.delete", moderation.Delete)

	socket := r.Group("/ws", middleware.Authenticate, rbac.Admin)
	socket.Get("/admin/feedback", "moderation.socket", moderation.Socket)

	logger.Debug("routes registered", "count", len(r.Routes()))
	return nil
}
