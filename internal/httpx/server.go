package httpx

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/kigalimart/storefront/internal/auth"
	"github.com/kigalimart/storefront/internal/cart"
	"github.com/kigalimart/storefront/internal/catalog"
	"github.com/kigalimart/storefront/internal/notifications"
	"github.com/kigalimart/storefront/internal/orders"
	"github.com/kigalimart/storefront/internal/riders"
	"github.com/kigalimart/storefront/internal/settings"
	"github.com/kigalimart/storefront/internal/users"
)

type Server struct {
	Users         *users.Service
	Catalog       *catalog.Service
	Cart          *cart.Service
	Orders        *orders.Service
	Riders        *riders.Service
	Notifications *notifications.Service
	Stream        Subscriber
	Settings      *settings.Service
	Tokens        *auth.Tokens
	Policy        *auth.Policy
	Log           *slog.Logger

	LoginRatePerMin int
}

func NewRouter() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(traceID)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return r
}

// Handler wires every route. The notification stream is mounted outside
// the request timeout.
func (s *Server) Handler() http.Handler {
	r := NewRouter()

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(15 * time.Second))

		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", s.register)
			r.With(newLoginLimiter(s.LoginRatePerMin).Middleware).Post("/login", s.login)
		})
		r.Get("/products", s.listProducts)
		r.Get("/products/{id}", s.getProduct)

		r.Group(func(r chi.Router) {
			r.Use(s.authenticate, s.authorize, s.maintenance)

			r.Get("/me", s.me)
			r.Put("/me", s.updateMe)

			s.mountCart(r)
			s.mountOrders(r)
			s.mountNotifications(r)
			s.mountRider(r)

			r.Route("/admin", func(r chi.Router) {
				s.mountAdminCatalog(r)
				s.mountAdminOrders(r)
				s.mountAdminRiders(r)
				s.mountAdminSettings(r)
				s.mountAdminUsers(r)
			})
		})
	})

	r.With(s.authenticate, s.authorize).Get("/notifications/stream", s.stream)
	return r
}
