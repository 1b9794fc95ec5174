package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/medcart-backend/api/controllers"
	"github.com/angelmondragon/medcart-backend/api/middleware"
	"github.com/angelmondragon/medcart-backend/internal/alerts"
	"github.com/angelmondragon/medcart-backend/internal/auth"
	"github.com/angelmondragon/medcart-backend/internal/cart"
	"github.com/angelmondragon/medcart-backend/internal/orders"
	product "github.com/angelmondragon/medcart-backend/internal/products"
	"github.com/angelmondragon/medcart-backend/internal/refills"
	"github.com/angelmondragon/medcart-backend/internal/reviews"
	"github.com/angelmondragon/medcart-backend/internal/stats"
	"github.com/angelmondragon/medcart-backend/internal/subscriptions"
	"github.com/angelmondragon/medcart-backend/internal/users"
	"github.com/angelmondragon/medcart-backend/internal/wishlist"
	"github.com/angelmondragon/medcart-backend/pkg/auth/session"
	"github.com/angelmondragon/medcart-backend/pkg/config"
	"github.com/angelmondragon/medcart-backend/pkg/enums"
	"github.com/angelmondragon/medcart-backend/pkg/logger"
	"github.com/angelmondragon/medcart-backend/pkg/metrics"
	"github.com/angelmondragon/medcart-backend/pkg/redis"
)

// Redis is the slice of the redis client the HTTP layer needs.
type Redis interface {
	controllers.Pinger
	middleware.RateLimiterStore
	middleware.IdempotencyStore
}

// Deps carries everything NewRouter wires into handlers.
type Deps struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       controllers.Pinger
	Redis    Redis
	Sessions session.AccessSessionChecker
	Metrics  http.Handler
	// HTTPMetrics may be nil.
	HTTPMetrics *metrics.HTTPMetrics

	Auth          auth.Service
	Users         users.Service
	Products      product.Service
	Cart          cart.Service
	Orders        orders.Service
	Subscriptions subscriptions.Service
	Reviews       reviews.Service
	Wishlist      wishlist.Service
	Refills       refills.Service
	Alerts        alerts.Service
	Stats         stats.Service
}

var _ Redis = (*redis.Client)(nil)

func NewRouter(d Deps) http.Handler {
	cfg, logg := d.Config, d.Logger
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg, d.HTTPMetrics),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		cfg.AuthRateLimit.RegisterEmailLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"db":    d.DB,
			"redis": d.Redis,
		}))
	})

	metricsHandler := d.Metrics
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}
	r.Method(http.MethodGet, "/metrics", metricsHandler)

	authn := middleware.Auth(cfg.JWT, d.Sessions, logg)
	idempotent := middleware.Idempotency(d.Redis, logg)

	r.Route("/api/v1", func(r chi.Router) {
		// public
		r.Route("/auth", func(r chi.Router) {
			r.With(middleware.AuthRateLimit(registerPolicy, d.Redis, logg), idempotent).Post("/register", controllers.AuthRegister(d.Auth, logg))
			r.With(middleware.AuthRateLimit(loginPolicy, d.Redis, logg)).Post("/login", controllers.AuthLogin(d.Auth, logg))
			r.Post("/refresh", controllers.AuthRefresh(d.Auth, logg))
			r.With(authn).Post("/logout", controllers.AuthLogout(d.Auth, logg))
			r.With(authn).Post("/change-password", controllers.AuthChangePassword(d.Auth, logg))
		})
		r.Get("/products", controllers.ProductList(d.Products, logg))
		r.Get("/products/{productId}", controllers.ProductDetail(d.Products, logg))
		r.Get("/products/{productId}/related", controllers.ProductRelated(d.Products, logg))
		r.Get("/products/{productId}/reviews", controllers.ReviewList(d.Reviews, logg))
		r.Get("/products/{productId}/reviews/summary", controllers.ReviewSummary(d.Reviews, logg))
		r.Get("/categories", controllers.CategoryList(d.Products, logg))

		// signed in
		r.Group(func(r chi.Router) {
			r.Use(authn, idempotent)

			r.Get("/users/me", controllers.UserProfile(d.Users, logg))
			r.Patch("/users/me", controllers.UserUpdateProfile(d.Users, logg))

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", controllers.CartFetch(d.Cart, logg))
				r.Delete("/", controllers.CartClear(d.Cart, logg))
				r.Post("/items", controllers.CartAddItem(d.Cart, logg))
				r.Patch("/items/{itemId}", controllers.CartUpdateItem(d.Cart, logg))
				r.Delete("/items/{itemId}", controllers.CartRemoveItem(d.Cart, logg))
				r.Post("/items/{itemId}/save-for-later", controllers.CartSaveForLater(d.Cart, logg))
			})
			r.Route("/saved-items", func(r chi.Router) {
				r.Get("/", controllers.SavedItemsList(d.Cart, logg))
				r.Post("/{savedId}/move-to-cart", controllers.SavedItemMoveToCart(d.Cart, logg))
				r.Delete("/{savedId}", controllers.SavedItemRemove(d.Cart, logg))
			})

			r.Route("/orders", func(r chi.Router) {
				r.Post("/", controllers.OrderCheckout(d.Orders, logg))
				r.Get("/", controllers.OrderList(d.Orders, logg))
				r.Get("/{orderId}", controllers.OrderDetail(d.Orders, logg))
				r.Post("/{orderId}/reorder", controllers.OrderReorder(d.Orders, logg))
			})

			r.Route("/subscriptions", func(r chi.Router) {
				r.Post("/", controllers.SubscriptionCreate(d.Subscriptions, logg))
				r.Get("/", controllers.SubscriptionList(d.Subscriptions, logg))
				r.Get("/{subscriptionId}", controllers.SubscriptionDetail(d.Subscriptions, logg))
				r.Post("/{subscriptionId}/cancel", controllers.SubscriptionCancel(d.Subscriptions, logg))
			})

			r.Post("/products/{productId}/reviews", controllers.ReviewUpsert(d.Reviews, logg))
			r.Route("/reviews", func(r chi.Router) {
				r.Get("/mine", controllers.ReviewMine(d.Reviews, logg))
				r.Delete("/{reviewId}", controllers.ReviewDelete(d.Reviews, logg))
				r.Post("/{reviewId}/vote", controllers.ReviewVote(d.Reviews, logg))
				r.Delete("/{reviewId}/vote", controllers.ReviewUnvote(d.Reviews, logg))
			})

			r.Route("/wishlist", func(r chi.Router) {
				r.Get("/", controllers.WishlistList(d.Wishlist, logg))
				r.Get("/ids", controllers.WishlistIDs(d.Wishlist, logg))
				r.Post("/{productId}", controllers.WishlistAdd(d.Wishlist, logg))
				r.Delete("/{productId}", controllers.WishlistRemove(d.Wishlist, logg))
				r.Post("/{productId}/move-to-cart", controllers.WishlistMoveToCart(d.Wishlist, logg))
			})

			r.Route("/refills", func(r chi.Router) {
				r.Get("/", controllers.RefillList(d.Refills, logg))
				r.Post("/{refillId}/dismiss", controllers.RefillDismiss(d.Refills, logg))
			})
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(authn, middleware.RequireRole(enums.UserRoleAdmin, logg))

		r.Get("/stats", controllers.AdminDashboard(d.Stats, logg))

		r.Route("/users", func(r chi.Router) {
			r.Get("/", controllers.AdminUserList(d.Users, logg))
			r.Patch("/{userId}/status", controllers.AdminUserStatus(d.Users, logg))
			r.Patch("/{userId}/role", controllers.AdminUserRole(d.Users, logg))
		})

		r.Route("/products", func(r chi.Router) {
			r.Post("/", controllers.AdminProductCreate(d.Products, logg))
			r.Get("/low-stock", controllers.AdminLowStock(d.Products, logg))
			r.Get("/expiring", controllers.AdminExpiring(d.Products, logg))
			r.Patch("/{productId}", controllers.AdminProductUpdate(d.Products, logg))
			r.Delete("/{productId}", controllers.AdminProductDeactivate(d.Products, logg))
		})
		r.Post("/categories", controllers.AdminCategoryCreate(d.Products, logg))

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.AdminOrderList(d.Orders, logg))
			r.Get("/{orderId}", controllers.AdminOrderDetail(d.Orders, logg))
			r.Patch("/{orderId}", controllers.AdminOrderEdit(d.Orders, logg))
			r.Patch("/{orderId}/status", controllers.AdminOrderStatus(d.Orders, logg))
		})

		r.Post("/reviews/{reviewId}/moderate", controllers.AdminReviewModerate(d.Reviews, logg))

		r.Route("/alerts", func(r chi.Router) {
			r.Get("/", controllers.AdminAlertList(d.Alerts, logg))
			r.Post("/scan", controllers.AdminAlertScan(d.Alerts, logg))
			r.Post("/{alertId}/resolve", controllers.AdminAlertResolve(d.Alerts, logg))
		})
	})

	return r
}
