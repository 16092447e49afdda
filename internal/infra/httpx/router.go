package httpx

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/jcmexdev/food-ordering/internal/pkg/auth"
	"github.com/jcmexdev/food-ordering/internal/pkg/cache"
	"github.com/jcmexdev/food-ordering/internal/pkg/interceptors"
)

type RouterOptions struct {
	Verifier *auth.Verifier
	// Cache enables idempotent replay of POSTs; nil disables it.
	Cache cache.Cache
	// Ready backs /healthz; nil always reports ok.
	Ready func(ctx context.Context) error
}

func NewRouter(handler *Handler, opts RouterOptions) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(interceptors.AttachRequestMetadata)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if opts.Ready != nil {
			if err := opts.Ready(req.Context()); err != nil {
				writeError(w, http.StatusServiceUnavailable, "UNAVAILABLE", err.Error())
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(Authenticate(opts.Verifier))
		r.Use(Idempotent(opts.Cache))

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", handler.GetCart)
			r.Delete("/", handler.ClearCart)
			r.Get("/count", handler.CartCount)
			r.Post("/validate", handler.ValidateCart)
			r.Post("/items", handler.AddCartItem)
			r.Put("/items/{menuId}", handler.UpdateCartItem)
			r.Delete("/items/{menuId}", handler.RemoveCartItem)
		})

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", handler.CreateOrder)
			r.Post("/from-cart", handler.CreateOrderFromCart)
			r.Get("/my", handler.ListMyOrders)
			r.Get("/{id}", handler.GetOrder)
			r.Patch("/{id}/status", handler.UpdateOrderStatus)
			r.Post("/{id}/cancel", handler.CancelOrder)
		})

		r.Route("/payments", func(r chi.Router) {
			r.Post("/", handler.Charge)
			r.Get("/history", handler.PaymentHistory)
			r.Get("/orders/{orderId}", handler.GetPaymentByOrder)
			r.Get("/{id}", handler.GetPayment)
			r.Post("/{id}/cancel", handler.CancelPayment)
			r.Post("/{id}/reconcile", handler.ReconcilePayment)
		})
	})

	return otelhttp.NewHandler(r, "ordering-http",
		otelhttp.WithSpanNameFormatter(func(_ string, req *http.Request) string {
			return req.Method + " " + req.URL.Path
		}),
	)
}
