package http

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/storefront-service/internal/observability"
)

// NewRouter wires the handlers and middleware. /health and /metrics bypass the
// rate limiter, request timeout and traffic accounting.
func NewRouter(h *Handler, logger *zap.Logger, limiter *rate.Limiter, requestTimeout time.Duration) *mux.Router {
	router := mux.NewRouter()
	router.Use(CorrelationIDMiddleware(logger))
	router.Use(MetricsMiddleware)
	router.HandleFunc("/health", h.GetHealth).Methods(http.MethodGet)
	router.Handle("/metrics", observability.MetricsHandler())

	api := router.PathPrefix("/").Subrouter()
	api.Use(OutcomeMiddleware)
	api.Use(RateLimitMiddleware(limiter))
	api.Use(TimeoutMiddleware(requestTimeout))

	api.HandleFunc("/coupons", h.GetCoupons).Methods(http.MethodGet)
	api.HandleFunc("/discounts", h.PostDiscount).Methods(http.MethodPost)
	api.HandleFunc("/users/validate", h.PostValidateUser).Methods(http.MethodPost)
	api.HandleFunc("/accounts/check", h.PostCheckAccount).Methods(http.MethodPost)
	api.HandleFunc("/drivers/eligibility", h.GetDriverEligibility).Methods(http.MethodGet)
	api.HandleFunc("/products", h.PostProduct).Methods(http.MethodPost)
	api.HandleFunc("/prices/{currency}", h.GetPrice).Methods(http.MethodGet)
	api.HandleFunc("/shipping/{destination}", h.GetShipping).Methods(http.MethodGet)
	api.HandleFunc("/home", h.GetHome).Methods(http.MethodGet)
	api.HandleFunc("/orders", h.PostOrder).Methods(http.MethodPost)
	api.HandleFunc("/signup", h.PostSignUp).Methods(http.MethodPost)
	api.HandleFunc("/login", h.PostLogin).Methods(http.MethodPost)
	api.HandleFunc("/status", h.GetStatus).Methods(http.MethodGet)
	return router
}
