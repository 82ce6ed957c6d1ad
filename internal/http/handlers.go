// Package http exposes the storefront rules and workflow over a JSON API.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/kjstillabower/storefront-service/internal/apperr"
	"github.com/kjstillabower/storefront-service/internal/circuitbreaker"
	"github.com/kjstillabower/storefront-service/internal/lifecycle"
	"github.com/kjstillabower/storefront-service/internal/models"
	"github.com/kjstillabower/storefront-service/internal/observability"
	"github.com/kjstillabower/storefront-service/internal/pricing"
	"github.com/kjstillabower/storefront-service/internal/service"
	"github.com/kjstillabower/storefront-service/internal/traffic"
	"github.com/kjstillabower/storefront-service/internal/validation"
)

const (
	// maxBodyBytes caps JSON request bodies.
	maxBodyBytes = 64 << 10

	minDestinationLen = 2
	maxDestinationLen = 80
)

// Storefront is the workflow the handlers delegate to (storefront.Service in production).
type Storefront interface {
	GetPriceInCurrency(ctx context.Context, price float64, currency string) (float64, error)
	GetShippingInfo(ctx context.Context, destination string) string
	RenderPage(ctx context.Context) (string, error)
	SubmitOrder(ctx context.Context, order models.Order, card models.CreditCard) models.OrderResult
	SignUp(ctx context.Context, email string) (bool, error)
	Login(ctx context.Context, email string) error
	IsOnline() bool
	GetDiscount() float64
}

// HealthConfig holds thresholds for the health handler.
type HealthConfig struct {
	OverloadWindow       time.Duration
	OverloadThresholdPct int
	RateLimitRPS         int
	DegradedWindow       time.Duration
	DegradedErrorPct     int
	// CachePing, when set, is called to check cache reachability. Used when backend is memcached.
	CachePing func() error
	// Breakers are reported under checks; any open breaker marks the service degraded.
	Breakers []*circuitbreaker.CircuitBreaker
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	storefront       Storefront
	healthConfig     *HealthConfig
	logger           *zap.Logger
	healthStatusMu   sync.Mutex
	healthStatusPrev string
}

func NewHandler(storefront Storefront, healthConfig *HealthConfig, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		storefront:   storefront,
		healthConfig: healthConfig,
		logger:       logger,
	}
}

// GetCoupons handles GET /coupons.
func (h *Handler) GetCoupons(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, pricing.GetCoupons())
}

// PostDiscount handles POST /discounts with {"price": number, "code": string}.
func (h *Handler) PostDiscount(w http.ResponseWriter, r *http.Request) {
	fields, ok := decodeFields(w, r)
	if !ok {
		return
	}
	price, ok := numberField(fields, "price")
	if !ok {
		writeAppError(w, r, apperr.InvalidPrice)
		return
	}
	code, ok := stringField(fields, "code")
	if !ok {
		writeAppError(w, r, apperr.InvalidDiscountCode)
		return
	}
	discounted, err := pricing.CalculateDiscount(price, code)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"price":           price,
		"code":            code,
		"discountedPrice": discounted,
	})
}

// PostValidateUser handles POST /users/validate with {"username": string, "age": number}.
// A field of the wrong JSON type is reported like a failing value of that field.
func (h *Handler) PostValidateUser(w http.ResponseWriter, r *http.Request) {
	fields, ok := decodeFields(w, r)
	if !ok {
		return
	}
	username, _ := stringField(fields, "username")
	age, _ := ageField(fields, "age")
	if err := validation.ValidateUserInput(username, age); err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": validation.SuccessMessage})
}

// PostCheckAccount handles POST /accounts/check with {"username", "password"}.
func (h *Handler) PostCheckAccount(w http.ResponseWriter, r *http.Request) {
	fields, ok := decodeFields(w, r)
	if !ok {
		return
	}
	username, _ := stringField(fields, "username")
	password, _ := stringField(fields, "password")
	writeJSON(w, http.StatusOK, map[string]bool{
		"usernameValid":  validation.IsValidUsername(username),
		"passwordStrong": validation.IsStrongPassword(password),
	})
}

// GetDriverEligibility handles GET /drivers/eligibility?age=&country=.
func (h *Handler) GetDriverEligibility(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	age, err := strconv.Atoi(q.Get("age"))
	if err != nil {
		writeAppError(w, r, apperr.InvalidAge)
		return
	}
	canDrive, err := validation.CanDrive(age, q.Get("country"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"canDrive": canDrive})
}

// PostProduct handles POST /products with {"name": string, "price": number}.
func (h *Handler) PostProduct(w http.ResponseWriter, r *http.Request) {
	fields, ok := decodeFields(w, r)
	if !ok {
		return
	}
	var p models.Product
	p.Name, _ = stringField(fields, "name")
	p.Price, _ = numberField(fields, "price")
	if err := validation.ValidateProduct(p); err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"message": validation.ProductPublishedMessage})
}

// GetPrice handles GET /prices/{currency}?amount=.
func (h *Handler) GetPrice(w http.ResponseWriter, r *http.Request) {
	currency := mux.Vars(r)["currency"]
	amount, err := strconv.ParseFloat(r.URL.Query().Get("amount"), 64)
	if err != nil || math.IsNaN(amount) || math.IsInf(amount, 0) || amount <= 0 {
		writeAppError(w, r, apperr.InvalidPrice)
		return
	}
	converted, err := h.storefront.GetPriceInCurrency(r.Context(), amount, currency)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCurrency) {
			writeError(w, r, http.StatusBadRequest, "INVALID_CURRENCY", "currency must be a three-letter code")
			return
		}
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"amount":   amount,
		"currency": currency,
		"price":    converted,
	})
}

// GetShipping handles GET /shipping/{destination}.
func (h *Handler) GetShipping(w http.ResponseWriter, r *http.Request) {
	destination, err := validation.ValidateDestination(mux.Vars(r)["destination"], minDestinationLen, maxDestinationLen)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_DESTINATION", err.Error())
		return
	}
	info := h.storefront.GetShippingInfo(r.Context(), destination)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"destination": destination,
		"available":   info != apperr.ShippingUnavailable.Error(),
		"message":     info,
	})
}

// GetHome handles GET /home.
func (h *Handler) GetHome(w http.ResponseWriter, r *http.Request) {
	page, err := h.storefront.RenderPage(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, page)
}

type orderRequest struct {
	Order models.Order      `json:"order"`
	Card  models.CreditCard `json:"card"`
}

// PostOrder handles POST /orders. A failed payment is 402 with the order result body.
func (h *Handler) PostOrder(w http.ResponseWriter, r *http.Request) {
	var req orderRequest
	if !decodeBody(w, r, &req) {
		return
	}
	amount := req.Order.TotalAmount
	if math.IsNaN(amount) || math.IsInf(amount, 0) || amount <= 0 {
		writeAppError(w, r, apperr.InvalidPrice)
		return
	}
	if req.Card.CreditCardNumber == "" {
		writeError(w, r, http.StatusBadRequest, "INVALID_CARD", "creditCardNumber is required")
		return
	}
	result := h.storefront.SubmitOrder(r.Context(), req.Order, req.Card)
	status := http.StatusOK
	if !result.Success {
		status = http.StatusPaymentRequired
	}
	writeJSON(w, status, result)
}

type emailRequest struct {
	Email string `json:"email"`
}

// PostSignUp handles POST /signup.
func (h *Handler) PostSignUp(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if !decodeBody(w, r, &req) {
		return
	}
	ok, err := h.storefront.SignUp(r.Context(), req.Email)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if !ok {
		writeError(w, r, http.StatusBadRequest, "INVALID_EMAIL", "email address is invalid")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]bool{"success": true})
}

// PostLogin handles POST /login. The one-time code is delivered by email only.
func (h *Handler) PostLogin(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if !validation.ValidateEmail(req.Email) {
		writeError(w, r, http.StatusBadRequest, "INVALID_EMAIL", "email address is invalid")
		return
	}
	if err := h.storefront.Login(r.Context(), req.Email); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"message": "login code sent"})
}

// GetStatus handles GET /status.
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"online":   h.storefront.IsOnline(),
		"discount": h.storefront.GetDiscount(),
	})
}

// healthResult holds the computed health status and metadata for logging.
type healthResult struct {
	status     string
	statusCode int
	reason     string
}

// GetHealth handles GET /health.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	result := h.computeHealthStatus()

	h.healthStatusMu.Lock()
	prev := h.healthStatusPrev
	if prev != "" && prev != result.status {
		h.logger.Info("health status transition",
			zap.String("previous_status", prev),
			zap.String("current_status", result.status),
			zap.String("reason", result.reason))
	}
	h.healthStatusPrev = result.status
	h.healthStatusMu.Unlock()

	checks := make(map[string]string)
	if h.healthConfig != nil {
		if h.healthConfig.CachePing != nil {
			if h.healthConfig.CachePing() == nil {
				checks["cache"] = "healthy"
			} else {
				checks["cache"] = "unhealthy"
			}
		}
		for _, cb := range h.healthConfig.Breakers {
			checks[cb.Component()] = cb.State().String()
		}
	}
	writeJSON(w, result.statusCode, map[string]interface{}{
		"status":    result.status,
		"service":   observability.ServiceName,
		"version":   "dev",
		"checks":    checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// computeHealthStatus evaluates conditions in priority order:
// shutting-down > overloaded > degraded (open breaker, then error rate) > healthy.
func (h *Handler) computeHealthStatus() healthResult {
	if lifecycle.IsShuttingDown() {
		return healthResult{"shutting-down", http.StatusServiceUnavailable, "signal"}
	}
	if h.healthConfig == nil {
		return healthResult{"healthy", http.StatusOK, ""}
	}
	cfg := h.healthConfig
	if cfg.RateLimitRPS > 0 && cfg.OverloadWindow > 0 {
		threshold := float64(cfg.RateLimitRPS) * cfg.OverloadWindow.Seconds() * float64(cfg.OverloadThresholdPct) / 100
		if float64(traffic.RequestCount(cfg.OverloadWindow)) > threshold {
			return healthResult{"overloaded", http.StatusServiceUnavailable, "overload_threshold"}
		}
	}
	for _, cb := range cfg.Breakers {
		if cb.State() == circuitbreaker.StateOpen {
			return healthResult{"degraded", http.StatusServiceUnavailable, "circuit_open:" + cb.Component()}
		}
	}
	if cfg.DegradedWindow > 0 && cfg.DegradedErrorPct > 0 {
		errs, total := traffic.ErrorRate(cfg.DegradedWindow)
		if total > 0 {
			pct := float64(errs) * 100 / float64(total)
			if pct >= float64(cfg.DegradedErrorPct) {
				return healthResult{"degraded", http.StatusServiceUnavailable, "error_rate_breach"}
			}
		}
	}
	return healthResult{"healthy", http.StatusOK, ""}
}

// decodeFields reads a JSON object without binding types, so each field's JSON
// type can be checked individually.
func decodeFields(w http.ResponseWriter, r *http.Request) (map[string]json.RawMessage, bool) {
	var fields map[string]json.RawMessage
	if !decodeBody(w, r, &fields) {
		return nil, false
	}
	if fields == nil {
		fields = map[string]json.RawMessage{}
	}
	return fields, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_BODY", "request body must be a JSON object")
		return false
	}
	return true
}

// stringField returns the field when it is a JSON string.
func stringField(fields map[string]json.RawMessage, name string) (string, bool) {
	raw, ok := fields[name]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

// numberField returns the field when it is a JSON number.
func numberField(fields map[string]json.RawMessage, name string) (float64, bool) {
	raw, ok := fields[name]
	if !ok {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0, false
	}
	return f, true
}

// ageField accepts any JSON number (20, 20.0, 2e1). Fractions round down, so
// "age >= n" for an integer n holds exactly when it holds for the raw value.
func ageField(fields map[string]json.RawMessage, name string) (int, bool) {
	f, ok := numberField(fields, name)
	if !ok || math.IsNaN(f) {
		return 0, false
	}
	f = math.Floor(f)
	switch {
	case f > math.MaxInt32:
		return math.MaxInt32, true
	case f < math.MinInt32:
		return math.MinInt32, true
	}
	return int(f), true
}

// writeJSON writes a JSON response with the specified HTTP status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes an error response in the standard error format with code, message,
// and requestId (correlation ID) if available in request context.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{
			"code":      code,
			"message":   message,
			"requestId": correlationID(r),
		},
	})
}

// writeAppError writes a 400 for tagged validation errors; code is the error kind.
// Anything else is treated as an upstream failure.
func writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperr.KindOf(err)
	if kind == "" {
		writeServiceError(w, r, err)
		return
	}
	writeError(w, r, http.StatusBadRequest, string(kind), err.Error())
}

// writeServiceError writes a 503 for collaborator failures and logs the cause at DEBUG.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, context.DeadlineExceeded) {
		writeError(w, r, http.StatusGatewayTimeout, "TIMEOUT", "Request timed out")
	} else {
		writeError(w, r, http.StatusServiceUnavailable, "UPSTREAM_UNAVAILABLE", "A storefront dependency is unavailable")
	}
	loggerFrom(r).Debug("upstream error", zap.Error(err))
}
