// Package storefront implements the customer-facing workflow: currency
// conversion, shipping quotes, page rendering, checkout, signup, login and the
// clock-driven business-hours and holiday rules. Every external capability is
// an injected interface so the workflow can be exercised without the network.
package storefront

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/kjstillabower/storefront-service/internal/apperr"
	"github.com/kjstillabower/storefront-service/internal/clock"
	"github.com/kjstillabower/storefront-service/internal/models"
	"github.com/kjstillabower/storefront-service/internal/observability"
	"github.com/kjstillabower/storefront-service/internal/validation"
)

const (
	// BaseCurrency is the currency catalog prices are quoted in.
	BaseCurrency = "USD"
	// HomePath is the analytics path recorded for every page render.
	HomePath = "/home"
	// PageContent is the rendered page body.
	PageContent = "<div>content</div>"

	WelcomeMessage      = "Welcome aboard! Your storefront account is ready."
	VerificationMessage = "Please verify your email address to finish signing up."

	// Opening hours, local time, [OpenHour, CloseHour).
	OpenHour  = 8
	CloseHour = 20

	// ChristmasDiscount applies for the whole of December 25.
	ChristmasDiscount = 0.2
)

type ExchangeRateProvider interface {
	GetRate(ctx context.Context, from, to string) (float64, error)
}

// ShippingQuoteProvider returns nil, nil when a destination cannot be served.
type ShippingQuoteProvider interface {
	GetQuote(ctx context.Context, destination string) (*models.ShippingQuote, error)
}

type AnalyticsTracker interface {
	TrackView(ctx context.Context, path string)
}

type PaymentProcessor interface {
	Charge(ctx context.Context, card models.CreditCard, amount float64) (models.ChargeResult, error)
}

type EmailSender interface {
	Send(ctx context.Context, to, body string) error
}

type SecurityCodeGenerator interface {
	GenerateCode() (int, error)
}

// Deps are the collaborators a Service delegates to. Clock and Logger are optional.
type Deps struct {
	Rates     ExchangeRateProvider
	Shipping  ShippingQuoteProvider
	Analytics AnalyticsTracker
	Payments  PaymentProcessor
	Email     EmailSender
	Codes     SecurityCodeGenerator
	Clock     clock.Clock
	Logger    *zap.Logger
}

type Service struct {
	rates     ExchangeRateProvider
	shipping  ShippingQuoteProvider
	analytics AnalyticsTracker
	payments  PaymentProcessor
	email     EmailSender
	codes     SecurityCodeGenerator
	clock     clock.Clock
	logger    *zap.Logger
}

func New(deps Deps) *Service {
	if deps.Clock == nil {
		deps.Clock = clock.System{}
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Service{
		rates:     deps.Rates,
		shipping:  deps.Shipping,
		analytics: deps.Analytics,
		payments:  deps.Payments,
		email:     deps.Email,
		codes:     deps.Codes,
		clock:     deps.Clock,
		logger:    deps.Logger,
	}
}

// loggerFor prefers the request-scoped logger carried on ctx.
func (s *Service) loggerFor(ctx context.Context) *zap.Logger {
	if v := ctx.Value("logger"); v != nil {
		if l, ok := v.(*zap.Logger); ok && l != nil {
			return l
		}
	}
	return s.logger
}

// GetPriceInCurrency converts a BaseCurrency price into currency.
func (s *Service) GetPriceInCurrency(ctx context.Context, price float64, currency string) (float64, error) {
	rate, err := s.rates.GetRate(ctx, BaseCurrency, currency)
	if err != nil {
		return 0, fmt.Errorf("get rate %s to %s: %w", BaseCurrency, currency, err)
	}
	return decimal.NewFromFloat(price).Mul(decimal.NewFromFloat(rate)).InexactFloat64(), nil
}

// GetShippingInfo renders the quote for destination, or apperr.ShippingUnavailable's
// message when no quote is available.
func (s *Service) GetShippingInfo(ctx context.Context, destination string) string {
	quote, err := s.shipping.GetQuote(ctx, destination)
	if err != nil || quote == nil {
		fields := []zap.Field{zap.String("destination", destination)}
		if err != nil {
			fields = append(fields, zap.Error(err))
		}
		s.loggerFor(ctx).Info("shipping unavailable", fields...)
		return apperr.ShippingUnavailable.Error()
	}
	return FormatShippingQuote(*quote)
}

// FormatShippingQuote renders "shipping cost: $<cost> (<days> days)" using the
// shortest decimal form of cost (10 → "10", 7.5 → "7.5").
func FormatShippingQuote(q models.ShippingQuote) string {
	return fmt.Sprintf("shipping cost: $%s (%d days)", strconv.FormatFloat(q.Cost, 'f', -1, 64), q.EstimatedDays)
}

// RenderPage records one HomePath view and returns the page body.
func (s *Service) RenderPage(ctx context.Context) (string, error) {
	s.analytics.TrackView(ctx, HomePath)
	return PageContent, nil
}

// SubmitOrder charges card for order.TotalAmount. Anything other than a
// successful charge yields {Success:false, Error:"payment_error"}. A charge cut
// short by ctx is logged as "payment aborted" rather than "payment failed".
func (s *Service) SubmitOrder(ctx context.Context, order models.Order, card models.CreditCard) models.OrderResult {
	result, err := s.payments.Charge(ctx, card, order.TotalAmount)
	if err != nil || result.Status != models.PaymentSuccess {
		fields := []zap.Field{zap.Float64("amount", order.TotalAmount), zap.String("status", string(result.Status))}
		if err != nil {
			fields = append(fields, zap.Error(err))
		}
		// The charge outcome is unknown when ctx ended first.
		if ctxErr := ctx.Err(); ctxErr != nil {
			s.loggerFor(ctx).Warn("payment aborted", append(fields, zap.NamedError("context_error", ctxErr))...)
			observability.OrdersTotal.WithLabelValues("aborted").Inc()
			return models.OrderResult{Success: false, Error: apperr.KindPaymentError}
		}
		s.loggerFor(ctx).Warn("payment failed", fields...)
		observability.OrdersTotal.WithLabelValues(string(apperr.KindPaymentError)).Inc()
		return models.OrderResult{Success: false, Error: apperr.KindPaymentError}
	}
	observability.OrdersTotal.WithLabelValues("success").Inc()
	return models.OrderResult{Success: true}
}

// SignUp registers email. An invalid address returns false with no mail sent.
// A valid one gets WelcomeMessage then VerificationMessage.
func (s *Service) SignUp(ctx context.Context, email string) (bool, error) {
	logger := s.loggerFor(ctx)
	if !validation.ValidateEmail(email) {
		logger.Debug("signup rejected", zap.String("reason", "invalid email"))
		observability.SignupsTotal.WithLabelValues("rejected").Inc()
		return false, nil
	}

	for _, body := range []string{WelcomeMessage, VerificationMessage} {
		if err := s.email.Send(ctx, email, body); err != nil {
			observability.SignupsTotal.WithLabelValues("error").Inc()
			return false, fmt.Errorf("signup email: %w", err)
		}
		logger.Debug("email sent", zap.String("kind", "signup"))
	}
	observability.SignupsTotal.WithLabelValues("accepted").Inc()
	return true, nil
}

// Login emails a fresh one-time code to email. The body is the code in decimal.
func (s *Service) Login(ctx context.Context, email string) error {
	code, err := s.codes.GenerateCode()
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	if err := s.email.Send(ctx, email, strconv.Itoa(code)); err != nil {
		return fmt.Errorf("login email: %w", err)
	}
	s.loggerFor(ctx).Debug("email sent", zap.String("kind", "login_code"))
	return nil
}

// IsOnline reports whether the store is within opening hours in the clock's location.
func (s *Service) IsOnline() bool {
	hour := s.clock.Now().Hour()
	return hour >= OpenHour && hour < CloseHour
}

// GetDiscount returns ChristmasDiscount on December 25 and 0 otherwise.
func (s *Service) GetDiscount() float64 {
	now := s.clock.Now()
	if now.Month() == time.December && now.Day() == 25 {
		return ChristmasDiscount
	}
	return 0
}
