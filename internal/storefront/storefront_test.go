package storefront

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kjstillabower/storefront-service/internal/apperr"
	"github.com/kjstillabower/storefront-service/internal/clock"
	"github.com/kjstillabower/storefront-service/internal/models"
)

type mockRates struct {
	rate     float64
	err      error
	from, to string
}

func (m *mockRates) GetRate(ctx context.Context, from, to string) (float64, error) {
	m.from, m.to = from, to
	return m.rate, m.err
}

type mockShipping struct {
	quote *models.ShippingQuote
	err   error
}

func (m *mockShipping) GetQuote(ctx context.Context, destination string) (*models.ShippingQuote, error) {
	return m.quote, m.err
}

type mockAnalytics struct {
	paths []string
}

func (m *mockAnalytics) TrackView(ctx context.Context, path string) {
	m.paths = append(m.paths, path)
}

type mockPayments struct {
	result models.ChargeResult
	err    error
	amount float64
	card   models.CreditCard
}

func (m *mockPayments) Charge(ctx context.Context, card models.CreditCard, amount float64) (models.ChargeResult, error) {
	m.card, m.amount = card, amount
	return m.result, m.err
}

type sentEmail struct {
	to, body string
}

type mockEmail struct {
	sent []sentEmail
	err  error
}

func (m *mockEmail) Send(ctx context.Context, to, body string) error {
	m.sent = append(m.sent, sentEmail{to, body})
	return m.err
}

type mockCodes struct {
	code  int
	err   error
	calls int
}

func (m *mockCodes) GenerateCode() (int, error) {
	m.calls++
	return m.code, m.err
}

func TestGetPriceInCurrency(t *testing.T) {
	rates := &mockRates{rate: 1.5}
	svc := New(Deps{Rates: rates})

	got, err := svc.GetPriceInCurrency(context.Background(), 10, "AUD")
	if err != nil {
		t.Fatalf("GetPriceInCurrency() error = %v", err)
	}
	if got != 15 {
		t.Errorf("GetPriceInCurrency() = %v, want 15", got)
	}
	if rates.from != BaseCurrency || rates.to != "AUD" {
		t.Errorf("GetRate called with %s→%s, want USD→AUD", rates.from, rates.to)
	}
}

func TestGetPriceInCurrency_ExactDecimal(t *testing.T) {
	svc := New(Deps{Rates: &mockRates{rate: 0.1}})
	got, err := svc.GetPriceInCurrency(context.Background(), 0.3, "EUR")
	if err != nil {
		t.Fatalf("GetPriceInCurrency() error = %v", err)
	}
	if got != 0.03 {
		t.Errorf("GetPriceInCurrency() = %v, want 0.03", got)
	}
}

func TestGetPriceInCurrency_ProviderError(t *testing.T) {
	upstream := errors.New("rates down")
	svc := New(Deps{Rates: &mockRates{err: upstream}})
	if _, err := svc.GetPriceInCurrency(context.Background(), 10, "EUR"); !errors.Is(err, upstream) {
		t.Errorf("GetPriceInCurrency() error = %v, want wrapped provider error", err)
	}
}

func TestGetShippingInfo(t *testing.T) {
	tests := []struct {
		name     string
		shipping *mockShipping
		want     string
	}{
		{"no quote", &mockShipping{}, "shipping unavailable"},
		{"provider error", &mockShipping{err: errors.New("carrier down")}, "shipping unavailable"},
		{"whole cost", &mockShipping{quote: &models.ShippingQuote{Cost: 10, EstimatedDays: 2}}, "shipping cost: $10 (2 days)"},
		{"fractional cost", &mockShipping{quote: &models.ShippingQuote{Cost: 7.5, EstimatedDays: 1}}, "shipping cost: $7.5 (1 days)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := New(Deps{Shipping: tt.shipping})
			if got := svc.GetShippingInfo(context.Background(), "Paris"); got != tt.want {
				t.Errorf("GetShippingInfo() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGetShippingInfo_LogsUnavailable(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	svc := New(Deps{Shipping: &mockShipping{}, Logger: zap.New(core)})

	svc.GetShippingInfo(context.Background(), "Atlantis")

	entries := logs.FilterMessage("shipping unavailable").All()
	if len(entries) != 1 {
		t.Fatalf("shipping unavailable logs = %d, want 1", len(entries))
	}
	if got := entries[0].ContextMap()["destination"]; got != "Atlantis" {
		t.Errorf("destination field = %v, want Atlantis", got)
	}
}

func TestRenderPage(t *testing.T) {
	analytics := &mockAnalytics{}
	svc := New(Deps{Analytics: analytics})

	got, err := svc.RenderPage(context.Background())
	if err != nil {
		t.Fatalf("RenderPage() error = %v", err)
	}
	if got != "<div>content</div>" {
		t.Errorf("RenderPage() = %q", got)
	}
	if len(analytics.paths) != 1 || analytics.paths[0] != "/home" {
		t.Errorf("TrackView calls = %v, want exactly [/home]", analytics.paths)
	}
}

func TestSubmitOrder(t *testing.T) {
	order := models.Order{TotalAmount: 10}
	card := models.CreditCard{CreditCardNumber: "1234"}

	tests := []struct {
		name     string
		payments *mockPayments
		want     models.OrderResult
	}{
		{"charge succeeds", &mockPayments{result: models.ChargeResult{Status: models.PaymentSuccess}}, models.OrderResult{Success: true}},
		{"charge fails", &mockPayments{result: models.ChargeResult{Status: models.PaymentFailed}}, models.OrderResult{Success: false, Error: apperr.KindPaymentError}},
		{"charge errors", &mockPayments{err: errors.New("timeout")}, models.OrderResult{Success: false, Error: apperr.KindPaymentError}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := New(Deps{Payments: tt.payments})
			got := svc.SubmitOrder(context.Background(), order, card)
			if got != tt.want {
				t.Errorf("SubmitOrder() = %+v, want %+v", got, tt.want)
			}
			if tt.payments.amount != 10 || tt.payments.card != card {
				t.Errorf("Charge called with %+v, %v", tt.payments.card, tt.payments.amount)
			}
		})
	}
}

func TestSubmitOrder_LogsPaymentFailure(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	logger := zap.New(core)
	ctx := context.WithValue(context.Background(), "logger", logger)
	svc := New(Deps{Payments: &mockPayments{result: models.ChargeResult{Status: models.PaymentFailed}}})

	svc.SubmitOrder(ctx, models.Order{TotalAmount: 5}, models.CreditCard{CreditCardNumber: "4242424242424242"})

	entries := logs.FilterMessage("payment failed").All()
	if len(entries) != 1 {
		t.Fatalf("payment failed logs = %d, want 1", len(entries))
	}
	for k, v := range entries[0].ContextMap() {
		if s, ok := v.(string); ok && s == "4242424242424242" {
			t.Errorf("card number logged in field %q", k)
		}
	}
}

func TestSignUp_InvalidEmail(t *testing.T) {
	email := &mockEmail{}
	svc := New(Deps{Email: email})

	ok, err := svc.SignUp(context.Background(), "a")
	if err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}
	if ok {
		t.Error("SignUp() = true, want false for invalid email")
	}
	if len(email.sent) != 0 {
		t.Errorf("emails sent = %d, want 0", len(email.sent))
	}
}

func TestSignUp_ValidEmail(t *testing.T) {
	const addr = "name@domain.com"
	email := &mockEmail{}
	svc := New(Deps{Email: email})

	ok, err := svc.SignUp(context.Background(), addr)
	if err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}
	if !ok {
		t.Fatal("SignUp() = false, want true")
	}
	if len(email.sent) != 2 {
		t.Fatalf("emails sent = %d, want 2", len(email.sent))
	}
	if email.sent[0].to != addr {
		t.Errorf("first email to = %q, want %q", email.sent[0].to, addr)
	}
	if !regexp.MustCompile(`(?i)welcome`).MatchString(email.sent[0].body) {
		t.Errorf("first email body = %q, want welcome message", email.sent[0].body)
	}
	if email.sent[1].to != addr || email.sent[1].body != VerificationMessage {
		t.Errorf("second email = %+v, want verification to %s", email.sent[1], addr)
	}
}

func TestSignUp_SendError(t *testing.T) {
	relay := errors.New("relay down")
	svc := New(Deps{Email: &mockEmail{err: relay}})
	ok, err := svc.SignUp(context.Background(), "name@domain.com")
	if ok || !errors.Is(err, relay) {
		t.Errorf("SignUp() = %v, %v, want false and wrapped relay error", ok, err)
	}
}

func TestLogin(t *testing.T) {
	email := &mockEmail{}
	codes := &mockCodes{code: 4821}
	svc := New(Deps{Email: email, Codes: codes})

	if err := svc.Login(context.Background(), "email@domain.com"); err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if codes.calls != 1 {
		t.Errorf("GenerateCode calls = %d, want 1", codes.calls)
	}
	want := sentEmail{to: "email@domain.com", body: strconv.Itoa(4821)}
	if len(email.sent) != 1 || email.sent[0] != want {
		t.Errorf("emails = %+v, want [%+v]", email.sent, want)
	}
}

func TestLogin_GeneratorError(t *testing.T) {
	email := &mockEmail{}
	genErr := errors.New("no entropy")
	svc := New(Deps{Email: email, Codes: &mockCodes{err: genErr}})

	if err := svc.Login(context.Background(), "email@domain.com"); !errors.Is(err, genErr) {
		t.Errorf("Login() error = %v, want wrapped generator error", err)
	}
	if len(email.sent) != 0 {
		t.Error("email sent despite generator failure")
	}
}

func at(month time.Month, day, hour, minute int) clock.Clock {
	return clock.Fixed(time.Date(2024, month, day, hour, minute, 0, 0, time.Local))
}

func TestIsOnline(t *testing.T) {
	tests := []struct {
		name string
		hour int
		min  int
		want bool
	}{
		{"before opening", 7, 59, false},
		{"at opening", 8, 0, true},
		{"morning", 9, 0, true},
		{"just before closing", 19, 59, true},
		{"at closing", 20, 0, false},
		{"after closing", 20, 1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := New(Deps{Clock: at(time.January, 1, tt.hour, tt.min)})
			if got := svc.IsOnline(); got != tt.want {
				t.Errorf("IsOnline() at %02d:%02d = %v, want %v", tt.hour, tt.min, got, tt.want)
			}
		})
	}
}

func TestGetDiscount(t *testing.T) {
	tests := []struct {
		name  string
		clock clock.Clock
		want  float64
	}{
		{"christmas start", at(time.December, 25, 0, 1), 0.2},
		{"christmas end", at(time.December, 25, 23, 59), 0.2},
		{"christmas eve", at(time.December, 24, 23, 59), 0},
		{"boxing day", at(time.December, 26, 0, 0), 0},
		{"other month same day", at(time.November, 25, 12, 0), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := New(Deps{Clock: tt.clock})
			if got := svc.GetDiscount(); got != tt.want {
				t.Errorf("GetDiscount() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSubmitOrder_DeadlineLoggedAsAborted(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	logger := zap.New(core)
	ctx, cancel := context.WithTimeout(context.WithValue(context.Background(), "logger", logger), time.Nanosecond)
	defer cancel()
	<-ctx.Done()

	svc := New(Deps{Payments: &mockPayments{err: context.DeadlineExceeded}})
	got := svc.SubmitOrder(ctx, models.Order{TotalAmount: 5}, models.CreditCard{CreditCardNumber: "4111"})

	if got.Success || got.Error != apperr.KindPaymentError {
		t.Errorf("SubmitOrder() = %+v, want payment_error", got)
	}
	if n := logs.FilterMessage("payment failed").Len(); n != 0 {
		t.Errorf("payment failed logs = %d, want 0", n)
	}
	entries := logs.FilterMessage("payment aborted").All()
	if len(entries) != 1 {
		t.Fatalf("payment aborted logs = %d, want 1", len(entries))
	}
	if _, ok := entries[0].ContextMap()["context_error"]; !ok {
		t.Error("payment aborted log missing context_error")
	}
}
