// Package toss verifies and parses Toss Payments webhooks. Toss has no
// subscription object, so an approved payment opens a one month period.
package toss

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	paymentdomain "github.com/lukasai/lukas/internal/payment/domain"
	subscriptiondomain "github.com/lukasai/lukas/internal/subscription/domain"
)

const (
	providerName = "toss"

	headerSignature        = "tosspayments-webhook-signature"
	headerTransmissionTime = "tosspayments-webhook-transmission-time"

	eventPaymentStatusChanged = "PAYMENT_STATUS_CHANGED"
)

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) Provider() string {
	return providerName
}

func (f *Factory) NewAdapter(cfg paymentdomain.AdapterConfig) (paymentdomain.Adapter, error) {
	secret := strings.TrimSpace(cfg.WebhookSecret)
	if secret == "" {
		return nil, paymentdomain.ErrInvalidConfig
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Adapter{secret: secret, tolerance: cfg.Tolerance, now: now}, nil
}

type Adapter struct {
	secret    string
	tolerance time.Duration
	now       func() time.Time
}

// Verify checks v1:<base64 hmac> signatures over "payload:transmission-time".
func (a *Adapter) Verify(ctx context.Context, payload []byte, headers http.Header) error {
	sigHeader := strings.TrimSpace(headers.Get(headerSignature))
	transmitted := strings.TrimSpace(headers.Get(headerTransmissionTime))
	if sigHeader == "" || transmitted == "" {
		return paymentdomain.ErrInvalidSignature
	}
	if a.tolerance > 0 {
		at, err := time.Parse(time.RFC3339Nano, transmitted)
		if err != nil {
			return paymentdomain.ErrInvalidSignature
		}
		age := a.now().Sub(at)
		if age > a.tolerance || age < -a.tolerance {
			return paymentdomain.ErrInvalidSignature
		}
	}

	expected := Sign(a.secret, payload, transmitted)
	for _, part := range strings.Split(sigHeader, ",") {
		signature, ok := strings.CutPrefix(strings.TrimSpace(part), "v1:")
		if !ok {
			continue
		}
		if hmac.Equal([]byte(signature), []byte(expected)) {
			return nil
		}
	}
	return paymentdomain.ErrInvalidSignature
}

// Sign returns the base64 signature Toss sends for payload at transmissionTime.
func Sign(secret string, payload []byte, transmissionTime string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(payload)
	_, _ = mac.Write([]byte(":" + transmissionTime))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

type tossEvent struct {
	EventType string      `json:"eventType"`
	CreatedAt string      `json:"createdAt"`
	Data      tossPayment `json:"data"`
}

type tossPayment struct {
	PaymentKey  string            `json:"paymentKey"`
	OrderID     string            `json:"orderId"`
	CustomerKey string            `json:"customerKey"`
	Status      string            `json:"status"`
	ApprovedAt  string            `json:"approvedAt"`
	Metadata    map[string]string `json:"metadata"`
}

func (a *Adapter) Parse(ctx context.Context, payload []byte) (*paymentdomain.WebhookEvent, error) {
	var event tossEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, paymentdomain.ErrInvalidPayload
	}
	if event.EventType != eventPaymentStatusChanged {
		return nil, paymentdomain.ErrEventIgnored
	}
	payment := event.Data
	if strings.TrimSpace(payment.PaymentKey) == "" {
		return nil, paymentdomain.ErrInvalidEvent
	}

	sub := subscriptiondomain.ProviderEvent{
		Provider:               providerName,
		ExternalSubscriptionID: externalSubscriptionID(payment),
		ExternalCustomerID:     strings.TrimSpace(payment.CustomerKey),
		PlanCode:               strings.TrimSpace(payment.Metadata["plan_code"]),
	}
	if raw := strings.TrimSpace(payment.Metadata["user_id"]); raw != "" {
		userID, err := uuid.Parse(raw)
		if err != nil {
			return nil, paymentdomain.ErrInvalidEvent
		}
		sub.UserID = userID
	}

	occurredAt := parseTime(event.CreatedAt, a.now)
	switch payment.Status {
	case "DONE":
		sub.Status = subscriptiondomain.SubscriptionStatusActive
		sub.PeriodStart = parseTime(payment.ApprovedAt, func() time.Time { return occurredAt })
		sub.PeriodEnd = sub.PeriodStart.AddDate(0, 1, 0)
	case "CANCELED", "PARTIAL_CANCELED":
		sub.Status = subscriptiondomain.SubscriptionStatusCancelled
	default:
		return nil, paymentdomain.ErrEventIgnored
	}

	return &paymentdomain.WebhookEvent{
		Provider:        providerName,
		ProviderEventID: payment.PaymentKey + ":" + payment.Status,
		EventType:       event.EventType + "." + payment.Status,
		OccurredAt:      occurredAt,
		Subscription:    sub,
	}, nil
}

func externalSubscriptionID(p tossPayment) string {
	for _, candidate := range []string{p.Metadata["subscription_id"], p.CustomerKey, p.OrderID} {
		if v := strings.TrimSpace(candidate); v != "" {
			return v
		}
	}
	return ""
}

// parseTime accepts RFC3339 and the offsetless form Toss uses for createdAt.
func parseTime(raw string, fallback func() time.Time) time.Time {
	raw = strings.TrimSpace(raw)
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC()
		}
	}
	return fallback().UTC()
}
