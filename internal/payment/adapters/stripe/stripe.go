package stripe

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	paymentdomain "github.com/lukasai/lukas/internal/payment/domain"
	subscriptiondomain "github.com/lukasai/lukas/internal/subscription/domain"
)

const providerName = "stripe"

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
	return &Adapter{webhookSecret: secret, tolerance: cfg.Tolerance, now: now}, nil
}

type Adapter struct {
	webhookSecret string
	tolerance     time.Duration
	now           func() time.Time
}

// Verify checks the Stripe-Signature header: t=<unix>,v1=<hex hmac of "t.payload">.
func (a *Adapter) Verify(ctx context.Context, payload []byte, headers http.Header) error {
	sigHeader := strings.TrimSpace(headers.Get("Stripe-Signature"))
	if sigHeader == "" {
		return paymentdomain.ErrInvalidSignature
	}

	timestamp, signatures, err := parseStripeSignature(sigHeader)
	if err != nil {
		return paymentdomain.ErrInvalidSignature
	}
	if a.tolerance > 0 {
		unix, err := strconv.ParseInt(timestamp, 10, 64)
		if err != nil {
			return paymentdomain.ErrInvalidSignature
		}
		age := a.now().Sub(time.Unix(unix, 0))
		if age > a.tolerance || age < -a.tolerance {
			return paymentdomain.ErrInvalidSignature
		}
	}

	signedPayload := fmt.Sprintf("%s.%s", timestamp, string(payload))
	mac := hmac.New(sha256.New, []byte(a.webhookSecret))
	_, _ = mac.Write([]byte(signedPayload))
	expected := hex.EncodeToString(mac.Sum(nil))

	for _, signature := range signatures {
		if hmac.Equal([]byte(signature), []byte(expected)) {
			return nil
		}
	}
	return paymentdomain.ErrInvalidSignature
}

func (a *Adapter) Parse(ctx context.Context, payload []byte) (*paymentdomain.WebhookEvent, error) {
	var event stripeEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, paymentdomain.ErrInvalidPayload
	}
	if strings.TrimSpace(event.ID) == "" {
		return nil, paymentdomain.ErrInvalidEvent
	}

	eventType := strings.TrimSpace(event.Type)
	switch eventType {
	case "customer.subscription.created", "customer.subscription.updated", "customer.subscription.deleted":
	default:
		return nil, paymentdomain.ErrEventIgnored
	}

	var sub stripeSubscription
	if err := json.Unmarshal(event.Data.Object, &sub); err != nil {
		return nil, paymentdomain.ErrInvalidPayload
	}
	if strings.TrimSpace(sub.ID) == "" {
		return nil, paymentdomain.ErrInvalidEvent
	}

	status, ok := mapStatus(sub.Status)
	if eventType == "customer.subscription.deleted" {
		status, ok = subscriptiondomain.SubscriptionStatusCancelled, true
	}
	if !ok {
		return nil, paymentdomain.ErrEventIgnored
	}

	// metadata user_id is only required when the subscription is new; the
	// subscription service rejects unknown subscribers.
	var userID uuid.UUID
	if raw := readMetadataValue(sub.Metadata, "user_id"); raw != "" {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			return nil, paymentdomain.ErrInvalidEvent
		}
		userID = parsed
	}

	return &paymentdomain.WebhookEvent{
		Provider:        providerName,
		ProviderEventID: event.ID,
		EventType:       eventType,
		OccurredAt:      timestamp(event.Created, a.now),
		Subscription: subscriptiondomain.ProviderEvent{
			Provider:               providerName,
			ExternalSubscriptionID: sub.ID,
			ExternalCustomerID:     sub.Customer,
			UserID:                 userID,
			PlanCode:               planCode(sub),
			Status:                 status,
			PeriodStart:            unixOrZero(sub.CurrentPeriodStart),
			PeriodEnd:              unixOrZero(sub.CurrentPeriodEnd),
		},
	}, nil
}

type stripeEvent struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Created int64           `json:"created"`
	Data    stripeEventData `json:"data"`
}

type stripeEventData struct {
	Object json.RawMessage `json:"object"`
}

type stripeSubscription struct {
	ID                 string         `json:"id"`
	Customer           string         `json:"customer"`
	Status             string         `json:"status"`
	CurrentPeriodStart int64          `json:"current_period_start"`
	CurrentPeriodEnd   int64          `json:"current_period_end"`
	Metadata           map[string]any `json:"metadata"`
	Items              struct {
		Data []struct {
			Price struct {
				LookupKey string         `json:"lookup_key"`
				Metadata  map[string]any `json:"metadata"`
			} `json:"price"`
		} `json:"data"`
	} `json:"items"`
}

// mapStatus treats past_due as still active; stripe retries the charge
// before cancelling.
func mapStatus(raw string) (subscriptiondomain.SubscriptionStatus, bool) {
	switch strings.TrimSpace(raw) {
	case "active", "trialing", "past_due":
		return subscriptiondomain.SubscriptionStatusActive, true
	case "canceled":
		return subscriptiondomain.SubscriptionStatusCancelled, true
	case "unpaid", "incomplete_expired":
		return subscriptiondomain.SubscriptionStatusExpired, true
	default:
		return "", false
	}
}

func planCode(sub stripeSubscription) string {
	if code := readMetadataValue(sub.Metadata, "plan_code"); code != "" {
		return code
	}
	for _, item := range sub.Items.Data {
		if code := readMetadataValue(item.Price.Metadata, "plan_code"); code != "" {
			return code
		}
		if code := strings.TrimSpace(item.Price.LookupKey); code != "" {
			return code
		}
	}
	return ""
}

func parseStripeSignature(header string) (string, []string, error) {
	var timestamp string
	signatures := []string{}
	for _, part := range strings.Split(header, ",") {
		keyValue := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(keyValue) != 2 {
			continue
		}
		key := strings.TrimSpace(keyValue[0])
		value := strings.TrimSpace(keyValue[1])
		if key == "t" {
			timestamp = value
		}
		if key == "v1" {
			signatures = append(signatures, value)
		}
	}
	if timestamp == "" || len(signatures) == 0 {
		return "", nil, errors.New("invalid_signature")
	}
	return timestamp, signatures, nil
}

func timestamp(value int64, now func() time.Time) time.Time {
	if value == 0 {
		return now().UTC()
	}
	return time.Unix(value, 0).UTC()
}

func unixOrZero(value int64) time.Time {
	if value == 0 {
		return time.Time{}
	}
	return time.Unix(value, 0).UTC()
}

func readMetadataValue(metadata map[string]any, key string) string {
	value, ok := metadata[key]
	if !ok {
		return ""
	}
	switch cast := value.(type) {
	case string:
		return strings.TrimSpace(cast)
	case float64:
		return strconv.FormatFloat(cast, 'f', -1, 64)
	case json.Number:
		return cast.String()
	}
	return ""
}
