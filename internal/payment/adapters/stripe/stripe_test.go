package stripe

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	paymentdomain "github.com/lukasai/lukas/internal/payment/domain"
	subscriptiondomain "github.com/lukasai/lukas/internal/subscription/domain"
)

var fixedNow = time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC)

func newAdapter(t *testing.T, secret string) paymentdomain.Adapter {
	t.Helper()
	adapter, err := NewFactory().NewAdapter(paymentdomain.AdapterConfig{
		WebhookSecret: secret,
		Tolerance:     5 * time.Minute,
		Now:           func() time.Time { return fixedNow },
	})
	require.NoError(t, err)
	return adapter
}

func TestVerifySignature(t *testing.T) {
	secret := "whsec_test"
	payload := []byte(`{"id":"evt_123","type":"customer.subscription.updated","data":{"object":{}}}`)
	adapter := newAdapter(t, secret)

	header := http.Header{}
	header.Set("Stripe-Signature", buildStripeSignatureHeader(secret, payload, fixedNow.Unix()))
	if err := adapter.Verify(context.Background(), payload, header); err != nil {
		t.Fatalf("expected valid signature, got error: %v", err)
	}

	header.Set("Stripe-Signature", buildStripeSignatureHeader("wrong", payload, fixedNow.Unix()))
	assert.ErrorIs(t, adapter.Verify(context.Background(), payload, header), paymentdomain.ErrInvalidSignature)

	header.Set("Stripe-Signature", buildStripeSignatureHeader(secret, payload, fixedNow.Add(-10*time.Minute).Unix()))
	assert.ErrorIs(t, adapter.Verify(context.Background(), payload, header), paymentdomain.ErrInvalidSignature)

	assert.ErrorIs(t, adapter.Verify(context.Background(), payload, http.Header{}), paymentdomain.ErrInvalidSignature)
}

func TestNewAdapterRequiresSecret(t *testing.T) {
	_, err := NewFactory().NewAdapter(paymentdomain.AdapterConfig{WebhookSecret: " "})
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidConfig)
}

func TestParseSubscriptionEvents(t *testing.T) {
	userID := uuid.New()
	periodStart := fixedNow.Add(-24 * time.Hour).Unix()
	periodEnd := fixedNow.Add(29 * 24 * time.Hour).Unix()

	tests := []struct {
		name       string
		eventType  string
		status     string
		wantStatus subscriptiondomain.SubscriptionStatus
	}{
		{"created", "customer.subscription.created", "active", subscriptiondomain.SubscriptionStatusActive},
		{"trialing", "customer.subscription.updated", "trialing", subscriptiondomain.SubscriptionStatusActive},
		{"canceled", "customer.subscription.updated", "canceled", subscriptiondomain.SubscriptionStatusCancelled},
		{"unpaid", "customer.subscription.updated", "unpaid", subscriptiondomain.SubscriptionStatusExpired},
		{"deleted", "customer.subscription.deleted", "active", subscriptiondomain.SubscriptionStatusCancelled},
	}
	adapter := newAdapter(t, "whsec_test")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := mustJSON(t, map[string]any{
				"id":      "evt_" + tt.name,
				"type":    tt.eventType,
				"created": fixedNow.Unix(),
				"data": map[string]any{"object": map[string]any{
					"id":                   "sub_1",
					"customer":             "cus_1",
					"status":               tt.status,
					"current_period_start": periodStart,
					"current_period_end":   periodEnd,
					"metadata":             map[string]any{"user_id": userID.String()},
					"items": map[string]any{"data": []any{
						map[string]any{"price": map[string]any{"lookup_key": "pro"}},
					}},
				}},
			})

			event, err := adapter.Parse(context.Background(), payload)
			require.NoError(t, err)
			assert.Equal(t, "evt_"+tt.name, event.ProviderEventID)
			assert.Equal(t, tt.eventType, event.EventType)
			assert.Equal(t, tt.wantStatus, event.Subscription.Status)
			assert.Equal(t, "sub_1", event.Subscription.ExternalSubscriptionID)
			assert.Equal(t, "cus_1", event.Subscription.ExternalCustomerID)
			assert.Equal(t, userID, event.Subscription.UserID)
			assert.Equal(t, "pro", event.Subscription.PlanCode)
			assert.Equal(t, periodEnd, event.Subscription.PeriodEnd.Unix())
		})
	}
}

func TestParseIgnoresOtherEvents(t *testing.T) {
	adapter := newAdapter(t, "whsec_test")

	_, err := adapter.Parse(context.Background(), []byte(`{"id":"evt_1","type":"charge.succeeded","data":{"object":{}}}`))
	assert.ErrorIs(t, err, paymentdomain.ErrEventIgnored)

	_, err = adapter.Parse(context.Background(), []byte(`{"id":"evt_2","type":"customer.subscription.updated","data":{"object":{"id":"sub_1","status":"incomplete"}}}`))
	assert.ErrorIs(t, err, paymentdomain.ErrEventIgnored)

	_, err = adapter.Parse(context.Background(), []byte(`not json`))
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidPayload)
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return b
}

func buildStripeSignatureHeader(secret string, payload []byte, timestamp int64) string {
	signedPayload := fmt.Sprintf("%d.%s", timestamp, string(payload))
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(signedPayload))
	return fmt.Sprintf("t=%d,v1=%s", timestamp, hex.EncodeToString(mac.Sum(nil)))
}
