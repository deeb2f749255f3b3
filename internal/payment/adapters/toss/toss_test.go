package toss

import (
	"context"
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

func newAdapter(t *testing.T) paymentdomain.Adapter {
	t.Helper()
	adapter, err := NewFactory().NewAdapter(paymentdomain.AdapterConfig{
		WebhookSecret: "toss_secret",
		Tolerance:     5 * time.Minute,
		Now:           func() time.Time { return fixedNow },
	})
	require.NoError(t, err)
	return adapter
}

func signedHeaders(secret string, payload []byte, at time.Time) http.Header {
	transmitted := at.Format(time.RFC3339)
	h := http.Header{}
	h.Set(headerTransmissionTime, transmitted)
	h.Set(headerSignature, "v1:bogus,v1:"+Sign(secret, payload, transmitted))
	return h
}

func TestVerify(t *testing.T) {
	adapter := newAdapter(t)
	payload := []byte(`{"eventType":"PAYMENT_STATUS_CHANGED"}`)

	assert.NoError(t, adapter.Verify(context.Background(), payload, signedHeaders("toss_secret", payload, fixedNow)))
	assert.ErrorIs(t, adapter.Verify(context.Background(), payload, signedHeaders("other", payload, fixedNow)), paymentdomain.ErrInvalidSignature)
	assert.ErrorIs(t, adapter.Verify(context.Background(), payload, signedHeaders("toss_secret", payload, fixedNow.Add(-time.Hour))), paymentdomain.ErrInvalidSignature)
	assert.ErrorIs(t, adapter.Verify(context.Background(), []byte(`{}`), signedHeaders("toss_secret", payload, fixedNow)), paymentdomain.ErrInvalidSignature)
}

func TestParseDonePayment(t *testing.T) {
	adapter := newAdapter(t)
	userID := uuid.New()
	payload := []byte(`{
		"eventType": "PAYMENT_STATUS_CHANGED",
		"createdAt": "2026-03-15T12:00:00.000000",
		"data": {
			"paymentKey": "pay_1",
			"orderId": "order_1",
			"customerKey": "cust_1",
			"status": "DONE",
			"approvedAt": "2026-03-15T21:00:00+09:00",
			"metadata": {"user_id": "` + userID.String() + `", "plan_code": "pro"}
		}
	}`)

	event, err := adapter.Parse(context.Background(), payload)
	require.NoError(t, err)
	assert.Equal(t, "pay_1:DONE", event.ProviderEventID)
	assert.Equal(t, subscriptiondomain.SubscriptionStatusActive, event.Subscription.Status)
	assert.Equal(t, "cust_1", event.Subscription.ExternalSubscriptionID)
	assert.Equal(t, userID, event.Subscription.UserID)
	assert.Equal(t, "pro", event.Subscription.PlanCode)
	assert.True(t, event.Subscription.PeriodStart.Equal(fixedNow))
	assert.True(t, event.Subscription.PeriodEnd.Equal(time.Date(2026, time.April, 15, 12, 0, 0, 0, time.UTC)))
}

func TestParseCancelledAndIgnored(t *testing.T) {
	adapter := newAdapter(t)

	event, err := adapter.Parse(context.Background(), []byte(`{"eventType":"PAYMENT_STATUS_CHANGED","data":{"paymentKey":"pay_2","orderId":"o","status":"CANCELED"}}`))
	require.NoError(t, err)
	assert.Equal(t, subscriptiondomain.SubscriptionStatusCancelled, event.Subscription.Status)
	assert.Equal(t, "o", event.Subscription.ExternalSubscriptionID)

	_, err = adapter.Parse(context.Background(), []byte(`{"eventType":"PAYMENT_STATUS_CHANGED","data":{"paymentKey":"pay_3","status":"WAITING_FOR_DEPOSIT"}}`))
	assert.ErrorIs(t, err, paymentdomain.ErrEventIgnored)

	_, err = adapter.Parse(context.Background(), []byte(`{"eventType":"DEPOSIT_CALLBACK","data":{}}`))
	assert.ErrorIs(t, err, paymentdomain.ErrEventIgnored)

	_, err = adapter.Parse(context.Background(), []byte(`{"eventType":"PAYMENT_STATUS_CHANGED","data":{"status":"DONE"}}`))
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidEvent)
}
