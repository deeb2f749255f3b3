package webhook

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
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/lukasai/lukas/internal/clock"
	"github.com/lukasai/lukas/internal/config"
	"github.com/lukasai/lukas/internal/payment/adapters"
	"github.com/lukasai/lukas/internal/payment/adapters/stripe"
	"github.com/lukasai/lukas/internal/payment/adapters/toss"
	paymentdomain "github.com/lukasai/lukas/internal/payment/domain"
	"github.com/lukasai/lukas/internal/payment/repository"
	planrepository "github.com/lukasai/lukas/internal/plan/repository"
	planservice "github.com/lukasai/lukas/internal/plan/service"
	subscriptiondomain "github.com/lukasai/lukas/internal/subscription/domain"
	subscriptionrepository "github.com/lukasai/lukas/internal/subscription/repository"
	subscriptionservice "github.com/lukasai/lukas/internal/subscription/service"
	"github.com/lukasai/lukas/internal/testsupport"
)

const stripeSecret = "whsec_test"

var testNow = time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC)

type fixture struct {
	db            *gorm.DB
	svc           paymentdomain.Service
	subscriptions subscriptiondomain.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithPayments(t, config.PaymentsConfig{
		StripeWebhookSecret: stripeSecret,
		SignatureTolerance:  5 * time.Minute,
	})
}

func newFixtureWithPayments(t *testing.T, payments config.PaymentsConfig) *fixture {
	t.Helper()
	db := testsupport.OpenDB(t)
	node := testsupport.MustNode(t)
	fake := clock.NewFakeClock(testNow)
	authz := testsupport.Authz(t)

	plans := planservice.NewService(planservice.ServiceParam{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: fake,
		Authz: authz,
		Repo:  planrepository.Provide(),
		Plans: config.NewStaticPlanConfigHolder(config.DefaultPlansConfig()),
	})
	require.NoError(t, plans.SyncFromConfig(context.Background()))

	subscriptions := subscriptionservice.NewService(subscriptionservice.ServiceParam{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: fake,
		Authz: authz,
		Repo:  subscriptionrepository.Provide(),
		Plans: plans,
	})

	svc := NewService(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: fake,
		Cfg:   config.Config{Payments: payments},
		Repo:          repository.Provide(),
		Adapters:      adapters.NewRegistry(stripe.NewFactory(), toss.NewFactory()),
		Subscriptions: subscriptions,
	})
	return &fixture{db: db, svc: svc, subscriptions: subscriptions}
}

func stripeSubscriptionEvent(t *testing.T, eventID, status string, userID uuid.UUID) []byte {
	t.Helper()
	payload, err := json.Marshal(map[string]any{
		"id":      eventID,
		"type":    "customer.subscription.updated",
		"created": testNow.Unix(),
		"data": map[string]any{"object": map[string]any{
			"id":                   "sub_123",
			"customer":             "cus_123",
			"status":               status,
			"current_period_start": testNow.Add(-time.Hour).Unix(),
			"current_period_end":   testNow.AddDate(0, 1, 0).Unix(),
			"metadata":             map[string]any{"user_id": userID.String(), "plan_code": "pro"},
		}},
	})
	require.NoError(t, err)
	return payload
}

func stripeHeaders(secret string, payload []byte) http.Header {
	ts := testNow.Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(fmt.Sprintf("%d.%s", ts, payload)))
	h := http.Header{}
	h.Set("Stripe-Signature", fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil))))
	return h
}

func TestStripeWebhookActivatesSubscription(t *testing.T) {
	f := newFixture(t)
	userID := uuid.New()
	payload := stripeSubscriptionEvent(t, "evt_1", "active", userID)

	result, err := f.svc.HandleWebhook(context.Background(), "stripe", payload, stripeHeaders(stripeSecret, payload))
	require.NoError(t, err)
	assert.Equal(t, paymentdomain.WebhookStatusProcessed, result.Status)

	active, err := f.subscriptions.GetActive(context.Background(), userID)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, "pro", active.PlanCode)
	assert.Equal(t, result.SubscriptionID, active.ID.String())
	assert.EqualValues(t, 1, testsupport.CountRows(t, f.db, "payment_events"))
}

func TestStripeWebhookBadSignatureRejected(t *testing.T) {
	f := newFixture(t)
	userID := uuid.New()
	payload := stripeSubscriptionEvent(t, "evt_1", "active", userID)

	_, err := f.svc.HandleWebhook(context.Background(), "stripe", payload, stripeHeaders("wrong", payload))
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidSignature)

	active, err := f.subscriptions.GetActive(context.Background(), userID)
	require.NoError(t, err)
	assert.Nil(t, active)
	assert.EqualValues(t, 0, testsupport.CountRows(t, f.db, "payment_events"))
}

func TestStripeWebhookDuplicateDelivery(t *testing.T) {
	f := newFixture(t)
	userID := uuid.New()
	payload := stripeSubscriptionEvent(t, "evt_1", "active", userID)
	headers := stripeHeaders(stripeSecret, payload)

	_, err := f.svc.HandleWebhook(context.Background(), "stripe", payload, headers)
	require.NoError(t, err)
	result, err := f.svc.HandleWebhook(context.Background(), "stripe", payload, headers)
	require.NoError(t, err)
	assert.Equal(t, paymentdomain.WebhookStatusDuplicate, result.Status)
	assert.EqualValues(t, 1, testsupport.CountRows(t, f.db, "user_subscriptions"))
}

func TestStripeWebhookCancellation(t *testing.T) {
	f := newFixture(t)
	userID := uuid.New()

	created := stripeSubscriptionEvent(t, "evt_1", "active", userID)
	_, err := f.svc.HandleWebhook(context.Background(), "stripe", created, stripeHeaders(stripeSecret, created))
	require.NoError(t, err)

	cancelled := stripeSubscriptionEvent(t, "evt_2", "canceled", userID)
	_, err = f.svc.HandleWebhook(context.Background(), "stripe", cancelled, stripeHeaders(stripeSecret, cancelled))
	require.NoError(t, err)

	active, err := f.subscriptions.GetActive(context.Background(), userID)
	require.NoError(t, err)
	assert.Nil(t, active)
}

func TestWebhookIgnoredEventSucceeds(t *testing.T) {
	f := newFixture(t)
	payload := []byte(`{"id":"evt_9","type":"invoice.paid","data":{"object":{}}}`)

	result, err := f.svc.HandleWebhook(context.Background(), "stripe", payload, stripeHeaders(stripeSecret, payload))
	require.NoError(t, err)
	assert.Equal(t, paymentdomain.WebhookStatusIgnored, result.Status)
	assert.EqualValues(t, 0, testsupport.CountRows(t, f.db, "payment_events"))
}

func TestWebhookUnknownSubscriberLeavesEventRetryable(t *testing.T) {
	f := newFixture(t)
	payload := stripeSubscriptionEvent(t, "evt_1", "active", uuid.Nil)
	headers := stripeHeaders(stripeSecret, payload)

	_, err := f.svc.HandleWebhook(context.Background(), "stripe", payload, headers)
	assert.ErrorIs(t, err, subscriptiondomain.ErrUnknownSubscriber)

	// the stored delivery is not marked processed, so a retry is applied again
	_, err = f.svc.HandleWebhook(context.Background(), "stripe", payload, headers)
	assert.ErrorIs(t, err, subscriptiondomain.ErrUnknownSubscriber)
	assert.EqualValues(t, 1, testsupport.CountRows(t, f.db, "payment_events"))
}

func TestWebhookProviderErrors(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.HandleWebhook(context.Background(), "", []byte(`{}`), http.Header{})
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidProvider)

	_, err = f.svc.HandleWebhook(context.Background(), "paypal", []byte(`{}`), http.Header{})
	assert.ErrorIs(t, err, paymentdomain.ErrProviderNotFound)

	_, err = f.svc.HandleWebhook(context.Background(), "toss", []byte(`{}`), http.Header{})
	assert.ErrorIs(t, err, paymentdomain.ErrProviderNotConfigured)

	_, err = f.svc.HandleWebhook(context.Background(), "stripe", []byte(`not json`), http.Header{})
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidPayload)
}

func TestTossPaymentDoneOpensMonthlyPeriod(t *testing.T) {
	f := newFixtureWithPayments(t, config.PaymentsConfig{
		TossWebhookSecret:  "toss_secret",
		SignatureTolerance: 5 * time.Minute,
	})
	userID := uuid.New()
	payload, err := json.Marshal(map[string]any{
		"eventType": "PAYMENT_STATUS_CHANGED",
		"createdAt": testNow.Format(time.RFC3339),
		"data": map[string]any{
			"paymentKey":  "pay_1",
			"orderId":     "order_1",
			"customerKey": "cust_1",
			"status":      "DONE",
			"approvedAt":  testNow.Format(time.RFC3339),
			"metadata":    map[string]string{"user_id": userID.String(), "plan_code": "pro"},
		},
	})
	require.NoError(t, err)

	transmitted := testNow.Format(time.RFC3339Nano)
	headers := http.Header{}
	headers.Set("tosspayments-webhook-signature", "v1:"+toss.Sign("toss_secret", payload, transmitted))
	headers.Set("tosspayments-webhook-transmission-time", transmitted)

	result, err := f.svc.HandleWebhook(context.Background(), "TOSS", payload, headers)
	require.NoError(t, err)
	assert.Equal(t, paymentdomain.WebhookStatusProcessed, result.Status)
	assert.Equal(t, "pay_1:DONE", result.EventID)

	active, err := f.subscriptions.GetActive(context.Background(), userID)
	require.NoError(t, err)
	require.NotNil(t, active)
	require.NotNil(t, active.CurrentPeriodEnd)
	assert.True(t, active.CurrentPeriodEnd.Equal(testNow.AddDate(0, 1, 0)))
}
