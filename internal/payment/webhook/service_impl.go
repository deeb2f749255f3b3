package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/lukasai/lukas/internal/clock"
	"github.com/lukasai/lukas/internal/config"
	"github.com/lukasai/lukas/internal/observability/metrics"
	"github.com/lukasai/lukas/internal/payment/adapters"
	paymentdomain "github.com/lukasai/lukas/internal/payment/domain"
	subscriptiondomain "github.com/lukasai/lukas/internal/subscription/domain"
)

type Params struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	GenID         *snowflake.Node
	Clock         clock.Clock
	Cfg           config.Config
	Repo          paymentdomain.Repository
	Adapters      *adapters.Registry
	Subscriptions subscriptiondomain.Service
	ObsMetrics    *metrics.Metrics `optional:"true"`
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID         *snowflake.Node
	clock         clock.Clock
	repo          paymentdomain.Repository
	adapters      *adapters.Registry
	subscriptions subscriptiondomain.Service
	metrics       *metrics.Metrics

	secrets map[string]string
	cfg     config.PaymentsConfig
}

func NewService(p Params) paymentdomain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("payment.webhook"),

		genID:         p.GenID,
		clock:         p.Clock,
		repo:          p.Repo,
		adapters:      p.Adapters,
		subscriptions: p.Subscriptions,
		metrics:       p.ObsMetrics,

		secrets: map[string]string{
			"stripe": p.Cfg.Payments.StripeWebhookSecret,
			"toss":   p.Cfg.Payments.TossWebhookSecret,
		},
		cfg: p.Cfg.Payments,
	}
}

// HandleWebhook verifies, dedupes and applies one delivery. A delivery that
// failed while applying stays unprocessed and is applied again on retry.
func (s *Service) HandleWebhook(ctx context.Context, provider string, payload []byte, headers http.Header) (paymentdomain.WebhookResult, error) {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if provider == "" {
		return paymentdomain.WebhookResult{}, paymentdomain.ErrInvalidProvider
	}
	if !s.adapters.ProviderExists(provider) {
		return paymentdomain.WebhookResult{}, paymentdomain.ErrProviderNotFound
	}
	if !json.Valid(payload) {
		return paymentdomain.WebhookResult{}, paymentdomain.ErrInvalidPayload
	}

	secret := strings.TrimSpace(s.secrets[provider])
	if secret == "" {
		return paymentdomain.WebhookResult{}, paymentdomain.ErrProviderNotConfigured
	}
	adapter, err := s.adapters.NewAdapter(provider, paymentdomain.AdapterConfig{
		WebhookSecret: secret,
		Tolerance:     s.cfg.SignatureTolerance,
		Now:           s.clock.Now,
	})
	if err != nil {
		return paymentdomain.WebhookResult{}, err
	}

	if err := adapter.Verify(ctx, payload, headers); err != nil {
		s.log.Warn("payment webhook signature rejected", zap.String("provider", provider))
		return paymentdomain.WebhookResult{}, err
	}

	event, err := adapter.Parse(ctx, payload)
	if err != nil {
		if errors.Is(err, paymentdomain.ErrEventIgnored) {
			s.log.Debug("payment webhook ignored", zap.String("provider", provider))
			return paymentdomain.WebhookResult{Status: paymentdomain.WebhookStatusIgnored}, nil
		}
		return paymentdomain.WebhookResult{}, err
	}
	s.metrics.RecordPaymentEvent(ctx, provider, event.EventType)

	record, duplicate, err := s.store(ctx, provider, event, payload)
	if err != nil {
		return paymentdomain.WebhookResult{}, err
	}
	result := paymentdomain.WebhookResult{EventID: event.ProviderEventID}
	if duplicate {
		result.Status = paymentdomain.WebhookStatusDuplicate
		return result, nil
	}

	subscription, err := s.subscriptions.ApplyProviderEvent(ctx, event.Subscription)
	if err != nil {
		s.log.Error("failed to apply payment webhook",
			zap.String("provider", provider),
			zap.String("provider_event_id", event.ProviderEventID),
			zap.String("event_type", event.EventType),
			zap.Error(err),
		)
		return paymentdomain.WebhookResult{}, err
	}

	if err := s.repo.MarkProcessed(ctx, s.db, record.ID, s.clock.Now()); err != nil {
		return paymentdomain.WebhookResult{}, err
	}

	s.log.Info("payment webhook applied",
		zap.String("provider", provider),
		zap.String("provider_event_id", event.ProviderEventID),
		zap.String("subscription_id", subscription.ID.String()),
		zap.String("status", string(subscription.Status)),
	)
	result.Status = paymentdomain.WebhookStatusProcessed
	result.SubscriptionID = subscription.ID.String()
	return result, nil
}

// store inserts the delivery and reports whether it was already processed.
func (s *Service) store(ctx context.Context, provider string, event *paymentdomain.WebhookEvent, payload []byte) (*paymentdomain.EventRecord, bool, error) {
	record := &paymentdomain.EventRecord{
		ID:              s.genID.Generate(),
		Provider:        provider,
		ProviderEventID: event.ProviderEventID,
		EventType:       event.EventType,
		Payload:         datatypes.JSON(payload),
		ReceivedAt:      s.clock.Now(),
	}
	inserted, err := s.repo.InsertEvent(ctx, s.db, record)
	if err != nil {
		return nil, false, err
	}
	if inserted {
		return record, false, nil
	}

	existing, err := s.repo.FindEvent(ctx, s.db, provider, event.ProviderEventID)
	if err != nil {
		return nil, false, err
	}
	if existing == nil {
		return nil, false, errors.New("payment event vanished after conflict")
	}
	return existing, existing.ProcessedAt != nil, nil
}
