package service

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"go.uber.org/fx"
	"go.uber.org/zap"

	assistantdomain "github.com/lukasai/lukas/internal/assistant/domain"
	"github.com/lukasai/lukas/internal/assistant/pricing"
	"github.com/lukasai/lukas/internal/assistant/prompt"
	"github.com/lukasai/lukas/internal/auth"
	"github.com/lukasai/lukas/internal/authorization"
	"github.com/lukasai/lukas/internal/clock"
	"github.com/lukasai/lukas/internal/config"
	"github.com/lukasai/lukas/internal/observability/metrics"
	quotadomain "github.com/lukasai/lukas/internal/quota/domain"
	"github.com/lukasai/lukas/internal/ratelimit"
	usagedomain "github.com/lukasai/lukas/internal/usage/domain"
)

const (
	defaultMaxTokens = 1024
	maxMaxTokens     = 8192
	maxTemperature   = 2.0
)

type ServiceParam struct {
	fx.In

	Config     config.Config
	Log        *zap.Logger
	Clock      clock.Clock
	Authz      authorization.Service
	Quota      quotadomain.Service
	Usage      usagedomain.Service
	Providers  assistantdomain.Providers
	Limiter    *ratelimit.AssistantLimiter `optional:"true"`
	ObsMetrics *metrics.Metrics            `optional:"true"`
}

type Service struct {
	log *zap.Logger

	clock     clock.Clock
	authz     authorization.Service
	quota     quotadomain.Service
	usage     usagedomain.Service
	providers assistantdomain.Providers
	limiter   *ratelimit.AssistantLimiter
	metrics   *metrics.Metrics
	pricing   pricing.Table
	timeout   time.Duration
}

func NewService(p ServiceParam) assistantdomain.Service {
	return &Service{
		log: p.Log.Named("assistant.service"),

		clock:     p.Clock,
		authz:     p.Authz,
		quota:     p.Quota,
		usage:     p.Usage,
		providers: p.Providers,
		limiter:   p.Limiter,
		metrics:   p.ObsMetrics,
		pricing:   pricing.Default,
		timeout:   p.Config.Providers.Timeout,
	}
}

type call struct {
	userID    uuid.UUID
	feature   usagedomain.Feature
	provider  assistantdomain.Provider
	request   assistantdomain.CompletionRequest
	decision  quotadomain.Decision
	rawUserID string
}

func (s *Service) Invoke(ctx context.Context, actor auth.Principal, req assistantdomain.InvokeRequest) (*assistantdomain.InvokeResponse, error) {
	c, err := s.prepare(actor, req)
	if err != nil {
		return nil, err
	}
	if err := s.authz.AuthorizeUser(ctx, actor, c.userID, authorization.ObjectAssistant, authorization.ActionInvoke); err != nil {
		return nil, err
	}

	if res, err := s.limiter.AllowUser(ctx, c.userID); err == nil && !res.Allowed {
		return nil, assistantdomain.ErrRateLimited
	}

	decision, err := s.quota.Guard(ctx, actor, c.rawUserID, string(c.feature))
	if err != nil {
		return nil, err
	}
	c.decision = decision
	if !decision.Limited() || decision.Advisory {
		return s.execute(ctx, c)
	}

	// Limited plans re-check under the user+feature lock so concurrent calls
	// cannot both pass the last remaining unit.
	var resp *assistantdomain.InvokeResponse
	err = s.limiter.WithQuotaLock(ctx, c.userID, string(c.feature), func(ctx context.Context) error {
		decision, err := s.quota.Guard(ctx, actor, c.rawUserID, string(c.feature))
		if err != nil {
			return err
		}
		c.decision = decision
		resp, err = s.execute(ctx, c)
		return err
	})
	if errors.Is(err, ratelimit.ErrLockHeld) {
		return nil, assistantdomain.ErrQuotaBusy
	}
	return resp, err
}

func (s *Service) prepare(actor auth.Principal, req assistantdomain.InvokeRequest) (*call, error) {
	rawUserID := strings.TrimSpace(req.UserID)
	userID := actor.UserID
	if rawUserID != "" {
		parsed, err := uuid.Parse(rawUserID)
		if err != nil || parsed == uuid.Nil {
			return nil, assistantdomain.ErrInvalidUser
		}
		userID = parsed
	}
	if userID == uuid.Nil {
		return nil, assistantdomain.ErrInvalidUser
	}

	feature, ok := usagedomain.ParseFeature(req.Feature)
	if !ok {
		return nil, assistantdomain.ErrInvalidFeature
	}

	messages := make([]assistantdomain.Message, 0, len(req.Messages))
	for _, m := range req.Messages {
		content := strings.TrimSpace(m.Content)
		if content == "" {
			continue
		}
		role := strings.ToLower(strings.TrimSpace(m.Role))
		switch role {
		case "":
			role = assistantdomain.RoleUser
		case assistantdomain.RoleUser, assistantdomain.RoleAssistant, assistantdomain.RoleSystem:
		default:
			return nil, assistantdomain.ErrInvalidMessages
		}
		messages = append(messages, assistantdomain.Message{Role: role, Content: content})
	}
	if len(messages) == 0 {
		return nil, assistantdomain.ErrInvalidMessages
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}
	if maxTokens < 0 || maxTokens > maxMaxTokens {
		return nil, assistantdomain.ErrInvalidMaxTokens
	}
	if t := req.Temperature; t != nil && (math.IsNaN(*t) || *t < 0 || *t > maxTemperature) {
		return nil, assistantdomain.ErrInvalidTemperature
	}

	provider, ok := s.providers.Get(req.Provider)
	if !ok {
		return nil, assistantdomain.ErrInvalidProvider
	}
	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = provider.DefaultModel()
	}

	system, err := prompt.System(feature, req.Context)
	if err != nil {
		return nil, assistantdomain.ErrInvalidFeature.With(err)
	}

	return &call{
		userID:   userID,
		feature:  feature,
		provider: provider,
		request: assistantdomain.CompletionRequest{
			Model:       model,
			System:      system,
			Messages:    messages,
			MaxTokens:   maxTokens,
			Temperature: req.Temperature,
		},
		rawUserID: userID.String(),
	}, nil
}

// execute calls the provider once and records the outcome. Provider errors
// are recorded as failed usage and surfaced as ErrProviderUnavailable.
func (s *Service) execute(ctx context.Context, c *call) (*assistantdomain.InvokeResponse, error) {
	callCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := s.clock.Now()
	completion, callErr := c.provider.Complete(callCtx, c.request)
	elapsed := s.clock.Now().Sub(start)
	s.metrics.RecordProviderCall(ctx, c.provider.Name(), string(c.feature), callErr == nil)

	model := c.request.Model
	if callErr == nil && completion.Model != "" {
		model = completion.Model
	}
	cost := 0.0
	if callErr == nil {
		cost = s.pricing.Cost(c.provider.Name(), model, completion.InputTokens, completion.OutputTokens)
	}

	success := callErr == nil
	metadata := map[string]any{"max_tokens": c.request.MaxTokens}
	if callErr != nil {
		metadata["error"] = truncate(callErr.Error(), 500)
	}
	event, recordErr := s.usage.Record(ctx, auth.System(), usagedomain.RecordRequest{
		UserID:         c.rawUserID,
		Feature:        string(c.feature),
		Model:          model,
		Provider:       c.provider.Name(),
		InputTokens:    completion.InputTokens,
		OutputTokens:   completion.OutputTokens,
		Cost:           cost,
		ResponseTimeMS: elapsed.Milliseconds(),
		Success:        &success,
		IdempotencyKey: "assistant_" + ulid.Make().String(),
		Metadata:       metadata,
		OccurredAt:     start,
	})
	if recordErr != nil {
		s.log.Error("failed to record assistant usage",
			zap.String("user_id", c.rawUserID),
			zap.String("feature", string(c.feature)),
			zap.String("provider", c.provider.Name()),
			zap.Error(recordErr),
		)
	}

	if callErr != nil {
		s.log.Warn("ai provider call failed",
			zap.String("provider", c.provider.Name()),
			zap.String("model", model),
			zap.Duration("elapsed", elapsed),
			zap.Error(callErr),
		)
		return nil, assistantdomain.ErrProviderUnavailable.With(callErr)
	}

	resp := &assistantdomain.InvokeResponse{
		Content:        completion.Content,
		Provider:       c.provider.Name(),
		Model:          model,
		InputTokens:    completion.InputTokens,
		OutputTokens:   completion.OutputTokens,
		Cost:           cost,
		ResponseTimeMS: elapsed.Milliseconds(),
		Quota:          afterCall(c.decision),
	}
	if event != nil {
		resp.UsageEventID = event.ID
	}
	return resp, nil
}

// afterCall reflects the call just made in the decision returned to the caller.
func afterCall(d quotadomain.Decision) *quotadomain.Decision {
	d.Used++
	d.Remaining, d.Exceeded = quotadomain.Decide(d.Limit, d.Used)
	d.Allowed = !d.Exceeded || d.Advisory
	return &d
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
