package config

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// PlanDefinition is a subscription plan as declared in plans.yml.
// Limits only lists capped features; an absent or negative limit is unlimited.
type PlanDefinition struct {
	Code         string           `mapstructure:"code"`
	DisplayName  string           `mapstructure:"displayName"`
	Price        float64          `mapstructure:"price"`
	Currency     string           `mapstructure:"currency"`
	BillingCycle string           `mapstructure:"billingCycle"`
	Limits       map[string]int64 `mapstructure:"limits"`
}

type PlansConfig struct {
	Fallback string           `mapstructure:"fallback"`
	Plans    []PlanDefinition `mapstructure:"plans"`
}

// FallbackPlan returns the definition used when a user has no usable subscription.
func (c PlansConfig) FallbackPlan() PlanDefinition {
	for _, p := range c.Plans {
		if p.Code == c.Fallback {
			return p
		}
	}
	return DefaultPlansConfig().Plans[0]
}

func DefaultPlansConfig() PlansConfig {
	return PlansConfig{
		Fallback: "basic",
		Plans: []PlanDefinition{
			{
				Code:         "basic",
				DisplayName:  "Basic",
				Price:        0,
				Currency:     "USD",
				BillingCycle: "monthly",
				Limits: map[string]int64{
					"chat":              100,
					"document_qa":       50,
					"document_analysis": 50,
					"meeting_summary":   25,
					"workflow":          10,
				},
			},
			{
				Code:         "pro",
				DisplayName:  "Pro",
				Price:        29,
				Currency:     "USD",
				BillingCycle: "monthly",
				Limits:       map[string]int64{},
			},
		},
	}
}

type PlanConfigHolder struct {
	current atomic.Value // holds PlansConfig
}

// NewStaticPlanConfigHolder wraps a fixed config, mostly for tests.
func NewStaticPlanConfigHolder(cfg PlansConfig) *PlanConfigHolder {
	holder := &PlanConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func NewPlanConfigHolder(log *zap.Logger) (*PlanConfigHolder, error) {
	log = log.Named("config.plans")
	v := viper.New()

	v.SetConfigName("plans")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/lukas/config")
	v.AddConfigPath("/etc/lukas")
	v.AddConfigPath(".")

	v.SetEnvPrefix("LUKAS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	fileFound := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileFound = false
	}

	cfg := DefaultPlansConfig()
	if fileFound {
		var parsed PlansConfig
		if err := v.Unmarshal(&parsed); err != nil {
			return nil, err
		}
		if err := ValidatePlansConfig(parsed); err != nil {
			return nil, err
		}
		cfg = parsed
	}

	holder := NewStaticPlanConfigHolder(cfg)
	if !fileFound {
		log.Info("plans.yml not found, using built-in plans")
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated PlansConfig
		if err := v.Unmarshal(&updated); err != nil {
			log.Warn("plans reload failed", zap.Error(err))
			return
		}
		if err := ValidatePlansConfig(updated); err != nil {
			log.Warn("invalid plans config ignored", zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("plans reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

func (h *PlanConfigHolder) Get() PlansConfig {
	return h.current.Load().(PlansConfig)
}

func ValidatePlansConfig(cfg PlansConfig) error {
	if len(cfg.Plans) == 0 {
		return errors.New("plans cannot be empty")
	}
	seen := map[string]struct{}{}
	fallbackFound := false
	for _, p := range cfg.Plans {
		code := strings.TrimSpace(p.Code)
		if code == "" {
			return errors.New("plan code is required")
		}
		if _, dup := seen[code]; dup {
			return fmt.Errorf("duplicate plan code %q", code)
		}
		seen[code] = struct{}{}
		if p.Price < 0 {
			return fmt.Errorf("plan %q has a negative price", code)
		}
		if code == cfg.Fallback {
			fallbackFound = true
		}
	}
	if !fallbackFound {
		return fmt.Errorf("fallback plan %q is not declared", cfg.Fallback)
	}
	return nil
}
