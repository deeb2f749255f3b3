package payment

import (
	"go.uber.org/fx"

	"github.com/lukasai/lukas/internal/payment/adapters"
	"github.com/lukasai/lukas/internal/payment/adapters/stripe"
	"github.com/lukasai/lukas/internal/payment/adapters/toss"
	"github.com/lukasai/lukas/internal/payment/repository"
	"github.com/lukasai/lukas/internal/payment/webhook"
)

var Module = fx.Module("payment.service",
	fx.Provide(repository.Provide),
	fx.Provide(func() *adapters.Registry {
		return adapters.NewRegistry(
			stripe.NewFactory(),
			toss.NewFactory(),
		)
	}),
	fx.Provide(webhook.NewService),
)
