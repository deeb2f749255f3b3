package subscription

import (
	"go.uber.org/fx"

	"github.com/lukasai/lukas/internal/subscription/repository"
	"github.com/lukasai/lukas/internal/subscription/service"
)

var Module = fx.Module("subscription.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
