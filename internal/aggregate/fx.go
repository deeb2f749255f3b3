package aggregate

import (
	"go.uber.org/fx"

	"github.com/lukasai/lukas/internal/aggregate/repository"
	"github.com/lukasai/lukas/internal/aggregate/service"
)

var Module = fx.Module("aggregate.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
