package usage

import (
	"go.uber.org/fx"

	"github.com/lukasai/lukas/internal/usage/repository"
	"github.com/lukasai/lukas/internal/usage/service"
)

var Module = fx.Module("usage.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
