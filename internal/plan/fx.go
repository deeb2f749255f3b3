package plan

import (
	"go.uber.org/fx"

	"github.com/lukasai/lukas/internal/plan/repository"
	"github.com/lukasai/lukas/internal/plan/service"
)

var Module = fx.Module("plan.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
