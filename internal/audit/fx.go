package audit

import (
	"go.uber.org/fx"

	"github.com/lukasai/lukas/internal/audit/repository"
	"github.com/lukasai/lukas/internal/audit/service"
)

var Module = fx.Module("audit.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
