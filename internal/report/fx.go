package report

import (
	"go.uber.org/fx"

	reportdomain "github.com/lukasai/lukas/internal/report/domain"
	"github.com/lukasai/lukas/internal/report/service"
	"github.com/lukasai/lukas/pkg/repository"
)

var Module = fx.Module("report.service",
	fx.Provide(repository.ProvideStore[reportdomain.Suggestion]),
	fx.Provide(service.NewService),
)
