package assistant

import (
	"go.uber.org/fx"

	assistantdomain "github.com/lukasai/lukas/internal/assistant/domain"
	"github.com/lukasai/lukas/internal/assistant/provider"
	"github.com/lukasai/lukas/internal/assistant/service"
)

var Module = fx.Module("assistant.service",
	fx.Provide(fx.Annotate(provider.NewRegistry, fx.As(new(assistantdomain.Providers)))),
	fx.Provide(service.NewService),
)
