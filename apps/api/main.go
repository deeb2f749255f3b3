package main

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"

	"github.com/lukasai/lukas/internal/aggregate"
	"github.com/lukasai/lukas/internal/assistant"
	"github.com/lukasai/lukas/internal/audit"
	"github.com/lukasai/lukas/internal/auth"
	"github.com/lukasai/lukas/internal/authorization"
	"github.com/lukasai/lukas/internal/clock"
	"github.com/lukasai/lukas/internal/config"
	"github.com/lukasai/lukas/internal/observability"
	"github.com/lukasai/lukas/internal/payment"
	"github.com/lukasai/lukas/internal/plan"
	"github.com/lukasai/lukas/internal/providers"
	"github.com/lukasai/lukas/internal/quota"
	"github.com/lukasai/lukas/internal/ratelimit"
	"github.com/lukasai/lukas/internal/report"
	"github.com/lukasai/lukas/internal/server"
	"github.com/lukasai/lukas/internal/subscription"
	"github.com/lukasai/lukas/internal/usage"
	"github.com/lukasai/lukas/pkg/db"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		ratelimit.Module,
		providers.Module,

		// Core dependencies for API
		auth.Module, // bearer token verification
		authorization.Module,
		plan.Module,
		subscription.Module,
		usage.Module,
		aggregate.Module,
		quota.Module,
		report.Module,
		assistant.Module,
		payment.Module,
		audit.Module,

		fx.Provide(server.NewEngine),
		fx.Provide(server.NewServer),
		fx.Invoke(func(s *server.Server) {
			s.RegisterRoutes()
		}),
		fx.Invoke(server.RunHTTP),
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
