package main

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"

	"github.com/lukasai/lukas/internal/accountingexport"
	"github.com/lukasai/lukas/internal/authorization"
	"github.com/lukasai/lukas/internal/clock"
	"github.com/lukasai/lukas/internal/config"
	"github.com/lukasai/lukas/internal/observability"
	"github.com/lukasai/lukas/internal/plan"
	"github.com/lukasai/lukas/internal/ratelimit"
	"github.com/lukasai/lukas/internal/scheduler"
	"github.com/lukasai/lukas/internal/subscription"
	"github.com/lukasai/lukas/pkg/db"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		ratelimit.Module, // job locks across replicas

		// Domain services required by scheduler
		authorization.Module,
		plan.Module,
		subscription.Module,

		// No server module!
		scheduler.Module,
		accountingexport.Module,
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
