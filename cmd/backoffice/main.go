package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/backoffice/internal/authorization"
	"github.com/smallbiznis/backoffice/internal/billingevent"
	"github.com/smallbiznis/backoffice/internal/clock"
	"github.com/smallbiznis/backoffice/internal/config"
	"github.com/smallbiznis/backoffice/internal/discount"
	"github.com/smallbiznis/backoffice/internal/invoice"
	"github.com/smallbiznis/backoffice/internal/migration"
	"github.com/smallbiznis/backoffice/internal/observability"
	"github.com/smallbiznis/backoffice/internal/plan"
	"github.com/smallbiznis/backoffice/internal/quote"
	"github.com/smallbiznis/backoffice/internal/redisclient"
	"github.com/smallbiznis/backoffice/internal/scheduler"
	"github.com/smallbiznis/backoffice/internal/server"
	"github.com/smallbiznis/backoffice/internal/subscription"
	"github.com/smallbiznis/backoffice/internal/tokenbalance"
	"github.com/smallbiznis/backoffice/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,
		clock.Module,
		redisclient.Module,

		// Functional Domains
		authorization.Module,
		billingevent.Module,
		plan.Module,
		tokenbalance.Module,
		subscription.Module,
		invoice.Module,
		quote.Module,
		discount.Module,

		server.Module,
		scheduler.Module,
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.SnowflakeNode)
}
