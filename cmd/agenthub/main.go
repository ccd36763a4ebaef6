package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/shiftbd/agenthub/internal/config"
	"github.com/shiftbd/agenthub/internal/migration"
	"github.com/shiftbd/agenthub/internal/notify"
	"github.com/shiftbd/agenthub/internal/ratelimit"
	"github.com/shiftbd/agenthub/internal/request"
	"github.com/shiftbd/agenthub/internal/server"
	"github.com/shiftbd/agenthub/internal/voucher"
	"github.com/shiftbd/agenthub/pkg/db"
	"github.com/shiftbd/agenthub/pkg/log"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		log.Module,
		fx.Provide(RegisterSnowflake),
		fx.Provide(config.NewBenefitPolicyHolder),
		db.Module,
		migration.Module,

		// Functional domains
		notify.Module,
		ratelimit.Module,
		voucher.Module,
		request.Module,
		server.Module,
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
