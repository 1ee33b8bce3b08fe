package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/paramstore/internal/audit"
	"github.com/smallbiznis/paramstore/internal/authorization"
	"github.com/smallbiznis/paramstore/internal/cache"
	"github.com/smallbiznis/paramstore/internal/clock"
	"github.com/smallbiznis/paramstore/internal/config"
	"github.com/smallbiznis/paramstore/internal/events"
	"github.com/smallbiznis/paramstore/internal/identity"
	"github.com/smallbiznis/paramstore/internal/migration"
	"github.com/smallbiznis/paramstore/internal/observability"
	"github.com/smallbiznis/paramstore/internal/parameter"
	"github.com/smallbiznis/paramstore/internal/ratelimit"
	"github.com/smallbiznis/paramstore/internal/server"
	"github.com/smallbiznis/paramstore/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,
		cache.Module,
		events.Module,

		// Functional Domains
		identity.Module,
		audit.Module,
		parameter.Module,
		authorization.Module,
		ratelimit.Module,

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
