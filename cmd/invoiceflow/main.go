package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/invoiceflow/internal/clock"
	"github.com/smallbiznis/invoiceflow/internal/config"
	"github.com/smallbiznis/invoiceflow/internal/migration"
	"github.com/smallbiznis/invoiceflow/internal/observability"
	"github.com/smallbiznis/invoiceflow/internal/server"
	"github.com/smallbiznis/invoiceflow/pkg/db"
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

		// Schema and bootstrap admin run before the listener starts.
		migration.Module,
		server.Module,
	)
	app.Run()
}

// RegisterSnowflake gives every replica its own generator; SNOWFLAKE_NODE
// must be unique per process.
func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.SnowflakeNode)
}
