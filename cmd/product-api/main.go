package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/dimitrije/product-api/cmd/product-api/internal/commands"
)

var (
	version = "dev"
	cli     struct {
		Debug   bool                `help:"Enable debug mode."`
		Version kong.VersionFlag    `help:"Print the version and exit."`
		Serve   commands.ServeCmd   `cmd:"" default:"1" help:"Start the product API server."`
		Migrate commands.MigrateCmd `cmd:"" help:"Apply PostgreSQL schema migrations."`
		Token   commands.TokenCmd   `cmd:"" help:"Mint a development access token."`
	}
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmd := kong.Parse(&cli,
		kong.Name("product-api"),
		kong.Description("Owned, versioned product API with real-time sync."),
		kong.Vars{
			"version": version,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))
	err := cmd.Run(&commands.Globals{Debug: cli.Debug, Version: version})
	cmd.FatalIfErrorf(err)
}
