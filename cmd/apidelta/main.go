package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/emenda-labs/apidelta/core/cli"
	"github.com/emenda-labs/apidelta/core/forest"
	golangdriver "github.com/emenda-labs/apidelta/drivers/golang"
	javadriver "github.com/emenda-labs/apidelta/drivers/java"
	"github.com/emenda-labs/apidelta/pkg/forestcache"
)

const version = "0.1.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	level := new(slog.LevelVar)
	level.Set(slog.LevelInfo)
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	loadJava := func(ctx context.Context, artifact string, opts cli.LoadOptions) (*forest.Forest, error) {
		d := javadriver.NewDriver(javadriver.WithJobs(opts.Jobs), javadriver.WithLogger(opts.Logger))
		return d.BuildForest(ctx, artifact)
	}

	cache, err := forestcache.OpenDefault("apidelta")
	if err != nil {
		slog.Warn("Forest cache disabled", "error", err)
	}
	loadGo := func(ctx context.Context, artifact string, opts cli.LoadOptions) (*forest.Forest, error) {
		d := golangdriver.NewDriver(
			golangdriver.WithCache(cache),
			golangdriver.WithJobs(opts.Jobs),
			golangdriver.WithLogger(opts.Logger),
			golangdriver.WithModule(opts.Module),
		)
		return d.BuildForest(ctx, artifact)
	}

	root, global := cli.NewRootCmd(version, level)
	compareCmd, shared := cli.NewCompareCmd()
	compareCmd.AddCommand(cli.NewCompareJavaCmd(global, shared, loadJava))
	compareCmd.AddCommand(cli.NewCompareGoCmd(global, shared, loadGo))
	root.AddCommand(compareCmd)

	if err := root.ExecuteContext(ctx); err != nil {
		var fail *cli.FailError
		if errors.As(err, &fail) {
			os.Exit(1)
		}
		os.Exit(2)
	}
}
