package main

import (
	"context"
	"net/url"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/footprint/internal/server"
	"github.com/desertthunder/footprint/internal/web"
)

// Serve runs the HTTP API until the process is interrupted.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	router, err := r.router(ctx)
	if err != nil {
		return err
	}

	addr := r.config.Server.Addr()
	if cmd.IsSet("addr") {
		addr = cmd.String("addr")
	}
	return server.Serve(ctx, addr, router, r.logger)
}

// router wires the API, the static assets and /metrics.
func (r *Runner) router(ctx context.Context) (*server.BasicRouter, error) {
	tracker, err := r.open(ctx)
	if err != nil {
		return nil, err
	}

	opts := server.APIOptions{Tracker: tracker, Title: r.config.Export.Title, Logger: r.logger}
	if tracker.Dataset() != nil {
		exports, err := r.exportEngine(ctx)
		if err != nil {
			return nil, err
		}
		opts.Exports = exports
		opts.Snapshot = r.snapshotter(tracker.Dataset())
	} else {
		r.logger.Warn("serving without the city dataset; map, snapshot and export endpoints are disabled")
	}

	routerOpts := server.Options{API: server.NewAPI(opts), Registry: r.registry, Logger: r.logger}
	if dir := localAssetDir(r.config.Assets.BaseURL); dir != "" {
		assets, err := web.NewAssets(dir)
		if err != nil {
			r.logger.Warn("static assets not served", "error", err)
		} else {
			routerOpts.Assets = assets
		}
	}
	return server.NewRouter(routerOpts), nil
}

// localAssetDir returns the directory behind a file:// or plain path asset base, or "" for remote bases.
func localAssetDir(base string) string {
	switch {
	case base == "":
		return ""
	case strings.HasPrefix(base, "http://"), strings.HasPrefix(base, "https://"):
		return ""
	case strings.HasPrefix(base, "file://"):
		u, err := url.Parse(base)
		if err != nil {
			return ""
		}
		return u.Path
	}
	if info, err := os.Stat(base); err != nil || !info.IsDir() {
		return ""
	}
	return base
}
