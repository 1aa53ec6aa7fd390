// Package main is the globalmapd CLI entry point: it loads a
// backend.Config, builds a frontend.Server around a backend.GlobalMapping,
// and serves it over gRPC, mirroring the teacher's cli/viam/main.go shape
// (urfave/cli/v2 App with flag-driven logger selection) and the graceful
// os/signal shutdown used by module/testmodule/main.go.
package main

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"google.golang.org/grpc"

	"github.com/dedkryl/glim-dense-cloud/backend"
	"github.com/dedkryl/glim-dense-cloud/frontend"
	"github.com/dedkryl/glim-dense-cloud/logging"
)

const (
	flagConfig   = "config"
	flagListen   = "listen"
	flagLoadPath = "load-path"
	flagDebug    = "debug"
)

func main() {
	app := &cli.App{
		Name:  "globalmapd",
		Usage: "serve a LiDAR-IMU global mapping backend over gRPC",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    flagConfig,
				Aliases: []string{"c"},
				Usage:   "load backend.Config from `FILE` (JSON); defaults to backend.DefaultConfig()",
			},
			&cli.StringFlag{
				Name:    flagListen,
				Aliases: []string{"l"},
				Value:   "localhost:8542",
				Usage:   "gRPC listen address",
			},
			&cli.StringFlag{
				Name:  flagLoadPath,
				Usage: "reload a previously Saved graph directory at startup",
			},
			&cli.BoolFlag{
				Name:    flagDebug,
				Aliases: []string{"vvv"},
				Usage:   "enable debug logging",
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	var logger logging.Logger
	if c.Bool(flagDebug) {
		logger = logging.NewDebugLogger("globalmapd")
	} else {
		logger = logging.NewLogger("globalmapd")
	}

	cfg, err := loadConfig(c.String(flagConfig))
	if err != nil {
		return err
	}
	warnings, err := cfg.Validate(c.String(flagConfig))
	if err != nil {
		return errors.Wrap(err, "invalid configuration")
	}
	for _, w := range warnings {
		logger.Warn(w)
	}

	srv := frontend.NewServer(cfg, logger)

	if loadPath := c.String(flagLoadPath); loadPath != "" {
		resp, err := srv.Load(c.Context, &frontend.LoadRequest{Path: loadPath})
		if err != nil {
			return errors.Wrapf(err, "loading graph from %q", loadPath)
		}
		if resp.NeedsRecover {
			logger.Warnf("graph at %q required recovery on load", loadPath)
		}
	}

	addr := c.String(flagListen)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrapf(err, "listening on %q", addr)
	}

	grpcServer := grpc.NewServer()
	frontend.RegisterServer(grpcServer, srv)

	serveErr := make(chan error, 1)
	go func() {
		logger.Infof("serving globalmapd on %s", lis.Addr())
		serveErr <- grpcServer.Serve(lis)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case err := <-serveErr:
		return err
	case sig := <-sigCh:
		logger.Infof("received %s, shutting down", sig)
	}

	grpcServer.GracefulStop()
	return nil
}

func loadConfig(path string) (backend.Config, error) {
	if path == "" {
		return backend.DefaultConfig(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return backend.Config{}, errors.Wrapf(err, "reading config %q", path)
	}
	cfg := backend.DefaultConfig()
	if err := json.Unmarshal(data, &cfg); err != nil {
		return backend.Config{}, errors.Wrapf(err, "parsing config %q", path)
	}
	return cfg, nil
}
