// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package main

import (
	"fmt"
	"os"
	"runtime/pprof"

	"github.com/VictoriaMetrics/metrics"
	"github.com/chainstate/statecache/common/logger"
	"github.com/chainstate/statecache/config"
	"github.com/chainstate/statecache/statecache"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

var (
	configFileFlag = cli.StringFlag{
		Name:  "config",
		Usage: "an optional config file (yaml, toml or json); STATECACHE_* environment variables take precedence",
	}
	logLevelFlag = cli.StringFlag{
		Name:  "log-level",
		Usage: "overrides the configured log level (debug, info, warn, error)",
	}
	cpuProfileFlag = cli.StringFlag{
		Name:  "cpu-profile",
		Usage: "records a CPU profile in the given file",
	}
	printMetricsFlag = cli.BoolFlag{
		Name:  "print-metrics",
		Usage: "prints the collected metrics in Prometheus format on exit",
	}
	dirFlag = cli.StringFlag{
		Name:     "dir",
		Usage:    "the snapshot directory",
		Required: true,
	}
	blocksFlag = cli.UintFlag{
		Name:  "blocks",
		Usage: "the number of blocks to simulate",
		Value: 100,
	}
)

// environment is the set of collaborators shared by all commands.
type environment struct {
	config config.Config
	log    *zap.Logger
}

func setup(ctx *cli.Context) (*environment, error) {
	v := config.NewViper()
	if level := ctx.String(logLevelFlag.Name); level != "" {
		v.Set(config.KeyLogLevel, level)
	}
	cfg, err := config.Load(v, ctx.String(configFileFlag.Name))
	if err != nil {
		return nil, err
	}
	log, err := logger.New(cfg.LogLevel, cfg.Development)
	if err != nil {
		return nil, err
	}
	return &environment{config: cfg, log: log}, nil
}

func (e *environment) newStateCache() (*statecache.StateCache, error) {
	return statecache.New(e.config, statecache.Options{Logger: e.log})
}

// run executes the given command body with a prepared environment,
// handling profiling and metric output.
func run(body func(*cli.Context, *environment) error) cli.ActionFunc {
	return func(ctx *cli.Context) (err error) {
		env, err := setup(ctx)
		if err != nil {
			return err
		}
		defer func() {
			_ = env.log.Sync()
		}()
		if profile := ctx.String(cpuProfileFlag.Name); profile != "" {
			if err := startCPUProfile(profile); err != nil {
				return err
			}
			defer pprof.StopCPUProfile()
		}
		if ctx.Bool(printMetricsFlag.Name) {
			defer metrics.WritePrometheus(os.Stdout, false)
		}
		return body(ctx, env)
	}
}

func startCPUProfile(profileName string) error {
	f, err := os.Create(profileName)
	if err != nil {
		return fmt.Errorf("could not create CPU profile: %s", err)
	}
	if err := pprof.StartCPUProfile(f); err != nil {
		return fmt.Errorf("could not start CPU profile: %s", err)
	}
	return nil
}
