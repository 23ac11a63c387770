// Copyright 2024 The go-ethereum Authors
// This file is part of the go-ethereum library.
//
// The go-ethereum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-ethereum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-ethereum library. If not, see <http://www.gnu.org/licenses/>.

// Command bundleaggregator runs the Bundle Service standalone: it loads a
// TOML configuration, dials the chain, opens the on-disk bundle table, and
// runs the service until SIGINT or SIGTERM. It exposes no intake transport
// for new bundles; rows already in the table are aggregated and submitted.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/metrics"
	"github.com/ethereum/go-ethereum/metrics/exp"
	"github.com/urfave/cli/v2"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/ri-dev-git/bls-wallet/aggregator"
	"github.com/ri-dev-git/bls-wallet/chainadapter"
	"github.com/ri-dev-git/bls-wallet/config"
	"github.com/ri-dev-git/bls-wallet/table"
)

var configFlag = &cli.StringFlag{
	Name:    "config",
	Aliases: []string{"c"},
	Usage:   "path to the aggregator's TOML configuration file",
	Value:   "bundleaggregator.toml",
}

func main() {
	app := &cli.App{
		Name:  "bundleaggregator",
		Usage: "BLS bundle aggregation service",
		Flags: []cli.Flag{configFlag},
		Action: func(c *cli.Context) error {
			return run(c.String(configFlag.Name))
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	setupLogging(cfg.Log)
	setupMetrics(cfg.Metrics)

	tbl, err := table.Open(cfg.TableDataDir)
	if err != nil {
		return fmt.Errorf("open bundle table: %w", err)
	}
	defer tbl.Close()

	backend, err := dialBackend(cfg)
	if err != nil {
		return fmt.Errorf("dial chain: %w", err)
	}
	defer backend.Close()

	adapter := chainadapter.NewAdapter(
		backend,
		common.HexToAddress(cfg.Chain.GatewayAddress),
		common.HexToAddress(cfg.Chain.UtilitiesAddress),
		backend.Address(),
		cfg.Chain.MeasureNativeAsset,
		cfg.Rewards.Address(),
	)

	svc, err := aggregator.NewService(cfg, adapter, tbl)
	if err != nil {
		return fmt.Errorf("start aggregator service: %w", err)
	}

	log.Info("bundleaggregator: running", "tableDir", cfg.TableDataDir, "rpc", cfg.Chain.RPCEndpoint)
	waitForSignal()
	log.Info("bundleaggregator: shutting down")
	svc.Stop()
	return nil
}

func loadConfig(path string) (*config.Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		log.Warn("bundleaggregator: no config file found, using defaults", "path", path)
		return config.Default(), nil
	}
	return config.Load(path)
}

func dialBackend(cfg *config.Config) (*chainadapter.RPCBackend, error) {
	var tipCap, feeCap *big.Int
	if cfg.Chain.GasTipCapWei != "" {
		tipCap, _ = new(big.Int).SetString(cfg.Chain.GasTipCapWei, 10)
	}
	if cfg.Chain.GasFeeCapWei != "" {
		feeCap, _ = new(big.Int).SetString(cfg.Chain.GasFeeCapWei, 10)
	}
	multicallAddr := common.HexToAddress(cfg.Chain.UtilitiesAddress)
	return chainadapter.DialRPCBackend(context.Background(), cfg.Chain.RPCEndpoint, cfg.Chain.PrivateKeyHex, cfg.Chain.ChainID, multicallAddr, tipCap, feeCap)
}

func setupLogging(cfg config.LogConfig) {
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = log.JSONHandler(logOutput(cfg))
	} else {
		handler = log.NewTerminalHandler(logOutput(cfg), false)
	}
	glogger := log.NewGlogHandler(handler)
	glogger.Verbosity(parseLogLevel(cfg.Level))
	log.SetDefault(log.NewLogger(glogger))
}

// parseLogLevel maps a config level name onto the slog levels the log
// package's handlers and GlogHandler.Verbosity operate on, defaulting to
// LevelInfo for anything unrecognized.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "trace":
		return log.LevelTrace
	case "debug":
		return log.LevelDebug
	case "warn":
		return log.LevelWarn
	case "error":
		return log.LevelError
	case "crit":
		return log.LevelCrit
	default:
		return log.LevelInfo
	}
}

func logOutput(cfg config.LogConfig) io.Writer {
	if cfg.FilePath == "" {
		return os.Stderr
	}
	return &lumberjack.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    cfg.MaxSizeMB,
		MaxAge:     cfg.MaxAgeDays,
		MaxBackups: cfg.MaxBackups,
	}
}

func setupMetrics(cfg config.MetricsConfig) {
	if !cfg.Enabled {
		return
	}
	metrics.Enable()
	if cfg.HTTPAddress != "" {
		log.Info("bundleaggregator: serving metrics", "address", cfg.HTTPAddress)
		exp.Setup(cfg.HTTPAddress)
	}
}

func waitForSignal() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
}
