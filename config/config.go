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

// Package config loads the aggregator's startup configuration (§3's
// Configuration block, plus the chain/server wiring a running process
// needs) from a TOML file, the way cmd/geth's own default_config.go loads
// its settings.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/naoina/toml"
)

// RewardKind mirrors rewardmodel.Kind in TOML-friendly string form.
type RewardKind string

const (
	RewardNative RewardKind = "ether"
	RewardToken  RewardKind = "token"
)

// RewardConfig is the TOML shape of §3's `rewards` field. The reward type
// is split into Kind ("ether" or "token") and, for tokens, a separate
// TokenAddr; a combined "token:0x…" Kind value is not recognized.
type RewardConfig struct {
	Kind      RewardKind
	TokenAddr string // hex address, only meaningful when Kind == RewardToken
	PerGas    string // decimal uint256, e.g. "1000000000"
	PerByte   string // decimal uint256, e.g. "100"
}

// Address parses TokenAddr, returning the zero address when Kind is native.
func (r *RewardConfig) Address() common.Address {
	if r.Kind != RewardToken {
		return common.Address{}
	}
	return common.HexToAddress(r.TokenAddr)
}

// PerGasUint256 parses PerGas into a uint256, defaulting to zero on an
// empty string.
func (r *RewardConfig) PerGasUint256() (*uint256.Int, error) {
	return parseDecimalUint256(r.PerGas)
}

// PerByteUint256 parses PerByte into a uint256, defaulting to zero on an
// empty string.
func (r *RewardConfig) PerByteUint256() (*uint256.Int, error) {
	return parseDecimalUint256(r.PerByte)
}

func parseDecimalUint256(s string) (*uint256.Int, error) {
	if s == "" {
		return new(uint256.Int), nil
	}
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, fmt.Errorf("config: invalid decimal uint256 %q: %w", s, err)
	}
	return v, nil
}

// Config is the aggregator's complete startup configuration.
type Config struct {
	// Aggregation tuning (§3 Configuration).
	BundleQueryLimit           int
	MaxAggregationSize         int
	MaxAggregationDelayMillis  int
	MaxUnconfirmedAggregations int
	MaxEligibilityDelay        uint64
	Rewards                    RewardConfig

	// Chain-adapter wiring, not named in spec.md but required to stand up
	// a ContractBackend and Adapter (§4.2).
	Chain ChainConfig

	// Storage.
	TableDataDir string

	// Submission.
	SubmissionTimeout time.Duration

	// Logging/metrics surface (ambient stack).
	Log     LogConfig
	Metrics MetricsConfig
}

// ChainConfig names the on-chain collaborators the adapter calls through.
type ChainConfig struct {
	RPCEndpoint        string
	GatewayAddress     string
	UtilitiesAddress   string
	AggregatorAddress  string
	MeasureNativeAsset bool

	// PrivateKeyHex signs the aggregator's own submission transactions. Kept
	// out of the RPC endpoint's trust boundary deliberately: the node only
	// ever receives already-signed transactions over SendTransaction.
	PrivateKeyHex string
	ChainID       uint64
	GasTipCapWei  string // decimal wei; empty defaults to 1 gwei
	GasFeeCapWei  string // decimal wei; empty defaults to 30 gwei
}

// LogConfig controls the log handler setup in cmd/bundleaggregator.
type LogConfig struct {
	Level      string // "trace", "debug", "info", "warn", "error", "crit"
	Format     string // "terminal" or "json"
	FilePath   string // rotating file sink path; empty disables it
	MaxSizeMB  int
	MaxAgeDays int
	MaxBackups int
}

// MetricsConfig controls whether go-ethereum/metrics collection runs.
type MetricsConfig struct {
	Enabled     bool
	HTTPAddress string
}

// Default returns the baseline configuration a fresh deployment starts
// from; every field here can be overridden by the loaded TOML file.
func Default() *Config {
	return &Config{
		BundleQueryLimit:           256,
		MaxAggregationSize:         64,
		MaxAggregationDelayMillis:  2000,
		MaxUnconfirmedAggregations: 4,
		MaxEligibilityDelay:        64,
		Rewards:                    RewardConfig{Kind: RewardNative},
		TableDataDir:               "bundletable",
		SubmissionTimeout:          30 * time.Second,
		Log:                        LogConfig{Level: "info", Format: "terminal", MaxSizeMB: 100, MaxAgeDays: 14, MaxBackups: 5},
		Metrics:                    MetricsConfig{Enabled: true, HTTPAddress: "127.0.0.1:6060"},
	}
}

// Load reads a TOML configuration file at path, overlaying it on Default.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}
