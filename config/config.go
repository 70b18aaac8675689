// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/chainstate/statecache/common"
	"github.com/chainstate/statecache/pipeline"
	"github.com/chainstate/statecache/storage"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
)

// EnvPrefix is the prefix of environment variables overriding config keys.
const EnvPrefix = "statecache"

// Config keys as used in config files and, upper-cased and prefixed with
// STATECACHE_, in the environment.
const (
	KeyHistorySize   = "history-size"
	KeyGracePeriod   = "grace-period"
	KeyPruneInterval = "prune-interval"
	KeyHashRetention = "hash-retention"
	KeyCodec         = "codec"
	KeyLogLevel      = "log-level"
	KeyDevelopment   = "development"
)

// Config collects the tunables of a state cache.
type Config struct {
	HistorySize   uint64
	GracePeriod   uint64
	PruneInterval uint64
	HashRetention uint64
	Codec         string
	LogLevel      string
	Development   bool
}

// Default returns the configuration used if nothing else is specified.
func Default() Config {
	return Config{
		HistorySize:   60,
		GracePeriod:   360,
		PruneInterval: 10,
		HashRetention: 360,
		Codec:         storage.CodecCBOR,
		LogLevel:      "info",
	}
}

// Validate checks the consistency of the configuration.
func (c Config) Validate() error {
	errs := []error{}
	if c.HistorySize == 0 {
		errs = append(errs, fmt.Errorf("%w: history size must be positive", common.ErrInvalidArgument))
	}
	if c.HashRetention == 0 {
		errs = append(errs, fmt.Errorf("%w: hash retention must be positive", common.ErrInvalidArgument))
	}
	if c.Codec != storage.CodecCBOR && c.Codec != storage.CodecMsgpack {
		errs = append(errs, fmt.Errorf("%w: unknown codec %q", common.ErrInvalidArgument, c.Codec))
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("%w: %v", common.ErrInvalidArgument, err))
	}
	return errors.Join(errs...)
}

// Schedule derives the pruning schedule of the height pipeline.
func (c Config) Schedule() pipeline.Schedule {
	return pipeline.Schedule{
		PruneInterval: c.PruneInterval,
		GracePeriod:   c.GracePeriod,
	}
}

// Properties renders the configuration as properties.
func (c Config) Properties() Properties {
	var res Properties
	res.SetInteger(HistorySize, int(c.HistorySize))
	res.SetInteger(GracePeriod, int(c.GracePeriod))
	res.SetInteger(PruneInterval, int(c.PruneInterval))
	res.SetInteger(HashRetention, int(c.HashRetention))
	res.SetString(Codec, c.Codec)
	res.SetString(LogLevel, c.LogLevel)
	return res
}

// FromProperties applies the given properties to the default configuration.
func FromProperties(properties Properties) (Config, error) {
	res := Default()
	integers := []struct {
		property Property
		target   *uint64
	}{
		{HistorySize, &res.HistorySize},
		{GracePeriod, &res.GracePeriod},
		{PruneInterval, &res.PruneInterval},
		{HashRetention, &res.HashRetention},
	}
	for _, cur := range integers {
		value, err := properties.GetInteger(cur.property, int(*cur.target))
		if err != nil {
			return Config{}, err
		}
		if value < 0 {
			return Config{}, fmt.Errorf("invalid value for '%s' property: %d", cur.property, value)
		}
		*cur.target = uint64(value)
	}
	res.Codec = properties.GetString(Codec, res.Codec)
	res.LogLevel = properties.GetString(LogLevel, res.LogLevel)
	return res, res.Validate()
}

// NewViper creates a viper instance with the defaults registered and
// environment overrides enabled. Variables in .env files of the working
// directory are loaded into the environment first.
func NewViper() *viper.Viper {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	defaults := Default()
	v.SetDefault(KeyHistorySize, defaults.HistorySize)
	v.SetDefault(KeyGracePeriod, defaults.GracePeriod)
	v.SetDefault(KeyPruneInterval, defaults.PruneInterval)
	v.SetDefault(KeyHashRetention, defaults.HashRetention)
	v.SetDefault(KeyCodec, defaults.Codec)
	v.SetDefault(KeyLogLevel, defaults.LogLevel)
	v.SetDefault(KeyDevelopment, defaults.Development)
	return v
}

// Load reads the configuration from the given viper instance. If file is
// not empty, it is read first; the environment takes precedence over it.
func Load(v *viper.Viper, file string) (Config, error) {
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("failed to read config file %s: %w", file, err)
		}
	}
	res := Config{
		HistorySize:   v.GetUint64(KeyHistorySize),
		GracePeriod:   v.GetUint64(KeyGracePeriod),
		PruneInterval: v.GetUint64(KeyPruneInterval),
		HashRetention: v.GetUint64(KeyHashRetention),
		Codec:         v.GetString(KeyCodec),
		LogLevel:      v.GetString(KeyLogLevel),
		Development:   v.GetBool(KeyDevelopment),
	}
	return res, res.Validate()
}
