/*
 * Copyright (C) 2025 Nuts community
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program.  If not, see <https://www.gnu.org/licenses/>.
 */

package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

const defaultConfigFile = "issuer.yaml"
const configFileFlag = "configfile"
const envPrefix = "ISSUER_"

// Config is the server configuration, loadable from file, environment and flags.
type Config struct {
	Verbosity string        `koanf:"verbosity"`
	HTTP      HTTPConfig    `koanf:"http"`
	Issuer    IssuerConfig  `koanf:"issuer"`
	Storage   StorageConfig `koanf:"storage"`
}

type HTTPConfig struct {
	// Address is the interface and port to listen on.
	Address string `koanf:"address"`
}

type IssuerConfig struct {
	// URL is the public credential issuer identifier.
	URL string `koanf:"url"`
	// AccessTokenTTL is the validity of issued access tokens.
	AccessTokenTTL time.Duration `koanf:"accesstokenttl"`
	// CodeTTL is the validity of minted pre-authorized codes.
	CodeTTL time.Duration `koanf:"codettl"`
	// CNonceTTL is the validity of credential nonces.
	CNonceTTL time.Duration `koanf:"cnoncettl"`
	// Credentials lists the issuable credential configurations.
	Credentials []CredentialConfig `koanf:"credentials"`
}

type CredentialConfig struct {
	ID     string         `koanf:"id"`
	Format string         `koanf:"format"`
	Claims map[string]any `koanf:"claims"`
}

type StorageConfig struct {
	// Backend selects the pre-authorized code store: memory, redis or bbolt.
	Backend string `koanf:"backend"`
	// RedisAddress is the Redis server address, for the redis backend.
	RedisAddress string `koanf:"redisaddress"`
	// DataDir holds the BBolt database, for the bbolt backend.
	DataDir string `koanf:"datadir"`
}

// DefaultConfig returns the default server configuration.
func DefaultConfig() Config {
	return Config{
		Verbosity: "info",
		HTTP:      HTTPConfig{Address: ":1323"},
		Issuer: IssuerConfig{
			URL:            "http://localhost:1323",
			AccessTokenTTL: 15 * time.Minute,
			CodeTTL:        10 * time.Minute,
			CNonceTTL:      5 * time.Minute,
		},
		Storage: StorageConfig{
			Backend: "memory",
			DataDir: "./data",
		},
	}
}

// LoadConfig builds the configuration from defaults, the config file,
// ISSUER_ environment variables and command line flags, in that order.
func LoadConfig(flags *pflag.FlagSet) (Config, error) {
	k := koanf.New(".")

	configFile := defaultConfigFile
	if flags != nil {
		if value, err := flags.GetString(configFileFlag); err == nil && value != "" {
			configFile = value
		}
	}
	if _, err := os.Stat(configFile); err == nil {
		if err := k.Load(file.Provider(configFile), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("unable to load config file %s: %w", configFile, err)
		}
	}

	err := k.Load(env.Provider(envPrefix, ".", func(key string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(key, envPrefix)), "_", ".")
	}), nil)
	if err != nil {
		return Config{}, err
	}

	if flags != nil {
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return Config{}, err
		}
	}

	config := DefaultConfig()
	if err := k.Unmarshal("", &config); err != nil {
		return Config{}, fmt.Errorf("unable to unmarshal config: %w", err)
	}
	return config, nil
}

// Flags returns the flag set for the server command.
func Flags() *pflag.FlagSet {
	defaults := DefaultConfig()
	flags := pflag.NewFlagSet("server", pflag.ContinueOnError)
	flags.String(configFileFlag, defaultConfigFile, "Path to the config file")
	flags.String("verbosity", defaults.Verbosity, "Log level (trace, debug, info, warn, error)")
	flags.String("http.address", defaults.HTTP.Address, "Interface and port to listen on")
	flags.String("issuer.url", defaults.Issuer.URL, "Public credential issuer URL")
	flags.Duration("issuer.accesstokenttl", defaults.Issuer.AccessTokenTTL, "Validity of issued access tokens")
	flags.Duration("issuer.codettl", defaults.Issuer.CodeTTL, "Validity of pre-authorized codes")
	flags.Duration("issuer.cnoncettl", defaults.Issuer.CNonceTTL, "Validity of credential nonces")
	flags.String("storage.backend", defaults.Storage.Backend, "Pre-authorized code store backend (memory, redis or bbolt)")
	flags.String("storage.redisaddress", defaults.Storage.RedisAddress, "Redis server address")
	flags.String("storage.datadir", defaults.Storage.DataDir, "Directory holding the BBolt database")
	return flags
}
