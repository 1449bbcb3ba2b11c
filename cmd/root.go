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
	"context"
	"fmt"
	"net/http"
	"path"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/nuts-foundation/go-stoabs/bbolt"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/nuts-foundation/openid4vci-issuer/api"
	"github.com/nuts-foundation/openid4vci-issuer/crypto"
	"github.com/nuts-foundation/openid4vci-issuer/issuer"
)

func createRootCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "issuer",
		Short: "OpenID4VCI credential issuer",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.HelpFunc()(cmd, args)
		},
	}
}

func createServerCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "server",
		Short: "Starts the credential issuer server",
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := LoadConfig(cmd.Flags())
			if err != nil {
				return err
			}
			return runServer(config)
		},
	}
	command.Flags().AddFlagSet(Flags())
	return command
}

// CreateCommand creates the root command with all subcommands.
func CreateCommand() *cobra.Command {
	command := createRootCommand()
	command.AddCommand(createServerCommand())
	return command
}

// Execute runs the root command, exiting on error.
func Execute() {
	if err := CreateCommand().Execute(); err != nil {
		logrus.Fatal(err)
	}
}

func runServer(config Config) error {
	level, err := logrus.ParseLevel(config.Verbosity)
	if err != nil {
		return fmt.Errorf("invalid verbosity: %w", err)
	}
	logrus.SetLevel(level)
	logrus.Info("Starting OpenID4VCI issuer: " + config.Issuer.URL)

	store, err := createStore(config.Storage)
	if err != nil {
		return err
	}
	defer store.Close()

	// ephemeral signing key; a persistent key store is expected to be plugged in
	// through crypto.KeyResolver when tokens must survive restarts
	keyStore := crypto.NewMemoryKeyStore()
	signingKID := config.Issuer.URL + "#signing-key"
	if _, err := keyStore.New(context.Background(), signingKID); err != nil {
		return err
	}

	core, err := createIssuer(config, keyStore, signingKID, store)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	if err := registerCollectors(registry, core.Collectors()); err != nil {
		return err
	}

	router := echo.New()
	router.HideBanner = true
	router.Use(middleware.Logger())
	router.Use(middleware.Recover())
	api.Wrapper{
		Issuer:      core,
		OfferIssuer: issuer.NewPreAuthorizedCodeIssuer(config.Issuer.URL, store, config.Issuer.CodeTTL, config.Issuer.CNonceTTL),
	}.Routes(router)
	router.GET("/status", func(c echo.Context) error {
		return c.String(http.StatusOK, "OK")
	})
	router.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	return router.Start(config.HTTP.Address)
}

func createIssuer(config Config, keyStore crypto.KeyStore, signingKID string, store issuer.Store) (*issuer.Issuer, error) {
	dataSource := issuer.StaticCredentialData{}
	for _, credential := range config.Issuer.Credentials {
		dataSource[credential.ID] = credential.Claims
	}

	core := issuer.New(config.Issuer.URL, config.Issuer.AccessTokenTTL,
		issuer.NewAccessTokenService(keyStore, signingKID),
		issuer.NewAccessTokenVerifier(keyStore, config.Issuer.URL),
		dataSource)
	core.RegisterGrantHandler(issuer.NewPreAuthorizedCodeHandler(store))
	core.RegisterCredentialHandler(issuer.NewSDJwtVCHandler(keyStore, signingKID, config.Issuer.URL))
	core.RegisterCredentialHandler(issuer.NewJwtVCHandler(keyStore, signingKID, config.Issuer.URL))
	core.RegisterCredentialHandler(issuer.NewMsoMdocHandler(keyStore, signingKID, 365*24*time.Hour))

	for _, credential := range config.Issuer.Credentials {
		format := issuer.CredentialFormat(credential.Format)
		switch format {
		case issuer.SDJwtVCFormat, issuer.JwtVCFormat, issuer.MsoMdocFormat:
		default:
			return nil, fmt.Errorf("unsupported credential format in config: %s", credential.Format)
		}
		core.RegisterConfiguration(issuer.CredentialConfiguration{ID: credential.ID, Format: format})
	}
	return core, nil
}

func createStore(config StorageConfig) (issuer.Store, error) {
	switch config.Backend {
	case "memory", "":
		return issuer.NewMemoryStore(), nil
	case "redis":
		if config.RedisAddress == "" {
			return nil, fmt.Errorf("storage.redisaddress is required for the redis backend")
		}
		return issuer.NewRedisStore(redis.NewClient(&redis.Options{Addr: config.RedisAddress})), nil
	case "bbolt":
		db, err := bbolt.CreateBBoltStore(path.Join(config.DataDir, "preauthorized_codes.db"))
		if err != nil {
			return nil, fmt.Errorf("unable to create BBolt store: %w", err)
		}
		return issuer.NewStoabsStore(db), nil
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", config.Backend)
	}
}

func registerCollectors(registry *prometheus.Registry, collectors []prometheus.Collector) error {
	for _, collector := range collectors {
		if err := registry.Register(collector); err != nil {
			return err
		}
	}
	return nil
}
