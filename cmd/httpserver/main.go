package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/ruteri/waas-signing-service/api/custodyhandler"
	"github.com/ruteri/waas-signing-service/api/server"
	"github.com/ruteri/waas-signing-service/cmd/flags"
	"github.com/ruteri/waas-signing-service/common"
	"github.com/ruteri/waas-signing-service/cryptoutils"
	"github.com/ruteri/waas-signing-service/custody"
	"github.com/ruteri/waas-signing-service/kms"
	"github.com/ruteri/waas-signing-service/metrics"
	"github.com/ruteri/waas-signing-service/registry"
	"github.com/urfave/cli/v2"
)

func main() {
	// Settings from a .env file fill in unset environment variables.
	_ = godotenv.Load()

	app := &cli.App{
		Name:  "signing-server",
		Usage: "Serve the session-scoped key custody and signing API",
		Flags: append(append([]cli.Flag{flags.LogServiceFlagFn(common.PackageName)}, flags.CommonFlags...), flags.CustodyFlags...),
		Action: func(cCtx *cli.Context) error {
			logger := flags.SetupLogger(cCtx)

			accounts, err := loadAccounts(cCtx.String(flags.AccountsFileFlag.Name), logger)
			if err != nil {
				logger.Error("Failed to load accounts", "err", err)
				return err
			}

			sessions := registry.NewSessions(cCtx.Duration(flags.SessionTTLFlag.Name))
			backend := cryptoutils.NewSecp256k1Backend(cCtx.Duration(flags.SignDelayFlag.Name))

			cfg := flags.ConfigureServer(cCtx, logger, cCtx.String(flags.ListenAddrFlag.Name))
			custodyCfg := flags.ConfigureCustody(cCtx)

			// The collector is created before the service so it can observe it.
			collector := metrics.NewCollector(common.PackageName, sessions.Len)
			custodyCfg.Observer = collector

			service := custody.New(custodyCfg, accounts, sessions, kms.NewKeyStore(), backend, logger)
			handler := custodyhandler.NewHandler(service, logger).WithSecureCookie(cCtx.Bool(flags.SecureCookieFlag.Name))

			srv, err := server.New(cfg, handler)
			if err != nil {
				logger.Error("Failed to create server", "err", err)
				return err
			}
			if err := srv.Metrics().Register(collector); err != nil {
				logger.Error("Failed to register metrics", "err", err)
				return err
			}

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			go func() {
				if err := service.Run(ctx); err != nil {
					logger.Error("Janitor stopped", "err", err)
				}
			}()

			logger.Info("Starting server", "accounts", accounts.Len(), "signDelay", backend.Delay, "signWorkers", custodyCfg.SignWorkers)
			srv.RunInBackground()

			exit := make(chan os.Signal, 1)
			signal.Notify(exit, os.Interrupt, syscall.SIGTERM)

			logger.Info("Server is running, press Ctrl+C to stop")
			<-exit
			logger.Info("Shutdown signal received")

			srv.Shutdown()
			cancel()
			if err := service.Close(); err != nil {
				logger.Error("Failed to finish pending signatures", "err", err)
			}
			logger.Info("Server shutdown complete")

			return nil
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func loadAccounts(path string, logger *slog.Logger) (*registry.Accounts, error) {
	if path == "" {
		logger.Warn("No accounts file given, using the built-in demo accounts")
		return registry.NewAccounts(registry.DefaultAccounts())
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	seeds, err := registry.LoadAccounts(f)
	if err != nil {
		return nil, fmt.Errorf("could not parse %s: %w", path, err)
	}

	logger.Info("Accounts loaded", "file", path, "count", len(seeds))
	return registry.NewAccounts(seeds)
}
