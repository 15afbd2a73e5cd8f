package main

import (
	"crypto/rand"
	"crypto/tls"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ruteri/feldman-vss-backend/api/bulletinhandler"
	"github.com/ruteri/feldman-vss-backend/api/vsshandler"
	"github.com/ruteri/feldman-vss-backend/cmd/flags"
	"github.com/ruteri/feldman-vss-backend/httpserver"
	"github.com/ruteri/feldman-vss-backend/interfaces"
	"github.com/ruteri/feldman-vss-backend/roster"
	"github.com/ruteri/feldman-vss-backend/session"
	"github.com/ruteri/feldman-vss-backend/storage"
	"github.com/urfave/cli/v2"
)

var ServiceLogFlag = flags.LogServiceFlagFn("vss-server")

var InboxKeyFlag = &cli.StringFlag{
	Name:  "inbox-key",
	Usage: "path to the PEM-encoded ECDSA private key for the share inbox; inbox disabled if unset",
}

func main() {
	app := &cli.App{
		Name:  "vss-server",
		Usage: "Serve verifiable secret sharing sessions",
		Flags: append([]cli.Flag{
			flags.ListenAddrFlag,
			flags.RosterFlag,
			flags.StorageFlag,
			flags.VaultCertFlag,
			flags.VaultKeyFlag,
			InboxKeyFlag,
			ServiceLogFlag,
		}, flags.CommonFlags...),
		Action: func(cCtx *cli.Context) error {
			listenAddr := cCtx.String(flags.ListenAddrFlag.Name)

			logger := flags.SetupLogger(cCtx)

			players, err := roster.LoadFile(cCtx.String(flags.RosterFlag.Name))
			if err != nil {
				logger.Error("Failed to load roster", "err", err)
				return err
			}
			logger.Info("Roster loaded", "players", players.Len())

			storageFactory := storage.NewStorageBackendFactory(logger)
			var factory interfaces.StorageBackendFactory = storageFactory
			if certPath := cCtx.String(flags.VaultCertFlag.Name); certPath != "" {
				keyPath := cCtx.String(flags.VaultKeyFlag.Name)
				factory = storageFactory.WithTLSAuth(func() (tls.Certificate, error) {
					return tls.LoadX509KeyPair(certPath, keyPath)
				})
			}

			var locations []interfaces.StorageBackendLocation
			for _, uri := range cCtx.StringSlice(flags.StorageFlag.Name) {
				location, err := interfaces.NewStorageBackendLocation(uri)
				if err != nil {
					logger.Error("Invalid storage URI", "uri", uri, "err", err)
					return err
				}
				locations = append(locations, location)
			}

			store, err := factory.CreateMultiBackend(locations)
			if err != nil {
				logger.Error("Failed to set up storage", "err", err)
				return err
			}

			manager := session.NewManager(logger, players, rand.Reader)

			handler := vsshandler.NewHandler(manager, store, logger)
			if keyPath := cCtx.String(InboxKeyFlag.Name); keyPath != "" {
				keyPEM, err := os.ReadFile(keyPath)
				if err != nil {
					logger.Error("Failed to read inbox key", "err", err)
					return err
				}
				handler, err = handler.WithInboxKey(keyPEM)
				if err != nil {
					logger.Error("Failed to load inbox key", "err", err)
					return err
				}
			}

			srv, err := httpserver.New(flags.ConfigureServer(cCtx, logger, listenAddr), handler, bulletinhandler.NewHandler(manager, logger))
			if err != nil {
				logger.Error("Failed to create server", "err", err)
				return err
			}

			srv.RunInBackground()

			// Wait for termination signal
			exit := make(chan os.Signal, 1)
			signal.Notify(exit, os.Interrupt, syscall.SIGTERM)

			logger.Info("Server is running, press Ctrl+C to stop")
			<-exit
			logger.Info("Shutdown signal received")

			srv.Shutdown()
			logger.Info("Server shutdown complete")

			return nil
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
