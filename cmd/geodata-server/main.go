package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ruteri/geodata-registry/api/datahandler"
	"github.com/ruteri/geodata-registry/api/recordhandler"
	"github.com/ruteri/geodata-registry/api/servers"
	"github.com/ruteri/geodata-registry/cmd/flags"
	"github.com/ruteri/geodata-registry/common"
	"github.com/ruteri/geodata-registry/geodata"
	"github.com/ruteri/geodata-registry/metrics"
	"github.com/ruteri/geodata-registry/recordstore"
	"github.com/urfave/cli/v2"
)

var (
	flagStoreBackend = &cli.StringFlag{
		Name:    "store-backend",
		Value:   "memory",
		Usage:   "record store: 'memory', 'badger' or 'onchain'",
		EnvVars: []string{"GEODATA_STORE_BACKEND"},
	}
	flagBadgerPath = &cli.StringFlag{
		Name:    "badger-path",
		Value:   "./data/records",
		Usage:   "badger directory (store-backend=badger)",
		EnvVars: []string{"GEODATA_BADGER_PATH"},
	}
	flagContractAddr = &cli.StringFlag{
		Name:    "contract-address",
		Usage:   "GeoDataStorage contract address (store-backend=onchain)",
		EnvVars: []string{"GEODATA_CONTRACT_ADDRESS"},
	}
	flagSignerKeys = &cli.StringSliceFlag{
		Name:    "signer-key",
		Usage:   "hex private key allowed to act on chain; one per caller identity (store-backend=onchain)",
		EnvVars: []string{"GEODATA_SIGNER_KEYS"},
	}
	flagWorkspace = &cli.StringFlag{
		Name:    "workspace",
		Value:   "./datasets",
		Usage:   "directory for uploaded and encrypted files",
		EnvVars: []string{"GEODATA_WORKSPACE"},
	}
	flagStorageURIs = &cli.StringSliceFlag{
		Name:    "storage-uri",
		Usage:   "replicate encrypted artifacts to this backend (file://, s3://, ipfs://, vault://); repeatable",
		EnvVars: []string{"GEODATA_STORAGE_URIS"},
	}
	flagMasterSeed = &cli.StringFlag{
		Name:    "master-seed",
		Usage:   "hex-encoded 32-byte seed for the master key sealer",
		EnvVars: []string{"GEODATA_MASTER_SEED"},
	}
	flagMasterPassphrase = &cli.StringFlag{
		Name:    "master-passphrase",
		Usage:   "derive the master seed from a passphrase instead of master-seed",
		EnvVars: []string{"GEODATA_MASTER_PASSPHRASE"},
	}
	flagMasterSeedShares = &cli.StringSliceFlag{
		Name:    "master-seed-share",
		Usage:   "hex Shamir share of the master seed (see geodata-client seed-split); repeat up to the threshold",
		EnvVars: []string{"GEODATA_MASTER_SEED_SHARES"},
	}
	flagSealPubkey = &cli.StringFlag{
		Name:    "seal-pubkey",
		Usage:   "PEM file with a P-256 public key; data keys are sealed to it instead of the master key",
		EnvVars: []string{"GEODATA_SEAL_PUBKEY"},
	}
	flagRSAPubkey = &cli.StringFlag{
		Name:    "rsa-pubkey",
		Usage:   "PEM file with an RSA public key, enables use_rsa on encrypt",
		EnvVars: []string{"GEODATA_RSA_PUBKEY"},
	}
)

func main() {
	app := &cli.App{
		Name:  "geodata-server",
		Usage: "Serve the geodata registry API",
		Flags: append([]cli.Flag{
			flags.RpcAddrFlag,
			flagStoreBackend,
			flagBadgerPath,
			flagContractAddr,
			flagSignerKeys,
			flagWorkspace,
			flagStorageURIs,
			flagMasterSeed,
			flagMasterPassphrase,
			flagMasterSeedShares,
			flagSealPubkey,
			flagRSAPubkey,
		}, flags.CommonFlags...),
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(cCtx *cli.Context) error {
	logger := flags.SetupLogger(cCtx)
	cfg := flags.ConfigureServer(cCtx, logger)

	metricsSrv, err := metrics.New(common.PackageName, cfg.MetricsAddr)
	if err != nil {
		return fmt.Errorf("could not create metrics server: %w", err)
	}

	store, closeStore, err := openRecordStore(cCtx, logger)
	if err != nil {
		logger.Error("Failed to open record store", "err", err)
		return err
	}
	defer closeStore()

	sealer, rsaSealer, err := loadSealers(cCtx, logger)
	if err != nil {
		logger.Error("Failed to configure key sealing", "err", err)
		return err
	}

	artifacts, err := openArtifactStorage(cCtx, logger)
	if err != nil {
		logger.Error("Failed to configure artifact storage", "err", err)
		return err
	}

	svc, err := geodata.NewService(geodata.Config{
		Workspace: cCtx.String(flagWorkspace.Name),
		Sealer:    sealer,
		RSASealer: rsaSealer,
		Storage:   artifacts,
	}, logger)
	if err != nil {
		return err
	}

	instrumented := recordstore.NewInstrumentedStore(store, metricsSrv, logger)

	server := servers.New(cfg, metricsSrv,
		recordhandler.NewHandler(instrumented, svc, logger),
		datahandler.NewHandler(svc, logger),
	)
	server.RunInBackground()

	exit := make(chan os.Signal, 1)
	signal.Notify(exit, os.Interrupt, syscall.SIGTERM)

	logger.Info("Server is running, press Ctrl+C to stop", "store", cCtx.String(flagStoreBackend.Name), "sealer", sealer.Method())
	<-exit
	logger.Info("Shutdown signal received")

	server.Shutdown()
	logger.Info("Server shutdown complete")
	return nil
}
