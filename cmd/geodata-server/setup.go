package main

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ruteri/geodata-registry/cmd/flags"
	"github.com/ruteri/geodata-registry/cryptoutils"
	"github.com/ruteri/geodata-registry/interfaces"
	"github.com/ruteri/geodata-registry/recordstore"
	"github.com/ruteri/geodata-registry/registry"
	"github.com/ruteri/geodata-registry/storage"
	"github.com/urfave/cli/v2"
)

// masterSeedSalt is fixed so a passphrase always derives the same seed.
var masterSeedSalt = []byte("geodata-registry master seed")

func openRecordStore(cCtx *cli.Context, logger *slog.Logger) (interfaces.RecordStore, func(), error) {
	switch backend := cCtx.String(flagStoreBackend.Name); backend {
	case "memory":
		logger.Warn("Using in-memory record store, records are lost on restart")
		return recordstore.NewMemoryStore(), func() {}, nil

	case "badger":
		path := cCtx.String(flagBadgerPath.Name)
		logger.Info("Opening badger record store", "path", path)
		store, err := recordstore.OpenBadgerStore(path, logger)
		if err != nil {
			return nil, nil, err
		}
		return store, func() {
			if err := store.Close(); err != nil {
				logger.Error("Failed to close badger store", "err", err)
			}
		}, nil

	case "onchain":
		return openOnchainStore(cCtx, logger)

	default:
		return nil, nil, fmt.Errorf("invalid store-backend: %s", backend)
	}
}

func openOnchainStore(cCtx *cli.Context, logger *slog.Logger) (interfaces.RecordStore, func(), error) {
	contract := cCtx.String(flagContractAddr.Name)
	if !common.IsHexAddress(contract) {
		return nil, nil, fmt.Errorf("invalid contract-address: %q", contract)
	}

	rpcAddress := cCtx.String(flags.RpcAddrFlag.Name)
	logger.Info("Connecting to Ethereum RPC", "address", rpcAddress)
	ethClient, err := ethclient.Dial(rpcAddress)
	if err != nil {
		return nil, nil, fmt.Errorf("could not dial RPC: %w", err)
	}

	chainID, err := ethClient.ChainID(cCtx.Context)
	if err != nil {
		ethClient.Close()
		return nil, nil, fmt.Errorf("could not fetch chain id: %w", err)
	}

	store, err := registry.NewOnchainRecordStore(ethClient, ethClient, common.HexToAddress(contract), logger)
	if err != nil {
		ethClient.Close()
		return nil, nil, err
	}

	for _, raw := range cCtx.StringSlice(flagSignerKeys.Name) {
		key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(raw), "0x"))
		if err != nil {
			ethClient.Close()
			return nil, nil, fmt.Errorf("invalid signer-key: %w", err)
		}
		auth, err := registry.NewSigner(key, chainID)
		if err != nil {
			ethClient.Close()
			return nil, nil, err
		}
		logger.Info("Registered signer", "identity", store.AddSigner(auth).String())
	}

	return store, ethClient.Close, nil
}

// loadSealers returns the default key sealer and the optional RSA sealer.
func loadSealers(cCtx *cli.Context, logger *slog.Logger) (cryptoutils.KeySealer, cryptoutils.KeySealer, error) {
	var rsaSealer cryptoutils.KeySealer
	if path := cCtx.String(flagRSAPubkey.Name); path != "" {
		pemBytes, err := os.ReadFile(path)
		if err != nil {
			return nil, nil, fmt.Errorf("could not read rsa-pubkey: %w", err)
		}
		if rsaSealer, err = cryptoutils.NewRSAKeySealer(pemBytes); err != nil {
			return nil, nil, err
		}
	}

	if path := cCtx.String(flagSealPubkey.Name); path != "" {
		pemBytes, err := os.ReadFile(path)
		if err != nil {
			return nil, nil, fmt.Errorf("could not read seal-pubkey: %w", err)
		}
		sealer, err := cryptoutils.NewECIESKeySealer(pemBytes, nil)
		if err != nil {
			return nil, nil, err
		}
		return sealer, rsaSealer, nil
	}

	seed, err := masterSeed(cCtx, logger)
	if err != nil {
		return nil, nil, err
	}
	sealer, err := cryptoutils.NewMasterKeySealer(seed)
	if err != nil {
		return nil, nil, err
	}
	return sealer, rsaSealer, nil
}

func masterSeed(cCtx *cli.Context, logger *slog.Logger) ([]byte, error) {
	if raw := cCtx.String(flagMasterSeed.Name); raw != "" {
		seed, err := hex.DecodeString(strings.TrimPrefix(raw, "0x"))
		if err != nil || len(seed) != 32 {
			return nil, errors.New("invalid master-seed: must be 64 hex chars (32 bytes)")
		}
		return seed, nil
	}

	if rawShares := cCtx.StringSlice(flagMasterSeedShares.Name); len(rawShares) > 0 {
		shares := make([][]byte, 0, len(rawShares))
		for _, raw := range rawShares {
			share, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(raw), "0x"))
			if err != nil {
				return nil, fmt.Errorf("invalid master-seed-share: %w", err)
			}
			shares = append(shares, share)
		}
		logger.Info("Reconstructing master seed from shares", "count", len(shares))
		return cryptoutils.CombineMasterSeed(shares)
	}

	if passphrase := cCtx.String(flagMasterPassphrase.Name); passphrase != "" {
		return cryptoutils.DeriveMasterSeed(passphrase, masterSeedSalt), nil
	}

	// Keys sealed under a random seed cannot be opened after a restart.
	seed := make([]byte, 32)
	if _, err := rand.Read(seed); err != nil {
		return nil, err
	}
	logger.Warn("No master-seed or master-passphrase given, using an ephemeral seed")
	return seed, nil
}

func openArtifactStorage(cCtx *cli.Context, logger *slog.Logger) (interfaces.StorageBackend, error) {
	uris := cCtx.StringSlice(flagStorageURIs.Name)
	if len(uris) == 0 {
		return nil, nil
	}

	backend, err := storage.NewStorageBackendFactory(logger).BackendFromURIs(uris)
	if err != nil {
		return nil, err
	}
	logger.Info("Replicating artifacts", "backend", backend.Name(), "uris", uris)
	return backend, nil
}
