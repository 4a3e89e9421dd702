package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/ruteri/geodata-registry/api"
	"github.com/ruteri/geodata-registry/api/datahandler"
	"github.com/ruteri/geodata-registry/api/recordhandler"
	"github.com/ruteri/geodata-registry/cmd/flags"
	"github.com/ruteri/geodata-registry/cryptoutils"
	"github.com/ruteri/geodata-registry/interfaces"
	"github.com/urfave/cli/v2"
)

var (
	flagCaller = &cli.StringFlag{
		Name:    "caller",
		Usage:   "acting identity, sent as " + api.CallerHeader,
		EnvVars: []string{"GEODATA_CALLER"},
	}
	flagDataID = &cli.StringFlag{
		Name:  "data-id",
		Usage: "record id",
	}
	flagCipherHash = &cli.StringFlag{
		Name:  "cipher-hash",
		Usage: "hash of the encrypted payload",
	}
	flagMetadataHash = &cli.StringFlag{
		Name:  "metadata-hash",
		Usage: "hash of the metadata document",
	}
	flagEncryptedFile = &cli.StringFlag{
		Name:  "encrypted-file",
		Usage: "workspace file to derive hashes from instead of passing them",
	}
	flagMetadataFile = &cli.StringFlag{
		Name:  "metadata-file",
		Usage: "workspace metadata file for hash derivation",
	}
	flagAddress = &cli.StringFlag{
		Name:     "address",
		Required: true,
		Usage:    "identity to grant, revoke or check",
	}
	flagOwned = &cli.BoolFlag{
		Name:  "owned",
		Usage: "list only records created by the caller",
	}
	flagShares = &cli.IntFlag{
		Name:  "shares",
		Value: 5,
		Usage: "number of shares to produce",
	}
	flagThreshold = &cli.IntFlag{
		Name:  "threshold",
		Value: 3,
		Usage: "shares needed to recover the seed",
	}
	flagUseRSA = &cli.BoolFlag{
		Name:  "use-rsa",
		Usage: "seal the data key with the server's RSA key",
	}
)

func main() {
	app := &cli.App{
		Name:  "geodata-client",
		Usage: "Talk to a geodata registry server",
		Flags: []cli.Flag{flags.ServerAddrFlag, flagCaller},
		Commands: []*cli.Command{
			{
				Name:  "store",
				Usage: "create a record owned by the caller",
				Flags: []cli.Flag{flagDataID, flagCipherHash, flagMetadataHash, flagEncryptedFile, flagMetadataFile},
				Action: func(cCtx *cli.Context) error {
					caller, err := callerFrom(cCtx)
					if err != nil {
						return err
					}
					resp, err := records(cCtx).StoreRecord(cCtx.Context, caller, api.StoreRequest{
						DataID:        cCtx.String(flagDataID.Name),
						CipherHash:    cCtx.String(flagCipherHash.Name),
						MetadataHash:  cCtx.String(flagMetadataHash.Name),
						EncryptedFile: cCtx.String(flagEncryptedFile.Name),
						MetadataFile:  cCtx.String(flagMetadataFile.Name),
					})
					if err != nil {
						return err
					}
					return printJSON(resp)
				},
			},
			{
				Name:      "retrieve",
				Usage:     "show a record",
				ArgsUsage: "<data-id>",
				Action: func(cCtx *cli.Context) error {
					caller, err := callerFrom(cCtx)
					if err != nil {
						return err
					}
					rec, err := records(cCtx).Retrieve(cCtx.Context, caller, cCtx.Args().First())
					if err != nil {
						return err
					}
					return printJSON(rec)
				},
			},
			{
				Name:  "update",
				Usage: "replace the hashes of a record",
				Flags: []cli.Flag{flagDataID, flagCipherHash, flagMetadataHash},
				Action: func(cCtx *cli.Context) error {
					caller, err := callerFrom(cCtx)
					if err != nil {
						return err
					}
					return records(cCtx).UpdateData(cCtx.Context, caller, cCtx.String(flagDataID.Name), cCtx.String(flagCipherHash.Name), cCtx.String(flagMetadataHash.Name))
				},
			},
			{
				Name:  "grant",
				Usage: "allow an identity to read a record",
				Flags: []cli.Flag{flagDataID, flagAddress},
				Action: func(cCtx *cli.Context) error {
					return changeAccess(cCtx, (*recordhandler.Client).GrantAccess)
				},
			},
			{
				Name:  "revoke",
				Usage: "withdraw read access",
				Flags: []cli.Flag{flagDataID, flagAddress},
				Action: func(cCtx *cli.Context) error {
					return changeAccess(cCtx, (*recordhandler.Client).RevokeAccess)
				},
			},
			{
				Name:  "check",
				Usage: "report whether an identity may read a record",
				Flags: []cli.Flag{flagDataID, flagAddress},
				Action: func(cCtx *cli.Context) error {
					who, err := interfaces.NewIdentityFromHex(cCtx.String(flagAddress.Name))
					if err != nil {
						return err
					}
					ok, err := records(cCtx).CheckAccess(cCtx.Context, cCtx.String(flagDataID.Name), who)
					if err != nil {
						return err
					}
					return printJSON(map[string]bool{"has_access": ok})
				},
			},
			{
				Name:  "list",
				Usage: "list record ids",
				Flags: []cli.Flag{flagOwned},
				Action: func(cCtx *cli.Context) error {
					var (
						ids []string
						err error
					)
					if cCtx.Bool(flagOwned.Name) {
						caller, cerr := callerFrom(cCtx)
						if cerr != nil {
							return cerr
						}
						ids, err = records(cCtx).ListMyIDs(cCtx.Context, caller)
					} else {
						ids, err = records(cCtx).ListAllIDs(cCtx.Context)
					}
					if err != nil {
						return err
					}
					return printJSON(ids)
				},
			},
			{
				Name:      "upload",
				Usage:     "upload a csv, json or xlsx dataset",
				ArgsUsage: "<file>",
				Action: func(cCtx *cli.Context) error {
					path := cCtx.Args().First()
					f, err := os.Open(path)
					if err != nil {
						return err
					}
					defer f.Close()

					res, err := data(cCtx).Upload(cCtx.Context, filepath.Base(path), f)
					if err != nil {
						return err
					}
					return printJSON(res)
				},
			},
			{
				Name:      "encrypt",
				Usage:     "encrypt a workspace file on the server",
				ArgsUsage: "<file>",
				Flags:     []cli.Flag{flagUseRSA},
				Action: func(cCtx *cli.Context) error {
					res, err := data(cCtx).Encrypt(cCtx.Context, cCtx.Args().First(), cCtx.Bool(flagUseRSA.Name))
					if err != nil {
						return err
					}
					return printJSON(res)
				},
			},
			{
				Name:  "files",
				Usage: "list the server workspace",
				Action: func(cCtx *cli.Context) error {
					files, err := data(cCtx).Files(cCtx.Context)
					if err != nil {
						return err
					}
					return printJSON(files)
				},
			},
			{
				Name:  "seed-split",
				Usage: "generate a master seed and print it with its Shamir shares",
				Flags: []cli.Flag{flagShares, flagThreshold},
				Action: func(cCtx *cli.Context) error {
					seed, err := cryptoutils.GenerateDataKey()
					if err != nil {
						return err
					}
					shares, err := cryptoutils.SplitMasterSeed(seed, cCtx.Int(flagShares.Name), cCtx.Int(flagThreshold.Name))
					if err != nil {
						return err
					}

					encoded := make([]string, len(shares))
					for i, share := range shares {
						encoded[i] = hex.EncodeToString(share)
					}
					return printJSON(map[string]any{
						"master_seed": hex.EncodeToString(seed),
						"threshold":   cCtx.Int(flagThreshold.Name),
						"shares":      encoded,
					})
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func records(cCtx *cli.Context) *recordhandler.Client {
	return recordhandler.NewClient(cCtx.String(flags.ServerAddrFlag.Name))
}

func data(cCtx *cli.Context) *datahandler.Client {
	return datahandler.NewClient(cCtx.String(flags.ServerAddrFlag.Name))
}

func callerFrom(cCtx *cli.Context) (interfaces.Identity, error) {
	raw := cCtx.String(flagCaller.Name)
	if raw == "" {
		return interfaces.Identity{}, errors.New("--caller is required for this command")
	}
	caller, err := interfaces.NewIdentityFromHex(raw)
	if err != nil {
		return interfaces.Identity{}, fmt.Errorf("invalid caller: %w", err)
	}
	return caller, nil
}

type accessChange func(c *recordhandler.Client, ctx context.Context, caller interfaces.Identity, id string, grantee interfaces.Identity) error

func changeAccess(cCtx *cli.Context, change accessChange) error {
	caller, err := callerFrom(cCtx)
	if err != nil {
		return err
	}
	grantee, err := interfaces.NewIdentityFromHex(cCtx.String(flagAddress.Name))
	if err != nil {
		return fmt.Errorf("invalid address: %w", err)
	}
	return change(records(cCtx), cCtx.Context, caller, cCtx.String(flagDataID.Name), grantee)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
