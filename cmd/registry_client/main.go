package main

import (
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ruteri/document-registry/api/clients"
	"github.com/ruteri/document-registry/cmd/flags"
	"github.com/ruteri/document-registry/interfaces"
	"github.com/ruteri/document-registry/ledger"
	"github.com/urfave/cli/v2"
)

var flagKeyOut = &cli.StringFlag{
	Name:  "out",
	Value: "registry-key.hex",
	Usage: "file to write the generated private key to",
}

var flagKind = &cli.StringFlag{
	Name:  "kind",
	Usage: "only events of this kind (documentRegistered, documentRevoked)",
}
var flagOwner = &cli.StringFlag{
	Name:  "owner",
	Usage: "only events for this owner address",
}
var flagFingerprint = &cli.StringFlag{
	Name:  "fingerprint",
	Usage: "only events for this fingerprint",
}
var flagFrom = &cli.Uint64Flag{
	Name:  "from",
	Usage: "first ledger sequence number",
}
var flagLimit = &cli.IntFlag{
	Name:  "limit",
	Usage: "maximum number of results",
}
var flagFollow = &cli.BoolFlag{
	Name:  "follow",
	Usage: "keep streaming new events",
}
var flagStatus = &cli.StringFlag{
	Name:  "status",
	Usage: "only receipts with this status (success, failed)",
}

func main() {
	app := &cli.App{
		Name:  "registry-client",
		Usage: "Register, revoke and verify document fingerprints",
		Flags: []cli.Flag{
			flags.ServerURLFlag,
			flags.KeyFileFlag,
		},
		Commands: []*cli.Command{
			{
				Name:  "keygen",
				Usage: "generate a signing key",
				Flags: []cli.Flag{flagKeyOut},
				Action: func(cCtx *cli.Context) error {
					key, err := crypto.GenerateKey()
					if err != nil {
						return err
					}
					if err := crypto.SaveECDSA(cCtx.String(flagKeyOut.Name), key); err != nil {
						return fmt.Errorf("could not save key: %w", err)
					}
					fmt.Println(crypto.PubkeyToAddress(key.PublicKey).Hex())
					return nil
				},
			},
			{
				Name:      "hash",
				Usage:     "print the fingerprint of a file",
				ArgsUsage: "<file>",
				Action: func(cCtx *cli.Context) error {
					fp, err := fingerprintArg(cCtx)
					if err != nil {
						return err
					}
					fmt.Println(fp.String())
					return nil
				},
			},
			{
				Name:      "register",
				Usage:     "register a document",
				ArgsUsage: "<file | 0x-fingerprint>",
				Action: func(cCtx *cli.Context) error {
					return submit(cCtx, ledger.MethodRegister)
				},
			},
			{
				Name:      "revoke",
				Usage:     "revoke a document you registered",
				ArgsUsage: "<file | 0x-fingerprint>",
				Action: func(cCtx *cli.Context) error {
					return submit(cCtx, ledger.MethodRevoke)
				},
			},
			{
				Name:      "verify",
				Usage:     "look up a document",
				ArgsUsage: "<file | 0x-fingerprint>",
				Action: func(cCtx *cli.Context) error {
					fp, err := fingerprintArg(cCtx)
					if err != nil {
						return err
					}
					c, err := newClient(cCtx, false)
					if err != nil {
						return err
					}
					v, err := c.Verify(cCtx.Context, fp)
					if err != nil {
						return err
					}
					return printJSON(v)
				},
			},
			{
				Name:      "list",
				Usage:     "list the documents registered by an address (defaults to your own)",
				ArgsUsage: "[owner]",
				Action: func(cCtx *cli.Context) error {
					c, err := newClient(cCtx, cCtx.Args().Len() == 0)
					if err != nil {
						return err
					}
					owner, err := ownerArg(cCtx, c)
					if err != nil {
						return err
					}
					fps, err := c.ListByOwner(cCtx.Context, owner)
					if err != nil {
						return err
					}
					for _, fp := range fps {
						fmt.Println(fp.String())
					}
					return nil
				},
			},
			{
				Name:  "stats",
				Usage: "print the document count and ledger height",
				Action: func(cCtx *cli.Context) error {
					c, err := newClient(cCtx, false)
					if err != nil {
						return err
					}
					stats, err := c.Stats(cCtx.Context)
					if err != nil {
						return err
					}
					return printJSON(stats)
				},
			},
			{
				Name:  "receipts",
				Usage: "list ledger receipts",
				Flags: []cli.Flag{flagFrom, flagLimit, flagStatus},
				Action: func(cCtx *cli.Context) error {
					c, err := newClient(cCtx, false)
					if err != nil {
						return err
					}
					receipts, err := c.Receipts(cCtx.Context, ledger.ReceiptFilter{
						FromSeq: cCtx.Uint64(flagFrom.Name),
						Status:  ledger.Status(cCtx.String(flagStatus.Name)),
						Limit:   cCtx.Int(flagLimit.Name),
					})
					if err != nil {
						return err
					}
					return printJSON(receipts)
				},
			},
			{
				Name:  "events",
				Usage: "list committed events",
				Flags: []cli.Flag{flagKind, flagOwner, flagFingerprint, flagFrom, flagLimit, flagFollow},
				Action: func(cCtx *cli.Context) error {
					c, err := newClient(cCtx, false)
					if err != nil {
						return err
					}
					filter, err := eventFilter(cCtx)
					if err != nil {
						return err
					}
					if cCtx.Bool(flagFollow.Name) {
						return c.StreamEvents(cCtx.Context, filter, func(ev ledger.LoggedEvent) error {
							return printJSON(ev)
						})
					}
					events, err := c.Events(cCtx.Context, filter)
					if err != nil {
						return err
					}
					return printJSON(events)
				},
			},
			{
				Name:  "snapshot",
				Usage: "ask the server to archive a state snapshot",
				Action: func(cCtx *cli.Context) error {
					c, err := newClient(cCtx, false)
					if err != nil {
						return err
					}
					resp, err := c.Snapshot(cCtx.Context)
					if err != nil {
						return err
					}
					return printJSON(resp)
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newClient(cCtx *cli.Context, needKey bool) (*clients.RegistryClient, error) {
	server := cCtx.String(flags.ServerURLFlag.Name)
	keyFile := cCtx.String(flags.KeyFileFlag.Name)
	if keyFile == "" {
		if needKey {
			return nil, fmt.Errorf("--%s is required", flags.KeyFileFlag.Name)
		}
		return clients.NewRegistryClient(server, nil), nil
	}

	key, err := crypto.LoadECDSA(keyFile)
	if err != nil {
		return nil, fmt.Errorf("could not load key from %s: %w", keyFile, err)
	}
	return clients.NewRegistryClient(server, key), nil
}

func submit(cCtx *cli.Context, method string) error {
	fp, err := fingerprintArg(cCtx)
	if err != nil {
		return err
	}
	c, err := newClient(cCtx, true)
	if err != nil {
		return err
	}

	var receipt *ledger.Receipt
	if method == ledger.MethodRegister {
		receipt, err = c.Register(cCtx.Context, fp.Bytes())
	} else {
		receipt, err = c.Revoke(cCtx.Context, fp.Bytes())
	}
	if receipt != nil {
		if printErr := printJSON(receipt); printErr != nil {
			return printErr
		}
	}
	return err
}

// fingerprintArg reads the first argument as a 0x-prefixed fingerprint or,
// failing that, as a file to hash.
func fingerprintArg(cCtx *cli.Context) (interfaces.Fingerprint, error) {
	arg := cCtx.Args().First()
	if arg == "" {
		return interfaces.Fingerprint{}, errors.New("missing file or fingerprint argument")
	}
	if strings.HasPrefix(arg, "0x") && len(arg) == 2+2*interfaces.FingerprintLength {
		return interfaces.NewFingerprintFromHex(arg)
	}

	f, err := os.Open(arg)
	if err != nil {
		return interfaces.Fingerprint{}, err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return interfaces.Fingerprint{}, fmt.Errorf("could not hash %s: %w", arg, err)
	}
	return interfaces.NewFingerprintFromBytes(h.Sum(nil))
}

func ownerArg(cCtx *cli.Context, c *clients.RegistryClient) (common.Address, error) {
	if cCtx.Args().Len() == 0 {
		return c.Address()
	}
	arg := cCtx.Args().First()
	if !common.IsHexAddress(arg) {
		return common.Address{}, fmt.Errorf("invalid address %q", arg)
	}
	return common.HexToAddress(arg), nil
}

func eventFilter(cCtx *cli.Context) (ledger.EventFilter, error) {
	filter := ledger.EventFilter{
		FromSeq: cCtx.Uint64(flagFrom.Name),
		Kind:    interfaces.EventKind(cCtx.String(flagKind.Name)),
		Limit:   cCtx.Int(flagLimit.Name),
	}
	if o := cCtx.String(flagOwner.Name); o != "" {
		if !common.IsHexAddress(o) {
			return filter, fmt.Errorf("invalid owner address %q", o)
		}
		owner := common.HexToAddress(o)
		filter.Owner = &owner
	}
	if f := cCtx.String(flagFingerprint.Name); f != "" {
		fp, err := interfaces.NewFingerprintFromHex(f)
		if err != nil {
			return filter, err
		}
		filter.Fingerprint = &fp
	}
	return filter, nil
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
