package main

import (
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"

	"github.com/ruteri/document-registry/cmd/flags"
	"github.com/ruteri/document-registry/interfaces"
	"github.com/ruteri/document-registry/ledger"
	"github.com/ruteri/document-registry/snapshot"
	"github.com/ruteri/document-registry/storage"
	"github.com/urfave/cli/v2"
)

var flagDatabase = &cli.StringFlag{
	Name:     flags.DatabaseFlag.Name,
	Usage:    flags.DatabaseFlag.Usage,
	EnvVars:  flags.DatabaseFlag.EnvVars,
	Required: true,
}

var flagBackends = &cli.StringSliceFlag{
	Name:     flags.SnapshotBackendsFlag.Name,
	Usage:    flags.SnapshotBackendsFlag.Usage,
	EnvVars:  flags.SnapshotBackendsFlag.EnvVars,
	Required: true,
}

var flagFile = &cli.StringFlag{
	Name:  "file",
	Usage: "snapshot file; - for stdin/stdout",
	Value: "-",
}

var flagContentID = &cli.StringFlag{
	Name:     "id",
	Usage:    "content ID of the archived snapshot",
	Required: true,
}

func main() {
	app := &cli.App{
		Name:  "registry-admin",
		Usage: "Offline maintenance of a registry database (stop the server first)",
		Flags: flags.LogFlags,
		Commands: []*cli.Command{
			{
				Name:  "snapshot",
				Usage: "export, archive and restore registry state",
				Subcommands: []*cli.Command{
					{
						Name:   "export",
						Usage:  "write the current state as a snapshot file",
						Flags:  []cli.Flag{flagDatabase, flagFile},
						Action: exportSnapshot,
					},
					{
						Name:   "archive",
						Usage:  "store the current state in the snapshot backends",
						Flags:  []cli.Flag{flagDatabase, flagBackends},
						Action: archiveSnapshot,
					},
					{
						Name:   "import",
						Usage:  "load a snapshot file into an empty database",
						Flags:  []cli.Flag{flagDatabase, flagFile},
						Action: importSnapshot,
					},
					{
						Name:   "restore",
						Usage:  "load an archived snapshot into an empty database",
						Flags:  []cli.Flag{flagDatabase, flagBackends, flagContentID},
						Action: restoreSnapshot,
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func openLedger(cCtx *cli.Context, logger *slog.Logger) (ledger.Database, *ledger.Ledger, error) {
	db, err := ledger.OpenDatabase(cCtx.String(flagDatabase.Name), logger)
	if err != nil {
		return nil, nil, err
	}
	l, err := ledger.New(db, ledger.WithLogger(logger))
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	return db, l, nil
}

func openArchive(cCtx *cli.Context, logger *slog.Logger) (interfaces.StorageBackend, error) {
	locations, err := storage.ParseLocations(cCtx.StringSlice(flagBackends.Name))
	if err != nil {
		return nil, err
	}
	return storage.NewStorageBackendFactory(logger).CreateMultiBackend(locations)
}

func exportSnapshot(cCtx *cli.Context) error {
	logger := flags.SetupLogger(cCtx)
	db, l, err := openLedger(cCtx, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	snap, err := snapshot.Export(l)
	if err != nil {
		return err
	}
	data, err := snap.Encode()
	if err != nil {
		return err
	}

	if path := cCtx.String(flagFile.Name); path != "-" {
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return err
		}
	} else if _, err := os.Stdout.Write(append(data, '\n')); err != nil {
		return err
	}
	logger.Info("Snapshot exported", "height", snap.Height, "documents", len(snap.Documents),
		"contentID", interfaces.ComputeID(data).String())
	return nil
}

func archiveSnapshot(cCtx *cli.Context) error {
	logger := flags.SetupLogger(cCtx)
	db, l, err := openLedger(cCtx, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	archive, err := openArchive(cCtx, logger)
	if err != nil {
		return err
	}
	snap, err := snapshot.Export(l)
	if err != nil {
		return err
	}
	id, err := snapshot.Archive(cCtx.Context, archive, snap)
	if err != nil {
		return err
	}

	logger.Info("Snapshot archived", "height", snap.Height, "documents", len(snap.Documents), "location", archive.LocationURI())
	fmt.Println(id.String())
	return nil
}

func importSnapshot(cCtx *cli.Context) error {
	logger := flags.SetupLogger(cCtx)

	var data []byte
	var err error
	if path := cCtx.String(flagFile.Name); path != "-" {
		data, err = os.ReadFile(path)
	} else {
		data, err = io.ReadAll(os.Stdin)
	}
	if err != nil {
		return err
	}
	snap, err := snapshot.Decode(data)
	if err != nil {
		return err
	}

	db, err := ledger.OpenDatabase(cCtx.String(flagDatabase.Name), logger)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := snapshot.Import(db, snap); err != nil {
		return err
	}
	logger.Info("Snapshot imported", "height", snap.Height, "documents", len(snap.Documents))
	return nil
}

func restoreSnapshot(cCtx *cli.Context) error {
	logger := flags.SetupLogger(cCtx)

	id, err := interfaces.NewContentIDFromHex(cCtx.String(flagContentID.Name))
	if err != nil {
		return err
	}
	archive, err := openArchive(cCtx, logger)
	if err != nil {
		return err
	}

	db, err := ledger.OpenDatabase(cCtx.String(flagDatabase.Name), logger)
	if err != nil {
		return err
	}
	defer db.Close()

	snap, err := snapshot.Restore(cCtx.Context, archive, id, db)
	if err != nil {
		return err
	}
	logger.Info("Snapshot restored", "contentID", id.String(), "height", snap.Height, "documents", len(snap.Documents))
	return nil
}
