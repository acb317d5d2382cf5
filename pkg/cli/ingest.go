package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/lumia/pkg/adapter"
	"github.com/m-mizutani/lumia/pkg/usecase/ingest"
	"github.com/urfave/cli/v3"
)

func ingestCommand() *cli.Command {
	var (
		cfg   config
		input string
		table string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "input",
			Aliases:     []string{"i"},
			Usage:       "Passage file (JSONL or plain text), local path or gs://bucket/object",
			Destination: &input,
			Required:    true,
		},
		&cli.StringFlag{
			Name:        "table",
			Aliases:     []string{"t"},
			Usage:       "Destination table",
			Value:       "prape",
			Sources:     cli.EnvVars("LUMIA_INGEST_TABLE"),
			Destination: &table,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)

	return &cli.Command{
		Name:  "ingest",
		Usage: "Import crawled passages into the text store",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setupLogger(ctx)

			db, err := cfg.newPassageStore(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			r, err := cfg.openInput(ctx, input)
			if err != nil {
				return err
			}
			defer r.Close()

			summary, err := ingest.New(db).Import(ctx, table, r)
			if err != nil {
				return goerr.Wrap(err, "failed to import passages", goerr.V("input", input))
			}

			fmt.Fprintf(c.Root().Writer, "read: %d, inserted: %d, duplicated: %d, invalid: %d\n",
				summary.Read, summary.Inserted, summary.Skipped, summary.Invalid)
			return nil
		},
	}
}

// openInput opens a local file, stdin for "-", or a Cloud Storage object
func (cfg *config) openInput(ctx context.Context, input string) (io.ReadCloser, error) {
	if input == "-" {
		return io.NopCloser(os.Stdin), nil
	}

	if strings.HasPrefix(input, "gs://") {
		bucket, key, err := adapter.ParseGCSURL(input)
		if err != nil {
			return nil, err
		}
		storage, err := adapter.NewStorage(ctx, bucket)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create storage")
		}
		return storage.Get(ctx, key)
	}

	f, err := os.Open(input)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open input", goerr.V("path", input))
	}
	return f, nil
}
