package cli

import (
	"context"
	"fmt"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/lumia/pkg/model"
	"github.com/urfave/cli/v3"
)

func historyCommand() *cli.Command {
	var (
		cfg   config
		id    string
		limit int64
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "id",
			Usage:       "Show a single interaction",
			Destination: &id,
		},
		&cli.IntFlag{
			Name:        "limit",
			Aliases:     []string{"l"},
			Usage:       "Maximum number of interactions to list",
			Value:       20,
			Sources:     cli.EnvVars("LUMIA_HISTORY_LIMIT"),
			Destination: &limit,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, historyFlags(&cfg)...)

	return &cli.Command{
		Name:  "history",
		Usage: "List recently answered questions",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setupLogger(ctx)

			db, err := cfg.newPassageStore(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			log, closeLog, err := cfg.newInteractionLog(ctx, db)
			if err != nil {
				return err
			}
			defer closeLog()
			if log == nil {
				return goerr.New("interaction log is disabled", goerr.V("backend", cfg.historyBackend))
			}

			w := c.Root().Writer
			if id != "" {
				interaction, err := log.GetInteraction(ctx, model.InteractionID(id))
				if err != nil {
					return goerr.Wrap(err, "failed to get interaction", goerr.V("id", id))
				}
				fmt.Fprintf(w, "ID:       %s\nDate:     %s\nAgent:    %s\nQuestion: %s\n\n%s\n",
					interaction.ID,
					interaction.CreatedAt.Local().Format("2006-01-02 15:04:05"),
					interaction.Agent,
					interaction.Question,
					interaction.Answer,
				)
				return nil
			}

			interactions, err := log.ListInteractions(ctx, int(limit))
			if err != nil {
				return goerr.Wrap(err, "failed to list interactions")
			}

			if len(interactions) == 0 {
				fmt.Fprintf(w, "No interactions recorded\n")
				return nil
			}

			for _, i := range interactions {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
					i.ID,
					i.CreatedAt.Local().Format("2006-01-02 15:04:05"),
					i.Agent,
					i.Question,
				)
			}
			return nil
		},
	}
}
