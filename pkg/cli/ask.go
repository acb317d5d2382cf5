package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/lumia/pkg/model"
	"github.com/urfave/cli/v3"
)

func askCommand() *cli.Command {
	var (
		cfg     config
		verbose bool
	)

	flags := []cli.Flag{
		&cli.BoolFlag{
			Name:        "verbose",
			Aliases:     []string{"v"},
			Usage:       "Show raw answer, logs and timing",
			Destination: &verbose,
		},
	}
	flags = append(flags, assistantFlags(&cfg)...)

	return &cli.Command{
		Name:      "ask",
		Usage:     "Answer a single question",
		ArgsUsage: "<question>",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			question := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
			if question == "" {
				return goerr.New("question is required")
			}

			ctx = cfg.setupLogger(ctx)
			uc, cleanup, err := cfg.newAssistant(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			sp := newSpinner("Pensando...")
			sp.Start()
			resp := uc.Ask(ctx, question)
			sp.Stop()

			printResponse(c.Root().Writer, resp, verbose)
			return nil
		},
	}
}

func newSpinner(suffix string) *spinner.Spinner {
	sp := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
	sp.Suffix = " " + suffix
	return sp
}

func printResponse(w io.Writer, resp *model.Response, verbose bool) {
	fmt.Fprintln(w, resp.Answer)
	if !verbose {
		return
	}

	fmt.Fprintln(w)
	if resp.Agent != "" {
		fmt.Fprintf(w, "agent: %s\n", resp.Agent)
	}
	if resp.RawAnswer != nil {
		fmt.Fprintf(w, "raw answer: %s\n", *resp.RawAnswer)
	}
	if resp.ModelUsed != nil {
		fmt.Fprintf(w, "model: %s\n", *resp.ModelUsed)
	}
	fmt.Fprintf(w, "processing time: %.1f ms\n", resp.ProcessingTimeMS)
	for _, l := range resp.Logs {
		fmt.Fprintf(w, "  - %s\n", l)
	}
}
