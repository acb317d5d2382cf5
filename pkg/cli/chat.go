package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func chatCommand() *cli.Command {
	var (
		cfg         config
		historyFile string
		verbose     bool
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "history-file",
			Usage:       "File keeping the prompt history",
			Value:       defaultHistoryFile(),
			Sources:     cli.EnvVars("LUMIA_CHAT_HISTORY"),
			Destination: &historyFile,
		},
		&cli.BoolFlag{
			Name:        "verbose",
			Aliases:     []string{"v"},
			Usage:       "Show raw answer, logs and timing",
			Destination: &verbose,
		},
	}
	flags = append(flags, assistantFlags(&cfg)...)

	return &cli.Command{
		Name:  "chat",
		Usage: "Ask questions interactively",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setupLogger(ctx)
			uc, cleanup, err := cfg.newAssistant(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			rl, err := readline.NewEx(&readline.Config{
				Prompt:          "> ",
				HistoryFile:     historyFile,
				InterruptPrompt: "^C",
				EOFPrompt:       "exit",
			})
			if err != nil {
				return goerr.Wrap(err, "failed to start prompt")
			}
			defer rl.Close()

			w := c.Root().Writer
			fmt.Fprintf(w, "Olá! Sou o LumIA. Faça sua pergunta sobre a UFPB (digite 'sair' para encerrar).\n")

			for {
				line, err := rl.Readline()
				if errors.Is(err, readline.ErrInterrupt) {
					if line == "" {
						break
					}
					continue
				}
				if errors.Is(err, io.EOF) {
					break
				}
				if err != nil {
					return goerr.Wrap(err, "failed to read input")
				}

				question := strings.TrimSpace(line)
				if question == "" {
					continue
				}
				if question == "sair" || question == "exit" {
					break
				}

				sp := newSpinner("Pensando...")
				sp.Start()
				resp := uc.Ask(ctx, question)
				sp.Stop()

				printResponse(w, resp, verbose)
				fmt.Fprintln(w)
			}

			fmt.Fprintf(w, "Até logo!\n")
			return nil
		},
	}
}

func defaultHistoryFile() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "lumia", "chat_history")
}
