package cli

import (
	"context"

	"github.com/urfave/cli/v3"
)

type Error struct {
	Code    int
	Message string
}

func Run(ctx context.Context, argv []string) *Error {
	cmd := &cli.Command{
		Name:  "lumia",
		Usage: "Question answering assistant for UFPB students",
		Commands: []*cli.Command{
			serveCommand(),
			askCommand(),
			chatCommand(),
			ingestCommand(),
			historyCommand(),
			mcpCommand(),
		},
	}

	if err := cmd.Run(ctx, argv); err != nil {
		return &Error{
			Code:    1,
			Message: err.Error(),
		}
	}

	return nil
}
