package cli

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/lumia/pkg/model"
	"github.com/m-mizutani/lumia/pkg/utils/logging"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/urfave/cli/v3"
)

const askQuestionTool = "ask_question"

type askQuestionParams struct {
	Question string `json:"question"`
}

type asker interface {
	Ask(ctx context.Context, question string) *model.Response
}

func mcpCommand() *cli.Command {
	var cfg config

	return &cli.Command{
		Name:  "mcp",
		Usage: "Serve the assistant as an MCP tool over stdio",
		Flags: assistantFlags(&cfg),
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setupLogger(ctx)

			uc, cleanup, err := cfg.newAssistant(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			server := newMCPServer(uc, c.Root().Version)
			logging.From(ctx).Info("serving MCP over stdio", "tool", askQuestionTool)
			if err := server.Run(ctx, &mcp.StdioTransport{}); err != nil {
				return goerr.Wrap(err, "MCP server stopped")
			}
			return nil
		},
	}
}

func newMCPServer(a asker, version string) *mcp.Server {
	if version == "" {
		version = "dev"
	}
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "lumia",
		Version: version,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        askQuestionTool,
		Description: "Answer a question about the Universidade Federal da Paraíba (UFPB): student assistance, academic records, cafeteria and institutional information. Answers are in Portuguese.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"question": {
					Type:        "string",
					Description: "The question in natural language, preferably in Portuguese",
				},
			},
			Required: []string{"question"},
		},
	}, askQuestionHandler(a))

	return server
}

func askQuestionHandler(a asker) func(context.Context, *mcp.CallToolRequest, *askQuestionParams) (*mcp.CallToolResult, any, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, params *askQuestionParams) (*mcp.CallToolResult, any, error) {
		question := strings.TrimSpace(params.Question)
		if question == "" {
			return nil, nil, goerr.New("A pergunta não pode estar vazia.")
		}

		resp := a.Ask(ctx, question)
		raw, err := json.Marshal(resp)
		if err != nil {
			return nil, nil, goerr.Wrap(err, "failed to encode response")
		}

		return &mcp.CallToolResult{
			Content: []mcp.Content{
				&mcp.TextContent{Text: resp.Answer},
				&mcp.TextContent{Text: string(raw)},
			},
		}, nil, nil
	}
}
