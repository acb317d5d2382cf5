package cli_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/lumia/pkg/cli"
	"github.com/m-mizutani/lumia/pkg/model"
	"github.com/m-mizutani/lumia/pkg/repository"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	gt.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func run(t *testing.T, argv ...string) {
	t.Helper()
	if err := cli.Run(context.Background(), argv); err != nil {
		t.Fatalf("command failed: %s", err.Message)
	}
}

func newLLMServer(t *testing.T, answer string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": answer}},
			},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestIngestAndAsk(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "data", "lumia.db")
	input := writeFile(t, "passages.jsonl",
		`{"title": "Contato PRAE", "body": "Contato: email@exemplo.com, telefone (XX) XXXX-XXXX."}`+"\n")

	run(t, "lumia", "ingest", "--db", dbPath, "--input", input, "--log-level", "error")

	llm := newLLMServer(t, "O contato da PRAE é email@exemplo.com.")
	run(t, "lumia", "ask",
		"--db", dbPath,
		"--llm-api-key", "test-key",
		"--llm-endpoint", llm.URL,
		"--log-level", "error",
		"Qual o contato da PRAE?",
	)

	db, err := repository.NewSQLite(ctx, dbPath)
	gt.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	count, err := db.Count(ctx, "prape")
	gt.NoError(t, err)
	gt.Equal(t, count, 1)

	interactions, err := db.ListInteractions(ctx, 10)
	gt.NoError(t, err)
	gt.A(t, interactions).Length(1)
	gt.Equal(t, interactions[0].Question, "Qual o contato da PRAE?")
	gt.Equal(t, interactions[0].Answer, "O contato da PRAE é email@exemplo.com.")
	gt.Equal(t, interactions[0].Agent, "prae")

	run(t, "lumia", "history", "--db", dbPath, "--log-level", "error")
	run(t, "lumia", "history", "--db", dbPath, "--id", string(interactions[0].ID), "--log-level", "error")
}

func TestAskWithRoutesFile(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "lumia.db")
	routes := writeFile(t, "routes.yaml", "routes:\n  - name: biblioteca\n    kind: stub\n    keywords: [biblioteca]\n")
	llm := newLLMServer(t, "Procure a biblioteca central.")

	run(t, "lumia", "ask",
		"--db", dbPath,
		"--llm-api-key", "test-key",
		"--llm-endpoint", llm.URL,
		"--routes", routes,
		"--history-backend", "sqlite",
		"--log-level", "error",
		"Como funciona o empréstimo de livros na biblioteca?",
	)

	db, err := repository.NewSQLite(ctx, dbPath)
	gt.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	interactions, err := db.ListInteractions(ctx, 10)
	gt.NoError(t, err)
	gt.A(t, interactions).Length(1)
	gt.Equal(t, interactions[0].Agent, "fallback")
}

func TestAskConfigErrors(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "lumia.db")
	t.Setenv("LUMIA_LLM_API_KEY", "")
	t.Setenv("GROQ_API_KEY", "")

	testCases := map[string][]string{
		"missing question": {"lumia", "ask", "--db", dbPath, "--llm-api-key", "k"},
		"missing api key":  {"lumia", "ask", "--db", dbPath, "pergunta"},
		"unknown backend":  {"lumia", "ask", "--db", dbPath, "--llm-backend", "openai", "pergunta"},
		"unknown history":  {"lumia", "ask", "--db", dbPath, "--llm-api-key", "k", "--history-backend", "s3", "pergunta"},
		"missing routes":   {"lumia", "ask", "--db", dbPath, "--llm-api-key", "k", "--routes", filepath.Join(t.TempDir(), "none.yaml"), "pergunta"},
		"bad limit":        {"lumia", "ask", "--db", dbPath, "--llm-api-key", "k", "--context-limit", "0", "pergunta"},
		"zero timeout":     {"lumia", "ask", "--db", dbPath, "--llm-api-key", "k", "--llm-timeout", "0s", "pergunta"},
		"negative timeout": {"lumia", "ask", "--db", dbPath, "--llm-api-key", "k", "--llm-timeout=-1s", "pergunta"},
		"firestore no id":  {"lumia", "ask", "--db", dbPath, "--llm-api-key", "k", "--history-backend", "firestore", "--firestore-project", "", "pergunta"},
	}

	for name, argv := range testCases {
		t.Run(name, func(t *testing.T) {
			t.Setenv("LUMIA_FIRESTORE_PROJECT", "")
			t.Setenv("GOOGLE_CLOUD_PROJECT", "")
			err := cli.Run(ctx, argv)
			gt.NotNil(t, err)
			gt.Equal(t, err.Code, 1)
		})
	}
}

func TestHistoryDisabled(t *testing.T) {
	err := cli.Run(context.Background(), []string{
		"lumia", "history", "--db", filepath.Join(t.TempDir(), "lumia.db"), "--history-backend", "none", "--log-level", "error",
	})
	gt.NotNil(t, err)
	gt.S(t, err.Message).Contains("interaction log is disabled")
}

type mockAsker struct {
	questions []string
}

func (m *mockAsker) Ask(ctx context.Context, question string) *model.Response {
	m.questions = append(m.questions, question)
	raw := "Contato: email@exemplo.com."
	return &model.Response{
		Answer:    "O contato da PRAE é email@exemplo.com.",
		RawAnswer: &raw,
		Logs:      []string{"router: pergunta roteada para o agente prae"},
	}
}

func connectMCP(t *testing.T, a *mockAsker) *mcp.ClientSession {
	t.Helper()
	ctx := context.Background()

	server := cli.NewMCPServer(a, "test")
	clientTransport, serverTransport := mcp.NewInMemoryTransports()
	ss, err := server.Connect(ctx, serverTransport, nil)
	gt.NoError(t, err)
	t.Cleanup(func() { _ = ss.Close() })

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)
	cs, err := client.Connect(ctx, clientTransport, nil)
	gt.NoError(t, err)
	t.Cleanup(func() { _ = cs.Close() })
	return cs
}

func TestMCPAskQuestion(t *testing.T) {
	a := &mockAsker{}
	cs := connectMCP(t, a)
	ctx := context.Background()

	tools, err := cs.ListTools(ctx, nil)
	gt.NoError(t, err)
	gt.A(t, tools.Tools).Length(1)
	gt.Equal(t, tools.Tools[0].Name, cli.AskQuestionTool)

	result, err := cs.CallTool(ctx, &mcp.CallToolParams{
		Name:      cli.AskQuestionTool,
		Arguments: map[string]any{"question": " Qual o contato da PRAE? "},
	})
	gt.NoError(t, err)
	gt.False(t, result.IsError)
	gt.A(t, result.Content).Length(2)

	answer, ok := result.Content[0].(*mcp.TextContent)
	gt.True(t, ok)
	gt.Equal(t, answer.Text, "O contato da PRAE é email@exemplo.com.")

	detail, ok := result.Content[1].(*mcp.TextContent)
	gt.True(t, ok)
	gt.True(t, strings.Contains(detail.Text, `"raw_answer":"Contato: email@exemplo.com."`))

	gt.Equal(t, a.questions, []string{"Qual o contato da PRAE?"})
}

func TestMCPRejectsEmptyQuestion(t *testing.T) {
	a := &mockAsker{}
	cs := connectMCP(t, a)

	result, err := cs.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      cli.AskQuestionTool,
		Arguments: map[string]any{"question": "   "},
	})
	gt.NoError(t, err)
	gt.True(t, result.IsError)
	gt.A(t, a.questions).Length(0)
}
