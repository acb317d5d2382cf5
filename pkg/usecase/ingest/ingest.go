package ingest

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/lumia/pkg/model"
	"github.com/m-mizutani/lumia/pkg/repository"
	"github.com/m-mizutani/lumia/pkg/utils/logging"
)

const maxLineSize = 1024 * 1024

// Summary reports the result of one import
type Summary struct {
	Read     int
	Inserted int
	Skipped  int // body already stored
	Invalid  int // undecodable or empty records
}

// record is one JSONL line
type record struct {
	Title string `json:"title"`
	Body  string `json:"body" validate:"required"`
}

// UseCase imports crawler output into the passage store
type UseCase struct {
	store    repository.PassageStore
	validate *validator.Validate
}

func New(store repository.PassageStore) *UseCase {
	return &UseCase{
		store:    store,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Import reads passages from r and inserts them into table. Each non-blank
// line is either a JSON object {"title": ..., "body": ...} or a plain text
// paragraph used as the body. Bad lines are counted and skipped; only store
// failures abort the import.
func (uc *UseCase) Import(ctx context.Context, table string, r io.Reader) (*Summary, error) {
	logger := logging.From(ctx).With("table", table)

	if err := uc.store.EnsureTable(ctx, table); err != nil {
		return nil, goerr.Wrap(err, "failed to prepare passage table")
	}

	summary := &Summary{}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		summary.Read++

		passage, err := uc.parseLine(line)
		if err != nil {
			logger.Warn("skip invalid line", "line", lineNo, "error", err)
			summary.Invalid++
			continue
		}

		inserted, err := uc.store.Insert(ctx, table, passage)
		if err != nil {
			return summary, goerr.Wrap(err, "failed to insert passage", goerr.V("line", lineNo))
		}
		if inserted {
			summary.Inserted++
		} else {
			summary.Skipped++
		}
	}
	if err := scanner.Err(); err != nil {
		return summary, goerr.Wrap(err, "failed to read passages", goerr.V("line", lineNo))
	}

	logger.Info("passages imported",
		"read", summary.Read,
		"inserted", summary.Inserted,
		"skipped", summary.Skipped,
		"invalid", summary.Invalid,
	)
	return summary, nil
}

func (uc *UseCase) parseLine(line string) (*model.Passage, error) {
	if !strings.HasPrefix(line, "{") {
		return &model.Passage{Body: line}, nil
	}

	var rec record
	if err := json.Unmarshal([]byte(line), &rec); err != nil {
		return nil, goerr.Wrap(err, "failed to decode JSON line")
	}
	rec.Title = strings.TrimSpace(rec.Title)
	rec.Body = strings.TrimSpace(rec.Body)
	if err := uc.validate.Struct(rec); err != nil {
		return nil, goerr.Wrap(model.ErrEmptyPassageBody, "invalid record", goerr.V("detail", err.Error()))
	}

	return &model.Passage{Title: rec.Title, Body: rec.Body}, nil
}
