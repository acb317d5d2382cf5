package ingest_test

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/lumia/pkg/model"
	"github.com/m-mizutani/lumia/pkg/repository"
	"github.com/m-mizutani/lumia/pkg/usecase/ingest"
)

func TestImport(t *testing.T) {
	ctx := context.Background()
	db, err := repository.NewSQLite(ctx, filepath.Join(t.TempDir(), "lumia.db"))
	gt.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	input := strings.Join([]string{
		`{"title": "Contato PRAE", "body": "Contato: email@exemplo.com, telefone (XX) XXXX-XXXX."}`,
		``,
		`O Restaurante Universitário da UFPB funciona de segunda a sexta.`,
		`{"title": "Duplicado", "body": "Contato: email@exemplo.com, telefone (XX) XXXX-XXXX."}`,
		`{"title": "Sem corpo", "body": "  "}`,
		`{"title": "quebrado"`,
	}, "\n")

	uc := ingest.New(db)
	summary, err := uc.Import(ctx, "ufpb", strings.NewReader(input))
	gt.NoError(t, err)
	gt.Equal(t, summary.Read, 5)
	gt.Equal(t, summary.Inserted, 2)
	gt.Equal(t, summary.Skipped, 1)
	gt.Equal(t, summary.Invalid, 2)

	count, err := db.Count(ctx, "ufpb")
	gt.NoError(t, err)
	gt.Equal(t, count, 2)

	passages, err := db.Search(ctx, "ufpb", "Contato", 10)
	gt.NoError(t, err)
	gt.A(t, passages).Length(1)
	gt.Equal(t, passages[0].Title, "Contato PRAE")

	// Re-importing the same data is a no-op
	again, err := uc.Import(ctx, "ufpb", strings.NewReader(input))
	gt.NoError(t, err)
	gt.Equal(t, again.Inserted, 0)
	gt.Equal(t, again.Skipped, 3)

	count, err = db.Count(ctx, "ufpb")
	gt.NoError(t, err)
	gt.Equal(t, count, 2)
}

func TestImportInvalidTable(t *testing.T) {
	ctx := context.Background()
	db, err := repository.NewSQLite(ctx, filepath.Join(t.TempDir(), "lumia.db"))
	gt.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = ingest.New(db).Import(ctx, "prape; DROP TABLE prape", strings.NewReader("texto"))
	gt.Error(t, err)
	gt.True(t, errors.Is(err, repository.ErrInvalidTable))
}

type failingStore struct {
	repository.PassageStore
}

func (failingStore) EnsureTable(ctx context.Context, table string) error { return nil }

func (failingStore) Insert(ctx context.Context, table string, passage *model.Passage) (bool, error) {
	return false, errors.New("disk full")
}

func TestImportStoreFailure(t *testing.T) {
	summary, err := ingest.New(failingStore{}).Import(context.Background(), "prape", strings.NewReader("a\nb\n"))
	gt.Error(t, err)
	gt.NotNil(t, summary)
	gt.Equal(t, summary.Read, 1)
	gt.Equal(t, summary.Inserted, 0)
}
