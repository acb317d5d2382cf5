package retriever_test

import (
	"context"
	"strings"
	"testing"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/lumia/pkg/model"
	"github.com/m-mizutani/lumia/pkg/usecase/retriever"
)

// mockStore emulates case-insensitive LIKE matching over an ordered slice
type mockStore struct {
	passages  []*model.Passage
	searchErr error
	findErr   error
	findCalls [][]string
}

func (m *mockStore) Search(ctx context.Context, table, pattern string, limit int) ([]*model.Passage, error) {
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	var out []*model.Passage
	p := strings.ToLower(pattern)
	for _, passage := range m.passages {
		if strings.Contains(strings.ToLower(passage.Title), p) || strings.Contains(strings.ToLower(passage.Body), p) {
			out = append(out, passage)
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *mockStore) FindFirst(ctx context.Context, table string, patterns []string) (*model.Passage, error) {
	m.findCalls = append(m.findCalls, patterns)
	if m.findErr != nil {
		return nil, m.findErr
	}
	for _, passage := range m.passages {
		for _, p := range patterns {
			if strings.Contains(strings.ToLower(passage.Body), strings.ToLower(p)) {
				return passage, nil
			}
		}
	}
	return nil, nil
}

func (m *mockStore) Insert(ctx context.Context, table string, passage *model.Passage) (bool, error) {
	m.passages = append(m.passages, passage)
	return true, nil
}

func (m *mockStore) Count(ctx context.Context, table string) (int, error) {
	return len(m.passages), nil
}

func (m *mockStore) EnsureTable(ctx context.Context, table string) error {
	return nil
}

func TestRetrieveDomainFilter(t *testing.T) {
	store := &mockStore{passages: []*model.Passage{
		{ID: 1, Title: "Bolsas", Body: "Bolsas de permanência da UFRN."},
		{ID: 2, Title: "Bolsas", Body: "Bolsas de permanência da UFPB para estudantes."},
		{ID: 3, Title: "Bolsas", Body: "Edital de bolsas da Universidade Federal da Paraíba."},
		{ID: 4, Title: "Bolsas", Body: "Outra bolsa qualquer."},
	}}
	r := retriever.New(store)

	got := r.Retrieve(context.Background(), "bolsas", "prape", 3)
	gt.A(t, got).Length(2)
	gt.Equal(t, got[0], "Bolsas de permanência da UFPB para estudantes.")
	gt.Equal(t, got[1], "Edital de bolsas da Universidade Federal da Paraíba.")
}

func TestRetrieveFallsBackToUnfiltered(t *testing.T) {
	store := &mockStore{passages: []*model.Passage{
		{ID: 1, Body: "Auxílio moradia da UFRN."},
		{ID: 2, Body: "Auxílio moradia genérico."},
	}}
	r := retriever.New(store)

	got := r.Retrieve(context.Background(), "moradia", "prape", 3)
	gt.A(t, got).Length(2)
	gt.Equal(t, got[0], "Auxílio moradia da UFRN.")
}

func TestRetrieveWithoutFilter(t *testing.T) {
	store := &mockStore{passages: []*model.Passage{
		{ID: 1, Body: "Auxílio moradia da UFRN."},
		{ID: 2, Body: "Auxílio moradia da UFPB."},
	}}
	r := retriever.New(store, retriever.WithDomainTerms())

	got := r.Retrieve(context.Background(), "moradia", "prape", 3)
	gt.A(t, got).Length(2)
}

func TestRetrieveLimit(t *testing.T) {
	store := &mockStore{}
	for i := 0; i < 10; i++ {
		store.passages = append(store.passages, &model.Passage{ID: int64(i), Body: "ufpb texto"})
	}

	got := retriever.New(store).Retrieve(context.Background(), "texto", "prape", retriever.DefaultLimit)
	gt.A(t, got).Length(3)
}

func TestRetrieveNonPositiveLimitUsesDefault(t *testing.T) {
	store := &mockStore{}
	for i := 0; i < 10; i++ {
		store.passages = append(store.passages, &model.Passage{ID: int64(i), Body: "ufpb texto"})
	}

	r := retriever.New(store)
	gt.A(t, r.Retrieve(context.Background(), "texto", "prape", 0)).Length(retriever.DefaultLimit)
	gt.A(t, r.Retrieve(context.Background(), "texto", "prape", -1)).Length(retriever.DefaultLimit)
}

func TestRetrieveStoreError(t *testing.T) {
	store := &mockStore{searchErr: goerr.New("database is locked")}

	got := retriever.New(store).Retrieve(context.Background(), "bolsas", "prape", 3)
	// nil would tell the generator that context was omitted
	gt.True(t, got != nil)
	gt.A(t, got).Length(0)
}

func TestRetrieveIsIdempotent(t *testing.T) {
	store := &mockStore{passages: []*model.Passage{
		{ID: 1, Body: "Restaurante universitário da UFPB."},
		{ID: 2, Body: "Restaurante do centro."},
		{ID: 3, Body: "Restaurante universitário aberto."},
	}}
	r := retriever.New(store, retriever.WithDomainTerms())
	ctx := context.Background()

	first := r.Retrieve(ctx, "Restaurante", "prape", 3)
	second := r.Retrieve(ctx, "Restaurante", "prape", 3)
	gt.Equal(t, first, second)
}

func TestBestMatch(t *testing.T) {
	store := &mockStore{passages: []*model.Passage{
		{ID: 1, Title: "Auxílios", Body: "Fixa os valores dos auxílios estudantis."},
		{ID: 2, Title: "Contato PRAE", Body: "Contato: email@exemplo.com, telefone (XX) XXXX-XXXX."},
	}}
	r := retriever.New(store)
	ctx := context.Background()

	t.Run("falls back to words longer than 3 characters", func(t *testing.T) {
		store.findCalls = nil
		body, ok, err := r.BestMatch(ctx, "Qual o contato da PRAE?", "prape")
		gt.NoError(t, err)
		gt.True(t, ok)
		gt.Equal(t, body, "Contato: email@exemplo.com, telefone (XX) XXXX-XXXX.")

		gt.A(t, store.findCalls).Length(2)
		gt.Equal(t, store.findCalls[0], []string{"Qual o contato da PRAE?"})
		gt.Equal(t, store.findCalls[1], []string{"Qual", "contato", "PRAE?"})
	})

	t.Run("whole question match wins", func(t *testing.T) {
		store.findCalls = nil
		body, ok, err := r.BestMatch(ctx, "valores dos auxílios", "prape")
		gt.NoError(t, err)
		gt.True(t, ok)
		gt.Equal(t, body, "Fixa os valores dos auxílios estudantis.")
		gt.A(t, store.findCalls).Length(1)
	})

	t.Run("nothing found", func(t *testing.T) {
		_, ok, err := r.BestMatch(ctx, "Como funciona o empréstimo de livros na biblioteca?", "prape")
		gt.NoError(t, err)
		gt.False(t, ok)
	})

	t.Run("only short words", func(t *testing.T) {
		store.findCalls = nil
		_, ok, err := r.BestMatch(ctx, "o RU é bom", "prape")
		gt.NoError(t, err)
		gt.False(t, ok)
		gt.A(t, store.findCalls).Length(1)
	})
}

func TestBestMatchStoreError(t *testing.T) {
	store := &mockStore{findErr: goerr.New("no such table: prape")}

	_, ok, err := retriever.New(store).BestMatch(context.Background(), "bolsa", "prape")
	gt.Error(t, err)
	gt.False(t, ok)
}

func TestKeywords(t *testing.T) {
	gt.Equal(t, retriever.Keywords("Qual o contato da PRAE?"), []string{"Qual", "contato", "PRAE?"})
	gt.Equal(t, retriever.Keywords("Há auxílio?"), []string{"auxílio?"})
	gt.Nil(t, retriever.Keywords("o RU"))
}
