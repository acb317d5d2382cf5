package agent

import (
	"strings"
	"unicode"
)

// Binding ties an ordered keyword set to the agent it routes to
type Binding struct {
	Name     string
	Keywords []string
	Agent    Agent
}

// Match reports whether any keyword occurs in the lowered question.
// Punctuation in the question counts as a word separator and the question is
// padded with spaces, so a keyword like " ru " matches a standalone word.
func (b Binding) Match(lowered string) bool {
	normalized := " " + strings.Map(func(r rune) rune {
		if unicode.IsPunct(r) {
			return ' '
		}
		return r
	}, lowered) + " "

	for _, kw := range b.Keywords {
		if kw == "" {
			continue
		}
		if strings.Contains(lowered, kw) || strings.Contains(normalized, kw) {
			return true
		}
	}
	return false
}

var (
	SIGAAKeywords = []string{"sigaa", "matrícula", "matricula", "disciplina", "histórico", "trancamento", "nota", "atestado"}
	RUKeywords    = []string{" ru ", "restaurante universitário", "cardápio", "cardapio", "refeição", "almoço", "jantar"}
	PRAEKeywords  = []string{"prae", "prape", "auxílio", "assistência", "bolsa", "renda", "restaurante", "moradia", "psicológico", "pedagógico", "contato"}
	UFPBKeywords  = []string{"ufpb", "universidade", "reitoria", "centro", "campus", "edital"}
)

// DefaultPassageTable is the table backing the assistance programs agent
const DefaultPassageTable = "prape"

// DefaultBindings returns the built-in routing table. Order is priority:
// academic records, cafeteria, student assistance, then the institution.
func DefaultBindings(matcher Matcher, generator Generator) []Binding {
	return []Binding{
		{Name: "sigaa", Keywords: SIGAAKeywords, Agent: NewStub("sigaa")},
		{Name: "ru", Keywords: RUKeywords, Agent: NewStub("ru")},
		{
			Name:     "prae",
			Keywords: PRAEKeywords,
			Agent:    NewRetrievalBacked("prae", DefaultPassageTable, matcher, generator, WithTopic("a PRAPE")),
		},
		{Name: "ufpb", Keywords: UFPBKeywords, Agent: NewStub("ufpb")},
	}
}
