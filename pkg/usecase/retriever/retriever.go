package retriever

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/lumia/pkg/repository"
	"github.com/m-mizutani/lumia/pkg/utils/logging"
)

const DefaultLimit = 3

// DefaultDomainTerms are the institution names a passage must mention to
// pass the domain filter.
var DefaultDomainTerms = []string{"ufpb", "universidade federal da paraíba"}

// Retriever finds candidate context passages by substring matching
type Retriever struct {
	store       repository.PassageStore
	domainTerms []string
}

// Option is a functional option for Retriever
type Option func(*Retriever)

// WithDomainTerms replaces the domain filter terms. No terms disables the filter.
func WithDomainTerms(terms ...string) Option {
	return func(r *Retriever) {
		r.domainTerms = nil
		for _, term := range terms {
			if term = strings.ToLower(strings.TrimSpace(term)); term != "" {
				r.domainTerms = append(r.domainTerms, term)
			}
		}
	}
}

// New creates a Retriever with the default domain filter
func New(store repository.PassageStore, opts ...Option) *Retriever {
	r := &Retriever{
		store:       store,
		domainTerms: DefaultDomainTerms,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Retrieve returns up to limit passage bodies whose title or body contains the
// whole question. With a domain filter configured, passages mentioning the
// institution are preferred; if none does, the unfiltered candidates are kept.
// Store failures yield an empty result. A non-positive limit means DefaultLimit.
func (r *Retriever) Retrieve(ctx context.Context, question, table string, limit int) []string {
	logger := logging.From(ctx).With("table", table)
	if limit <= 0 {
		limit = DefaultLimit
	}

	passages, err := r.store.Search(ctx, table, question, limit)
	if err != nil {
		logger.Warn("failed to search context passages", "error", err)
		return []string{}
	}
	if len(passages) == 0 {
		logger.Debug("no context passage found")
		return []string{}
	}

	bodies := make([]string, 0, len(passages))
	for _, p := range passages {
		bodies = append(bodies, p.Body)
	}

	if len(r.domainTerms) == 0 {
		return bodies
	}

	filtered := make([]string, 0, len(bodies))
	for _, body := range bodies {
		if r.mentionsDomain(body) {
			filtered = append(filtered, body)
		}
	}
	if len(filtered) == 0 {
		logger.Debug("no passage mentions the institution, using unfiltered candidates", "count", len(bodies))
		return bodies
	}

	logger.Debug("context passages filtered by institution", "count", len(filtered), "candidates", len(bodies))
	return filtered
}

func (r *Retriever) mentionsDomain(body string) bool {
	lowered := strings.ToLower(body)
	for _, term := range r.domainTerms {
		if strings.Contains(lowered, term) {
			return true
		}
	}
	return false
}

// BestMatch returns the single passage body that best matches the question:
// first one containing the whole question, else the first one containing any
// word of the question longer than 3 characters.
func (r *Retriever) BestMatch(ctx context.Context, question, table string) (string, bool, error) {
	p, err := r.store.FindFirst(ctx, table, []string{question})
	if err != nil {
		return "", false, goerr.Wrap(err, "failed to search passage by question", goerr.V("table", table))
	}
	if p != nil {
		return p.Body, true, nil
	}

	words := Keywords(question)
	if len(words) == 0 {
		return "", false, nil
	}

	p, err = r.store.FindFirst(ctx, table, words)
	if err != nil {
		return "", false, goerr.Wrap(err, "failed to search passage by keywords", goerr.V("table", table))
	}
	if p == nil {
		return "", false, nil
	}
	return p.Body, true, nil
}

// Keywords splits the question on whitespace and keeps words longer than 3
// characters, punctuation included.
func Keywords(question string) []string {
	var words []string
	for _, w := range strings.Fields(question) {
		if utf8.RuneCountInString(w) > 3 {
			words = append(words, w)
		}
	}
	return words
}
