// Package knowledge is the snippet retrieval collaborator. Retrieval is
// keyword-match over a YAML corpus; the Retriever interface is the
// boundary a richer search backend would slot in behind.
package knowledge

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Snippet is one retrievable knowledge unit.
type Snippet struct {
	ID       string   `yaml:"id" json:"id"`
	Title    string   `yaml:"title" json:"title"`
	Keywords []string `yaml:"keywords" json:"keywords"`
	Content  string   `yaml:"content" json:"content"`
}

// Retriever finds snippets relevant to a query.
type Retriever interface {
	Search(ctx context.Context, query string, limit int) ([]Snippet, error)
}

// Store is the keyword-match retriever over a loaded corpus.
type Store struct {
	snippets []Snippet
	logger   *slog.Logger
}

type corpusFile struct {
	Snippets []Snippet `yaml:"snippets"`
}

// NewStore loads the snippet corpus from path. A missing file yields an
// empty store: retrieval is an optional collaborator and the reply path
// must keep working without it.
func NewStore(log *slog.Logger, path string) (*Store, error) {
	if log == nil {
		log = slog.Default()
	}
	logger := log.With(slog.String("service", "knowledge"))

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Warn("snippet corpus missing, retrieval disabled", slog.String("path", path))
			return &Store{logger: logger}, nil
		}
		return nil, fmt.Errorf("read snippet corpus: %w", err)
	}

	var corpus corpusFile
	if err := yaml.Unmarshal(raw, &corpus); err != nil {
		return nil, fmt.Errorf("decode snippet corpus: %w", err)
	}

	logger.Info("snippet corpus loaded", slog.Int("snippets", len(corpus.Snippets)))
	return &Store{snippets: corpus.Snippets, logger: logger}, nil
}

// NewStaticStore builds a store from in-memory snippets.
func NewStaticStore(snippets []Snippet) *Store {
	return &Store{snippets: snippets, logger: slog.Default()}
}

// Len returns the number of loaded snippets.
func (s *Store) Len() int { return len(s.snippets) }

// Search scores snippets by keyword and title hits against the query and
// returns the top limit matches. Zero matches is a normal outcome.
func (s *Store) Search(_ context.Context, query string, limit int) ([]Snippet, error) {
	if limit <= 0 || len(s.snippets) == 0 {
		return nil, nil
	}
	queryLower := strings.ToLower(query)

	type scored struct {
		snippet Snippet
		score   int
	}
	var matches []scored
	for _, sn := range s.snippets {
		score := 0
		for _, kw := range sn.Keywords {
			kw = strings.ToLower(strings.TrimSpace(kw))
			if kw != "" && strings.Contains(queryLower, kw) {
				score += 2
			}
		}
		for _, word := range strings.Fields(strings.ToLower(sn.Title)) {
			if len(word) > 3 && strings.Contains(queryLower, word) {
				score++
			}
		}
		if score > 0 {
			matches = append(matches, scored{snippet: sn, score: score})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].score > matches[j].score })
	if len(matches) > limit {
		matches = matches[:limit]
	}
	out := make([]Snippet, 0, len(matches))
	for _, m := range matches {
		out = append(out, m.snippet)
	}
	return out, nil
}
