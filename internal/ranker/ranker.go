// Package ranker scores documents against a query by weighted keyword hits.
package ranker

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"plower/internal/domain"
)

// DefaultTopK is used when Rank is called with topK <= 0.
const DefaultTopK = 3

// separators are replaced with spaces before splitting the query. The set
// covers ASCII punctuation plus Japanese punctuation and common particles.
const separators = ".,/#!$%^&*;:{}=-_`~()？。、はがをにでと"

var separatorReplacer = func() *strings.Replacer {
	var pairs []string
	for _, r := range separators {
		pairs = append(pairs, string(r), " ")
	}
	return strings.NewReplacer(pairs...)
}()

// Rank returns at most topK documents with a positive score, highest first.
// Equal scores keep their input order.
func Rank(query string, docs []domain.Document, topK int) []domain.ScoredDocument {
	if len(docs) == 0 {
		return []domain.ScoredDocument{}
	}
	if topK <= 0 {
		topK = DefaultTopK
	}
	terms := compileTerms(SearchTerms(query))

	scored := make([]domain.ScoredDocument, 0, len(docs))
	for _, d := range docs {
		if s := score(terms, d.Content); s > 0 {
			scored = append(scored, domain.ScoredDocument{Document: d, Score: s})
		}
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if topK > len(scored) {
		topK = len(scored)
	}
	return scored[:topK]
}

// Tokens splits a query into lowercase keywords longer than one character.
func Tokens(query string) []string {
	cleaned := separatorReplacer.Replace(strings.ToLower(query))
	var out []string
	for _, f := range strings.Fields(cleaned) {
		if utf8.RuneCountInString(f) > 1 {
			out = append(out, f)
		}
	}
	return out
}

// SearchTerms is the lowercased full query followed by its tokens, deduplicated
// in first-seen order.
func SearchTerms(query string) []string {
	all := append([]string{strings.ToLower(query)}, Tokens(query)...)
	seen := make(map[string]struct{}, len(all))
	terms := make([]string, 0, len(all))
	for _, t := range all {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		terms = append(terms, t)
	}
	return terms
}

type term struct {
	pattern *regexp.Regexp
	weight  int
}

func compileTerms(raw []string) []term {
	out := make([]term, 0, len(raw))
	for _, t := range raw {
		if t == "" {
			continue
		}
		out = append(out, term{
			pattern: regexp.MustCompile(regexp.QuoteMeta(t)),
			weight:  utf8.RuneCountInString(t),
		})
	}
	return out
}

func score(terms []term, content string) int {
	lower := strings.ToLower(content)
	total := 0
	for _, t := range terms {
		total += CountLiteral(t.pattern, lower) * t.weight
	}
	return total
}

// CountLiteral counts non-overlapping matches of an escaped literal pattern.
func CountLiteral(pattern *regexp.Regexp, text string) int {
	return len(pattern.FindAllStringIndex(text, -1))
}
