package search

import (
	"sort"
	"strings"

	"github.com/japaniel/kotoba/pkg/dictionary"
	"github.com/japaniel/kotoba/pkg/tags"
)

// TagResolver resolves tag symbols.
type TagResolver interface {
	Resolve(symbol string) (tags.Tag, bool)
}

type predicate func(e dictionary.Entry) bool

// Match returns the entries selected by q, ordered by descending frequency.
// Unranked entries come last; ties keep store order. A tag filter naming an
// unknown tag matches nothing.
func Match(entries []dictionary.Entry, resolver TagResolver, q ParsedQuery) []dictionary.Entry {
	out := make([]dictionary.Entry, 0)

	preds, ok := predicates(resolver, q)
	if !ok {
		return out
	}

	for _, e := range entries {
		if matchesAll(preds, e) {
			out = append(out, e)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Ranked != b.Ranked {
			return a.Ranked
		}
		return a.Frequency > b.Frequency
	})
	return out
}

func matchesAll(preds []predicate, e dictionary.Entry) bool {
	for _, p := range preds {
		if !p(e) {
			return false
		}
	}
	return true
}

// predicates builds the conjunction for q. ok is false when the query can
// never match (unresolvable tag).
func predicates(resolver TagResolver, q ParsedQuery) ([]predicate, bool) {
	var preds []predicate

	switch q.Kind {
	case KindFrequency:
		want := q.Frequency
		preds = append(preds, func(e dictionary.Entry) bool {
			return e.Ranked && e.Frequency == want
		})
		if q.HasTerm {
			preds = append(preds, termPredicate(q.Mode, q.SearchTerm))
		}
	case KindTerm:
		preds = append(preds, termPredicate(q.Mode, q.SearchTerm))
	case KindTag:
		// selection is driven by the tag filter below
	}

	if q.HasTag && q.TagFilter != "" {
		if resolver == nil {
			return nil, false
		}
		tag, ok := resolver.Resolve(q.TagFilter)
		if !ok {
			return nil, false
		}
		preds = append(preds, func(e dictionary.Entry) bool {
			return e.HasTag(tag.Symbol)
		})
	}
	return preds, true
}

func never(dictionary.Entry) bool { return false }

// termPredicate compares term and reading case-sensitively and meanings
// case-insensitively.
func termPredicate(mode Mode, term string) predicate {
	switch mode {
	case ModeExact:
		return func(e dictionary.Entry) bool {
			return e.Term == term || e.Reading == term
		}
	case ModeAny:
		return func(e dictionary.Entry) bool {
			return strings.Contains(e.Term, term) || strings.Contains(e.Reading, term)
		}
	case ModeBoth:
		kanji, reading, ok := strings.Cut(term, ",")
		if !ok || strings.Contains(reading, ",") {
			return never
		}
		return func(e dictionary.Entry) bool {
			return e.Term == kanji && e.Reading == reading
		}
	case ModeEnExact:
		return func(e dictionary.Entry) bool {
			for _, m := range e.Meanings {
				if strings.EqualFold(m, term) {
					return true
				}
			}
			return false
		}
	case ModeEnAny:
		lower := strings.ToLower(term)
		return func(e dictionary.Entry) bool {
			for _, m := range e.Meanings {
				if strings.Contains(strings.ToLower(m), lower) {
					return true
				}
			}
			return false
		}
	default:
		return never
	}
}
