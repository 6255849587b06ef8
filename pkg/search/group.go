package search

import (
	"github.com/japaniel/kotoba/pkg/dictionary"
	"github.com/japaniel/kotoba/pkg/tags"
)

// FuriganaSource looks up furigana for a term and reading.
type FuriganaSource interface {
	Furigana(term, reading string) ([]dictionary.FuriganaSegment, bool)
}

// GroupedResult is every matched sense of one term+reading pair.
type GroupedResult struct {
	Term      string                       `json:"term"`
	Reading   string                       `json:"reading"`
	Meanings  []string                     `json:"meanings"`
	Furigana  []dictionary.FuriganaSegment `json:"furigana,omitempty"`
	Tags      []tags.Tag                   `json:"tags"`
	Frequency *int64                       `json:"frequency"`
}

type groupKey struct {
	term, reading string
}

// Group merges entries sharing a term and reading. Groups appear in order of
// first occurrence and take tags, furigana and frequency from that first
// entry; meanings accumulate across all entries in encounter order.
func Group(entries []dictionary.Entry, resolver TagResolver, furigana FuriganaSource) []GroupedResult {
	out := make([]GroupedResult, 0)
	index := make(map[groupKey]int)

	for _, e := range entries {
		key := groupKey{e.Term, e.Reading}
		i, seen := index[key]
		if !seen {
			g := GroupedResult{
				Term:     e.Term,
				Reading:  e.Reading,
				Meanings: make([]string, 0, len(e.Meanings)),
				Tags:     resolveTags(resolver, e),
			}
			if furigana != nil {
				if segs, ok := furigana.Furigana(e.Term, e.Reading); ok {
					g.Furigana = segs
				}
			}
			if e.Ranked {
				f := e.Frequency
				g.Frequency = &f
			}
			i = len(out)
			index[key] = i
			out = append(out, g)
		}
		out[i].Meanings = append(out[i].Meanings, e.Meanings...)
	}
	return out
}

// resolveTags lists part-of-speech tags then extra tags, once each. Symbols
// missing from the resolver are kept with a zero id and no description.
func resolveTags(resolver TagResolver, e dictionary.Entry) []tags.Tag {
	out := make([]tags.Tag, 0, len(e.PartOfSpeechTags)+len(e.ExtraTags))
	seen := make(map[string]struct{}, cap(out))
	add := func(sym string) {
		if _, dup := seen[sym]; dup {
			return
		}
		seen[sym] = struct{}{}
		if resolver != nil {
			if t, ok := resolver.Resolve(sym); ok {
				out = append(out, t)
				return
			}
		}
		out = append(out, tags.Tag{Symbol: sym})
	}
	for _, sym := range e.PartOfSpeechTags {
		add(sym)
	}
	for _, sym := range e.ExtraTags {
		add(sym)
	}
	return out
}
