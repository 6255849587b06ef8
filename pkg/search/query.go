package search

import (
	"strconv"
	"strings"
)

// Mode selects how the search term is compared against entries.
type Mode string

const (
	ModeNone    Mode = ""
	ModeExact   Mode = "exact"
	ModeAny     Mode = "any"
	ModeBoth    Mode = "both"
	ModeEnExact Mode = "en_exact"
	ModeEnAny   Mode = "en_any"
)

// Valid reports whether m is one of the recognised modes.
func (m Mode) Valid() bool {
	switch m {
	case ModeExact, ModeAny, ModeBoth, ModeEnExact, ModeEnAny:
		return true
	}
	return false
}

// Kind is the primary selector of a parsed query.
type Kind int

const (
	// KindTerm selects by search term, optionally narrowed by a tag.
	KindTerm Kind = iota
	// KindTag selects by tag alone ("#noun", or "#" for every entry).
	KindTag
	// KindFrequency selects by exact frequency ("#frq12"), optionally
	// narrowed by a search term ("犬 #frq12").
	KindFrequency
)

func (k Kind) String() string {
	switch k {
	case KindTag:
		return "tag"
	case KindFrequency:
		return "frequency"
	default:
		return "term"
	}
}

// ParsedQuery is the structured form of a raw query string.
type ParsedQuery struct {
	Kind Kind
	Mode Mode

	SearchTerm string
	HasTerm    bool

	// TagFilter is empty with HasTag set for the "#" wildcard.
	TagFilter string
	HasTag    bool

	Frequency    int64
	HasFrequency bool

	// TagOnly is set when the query has no search term.
	TagOnly bool
}

const (
	frequencyPrefix = "#frq"
	tagPrefix       = "#"
	embeddedTag     = " #"
	embeddedFreq    = "frq"
)

// ParseQuery interprets rawQuery. The grammar is checked in order:
//
//	#frq<int>        exact frequency
//	#<tag>           tag only; "#" alone matches everything
//	<term> #<tag>    term narrowed by tag
//	<term> #frq<int> term narrowed by frequency
//	<term>           term only
//
// Any mode string is accepted; unrecognised modes never match a term.
func ParseQuery(rawQuery, mode string) (ParsedQuery, error) {
	q := ParsedQuery{Mode: Mode(mode)}
	s := strings.TrimSpace(rawQuery)

	switch {
	case strings.HasPrefix(s, frequencyPrefix):
		n, err := parseFrequency(s[len(frequencyPrefix):])
		if err != nil {
			return ParsedQuery{}, err
		}
		q.Kind = KindFrequency
		q.Frequency, q.HasFrequency = n, true
		q.TagOnly = true

	case strings.HasPrefix(s, tagPrefix):
		q.Kind = KindTag
		q.TagFilter, q.HasTag = strings.TrimSpace(s[len(tagPrefix):]), true
		q.TagOnly = true

	case strings.Contains(s, embeddedTag):
		left, right, _ := strings.Cut(s, embeddedTag)
		q.SearchTerm, q.HasTerm = strings.TrimSpace(left), true
		if strings.HasPrefix(right, embeddedFreq) {
			n, err := parseFrequency(right[len(embeddedFreq):])
			if err != nil {
				return ParsedQuery{}, err
			}
			q.Kind = KindFrequency
			q.Frequency, q.HasFrequency = n, true
		} else {
			q.Kind = KindTerm
			q.TagFilter, q.HasTag = strings.TrimSpace(right), true
		}

	default:
		q.Kind = KindTerm
		q.SearchTerm, q.HasTerm = s, true
	}
	return q, nil
}

func parseFrequency(raw string) (int64, error) {
	trimmed := strings.TrimSpace(raw)
	n, err := strconv.ParseInt(trimmed, 10, 64)
	if err != nil {
		return 0, invalidFrequency(trimmed)
	}
	return n, nil
}
