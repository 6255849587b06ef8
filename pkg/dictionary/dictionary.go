package dictionary

import "slices"

// Entry is a single dictionary sense row. Several entries may share a term and
// reading; they are merged at query time.
type Entry struct {
	Term             string
	Reading          string
	PartOfSpeechTags []string
	ExtraTags        []string
	// Frequency is only meaningful when Ranked is set. Higher sorts first.
	Frequency int64
	Ranked    bool
	Meanings  []string
	// GroupID correlates senses of one headword (JMdict sequence number).
	GroupID int64
	Grouped bool
}

// HasTag reports whether symbol appears in either tag list.
func (e Entry) HasTag(symbol string) bool {
	return slices.Contains(e.PartOfSpeechTags, symbol) || slices.Contains(e.ExtraTags, symbol)
}

// FuriganaSegment is one ruby span: Ruby is the base text, Rt its reading.
// Rt is empty for kana spans.
type FuriganaSegment struct {
	Ruby string `json:"ruby"`
	Rt   string `json:"rt,omitempty"`
}

// FuriganaEntry annotates a (term, reading) pair.
type FuriganaEntry struct {
	Term     string
	Reading  string
	Segments []FuriganaSegment
}

// Store holds the loaded entries and furigana. It is read-only after
// construction and safe for concurrent use.
type Store struct {
	entries  []Entry
	furigana map[string][]FuriganaEntry
	nFuri    int
}

// NewStore builds a store. Entry order is preserved; it is the tie-break order
// for equal frequencies.
func NewStore(entries []Entry, furigana []FuriganaEntry) *Store {
	s := &Store{
		entries:  entries,
		furigana: make(map[string][]FuriganaEntry),
		nFuri:    len(furigana),
	}
	for _, f := range furigana {
		s.furigana[f.Term] = append(s.furigana[f.Term], f)
	}
	return s
}

// Entries returns the entries in load order. Callers must not modify the slice.
func (s *Store) Entries() []Entry {
	if s == nil {
		return nil
	}
	return s.entries
}

// Furigana returns the segments of the first annotation for term whose
// reading matches exactly.
func (s *Store) Furigana(term, reading string) ([]FuriganaSegment, bool) {
	if s == nil {
		return nil, false
	}
	for _, f := range s.furigana[term] {
		if f.Reading == reading {
			return f.Segments, true
		}
	}
	return nil, false
}

// Len returns the number of entries.
func (s *Store) Len() int {
	if s == nil {
		return 0
	}
	return len(s.entries)
}

// FuriganaLen returns the number of furigana annotations.
func (s *Store) FuriganaLen() int {
	if s == nil {
		return 0
	}
	return s.nFuri
}
