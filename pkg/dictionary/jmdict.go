package dictionary

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
)

// JMdictEntry matches the structure of jmdict-simplified entries.
type JMdictEntry struct {
	Id    string          `json:"id"`
	Kanji []JMdictElement `json:"kanji"`
	Kana  []JMdictElement `json:"kana"`
	Sense []JMdictSense   `json:"sense"`
}

type JMdictElement struct {
	Text   string   `json:"text"`
	Common bool     `json:"common"`
	Tags   []string `json:"tags"`
}

type JMdictSense struct {
	PartOfSpeech []string      `json:"partOfSpeech"`
	Misc         []string      `json:"misc"`
	Gloss        []JMdictGloss `json:"gloss"`
}

type JMdictGloss struct {
	Text string `json:"text"`
	Lang string `json:"lang"` // defaults to 'eng' if missing
}

// jmdictFile is the top-level jmdict-simplified document. Tags maps tag
// symbols to their descriptions.
type jmdictFile struct {
	Tags  map[string]string `json:"tags"`
	Words []JMdictEntry     `json:"words"`
}

// LoadJMdictSimplified reads a jmdict-simplified JSON file, either the full
// object wrapper { "tags": {...}, "words": [...] } or a bare array of entries.
// The returned map holds tag descriptions when the wrapper form is used.
func LoadJMdictSimplified(path string) ([]JMdictEntry, map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()
	return DecodeJMdictSimplified(f)
}

// DecodeJMdictSimplified is LoadJMdictSimplified for an arbitrary reader.
func DecodeJMdictSimplified(r io.Reader) ([]JMdictEntry, map[string]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, err
	}

	var doc jmdictFile
	if err := json.Unmarshal(data, &doc); err == nil && len(doc.Words) > 0 {
		return doc.Words, doc.Tags, nil
	}

	var entries []JMdictEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, nil, fmt.Errorf("failed to parse dictionary as object or array: %w", err)
	}
	return entries, nil, nil
}

// FromJMdict converts JMdict words into entries, one per sense, all sharing
// the word's id as GroupID. The headword is the first kanji form, or the first
// kana form for kana-only words. Words with a common form carry the "common"
// extra tag. JMdict has no frequency scores, so entries are unranked.
func FromJMdict(words []JMdictEntry) []Entry {
	var out []Entry
	for _, w := range words {
		if len(w.Kana) == 0 {
			continue
		}
		reading := w.Kana[0].Text
		term := reading
		if len(w.Kanji) > 0 {
			term = w.Kanji[0].Text
		}

		var extra []string
		if isCommon(w) {
			extra = append(extra, "common")
		}

		id, idErr := strconv.ParseInt(w.Id, 10, 64)
		for _, s := range w.Sense {
			meanings := make([]string, 0, len(s.Gloss))
			for _, g := range s.Gloss {
				meanings = append(meanings, g.Text)
			}
			e := Entry{
				Term:             term,
				Reading:          reading,
				PartOfSpeechTags: append([]string(nil), s.PartOfSpeech...),
				ExtraTags:        append(append([]string(nil), extra...), s.Misc...),
				Meanings:         meanings,
			}
			if idErr == nil {
				e.GroupID, e.Grouped = id, true
			}
			out = append(out, e)
		}
	}
	return out
}

func isCommon(w JMdictEntry) bool {
	for _, k := range w.Kanji {
		if k.Common {
			return true
		}
	}
	for _, k := range w.Kana {
		if k.Common {
			return true
		}
	}
	return false
}
