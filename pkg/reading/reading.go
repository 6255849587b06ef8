// Package reading derives furigana for dictionary headwords with a
// morphological analyzer.
package reading

import (
	"strings"
	"unicode"

	"github.com/ikawaha/kagome-dict/ipa"
	"github.com/ikawaha/kagome/v2/tokenizer"

	"github.com/japaniel/kotoba/pkg/dictionary"
)

// Token represents a single analyzed unit of text.
type Token struct {
	Surface  string // The text as it appears (e.g. "行っ")
	BaseForm string // The dictionary form (e.g. "行く")
	Reading  string // The pronunciation in katakana (e.g. "イッ")
	// PrimaryPOS is the first Kagome part-of-speech label.
	PrimaryPOS string
}

// Analyzer segments text with the IPA dictionary.
type Analyzer struct {
	t *tokenizer.Tokenizer
}

// NewAnalyzer creates a new tokenizer instance.
func NewAnalyzer() (*Analyzer, error) {
	t, err := tokenizer.New(ipa.Dict(), tokenizer.OmitBosEos())
	if err != nil {
		return nil, err
	}
	return &Analyzer{t: t}, nil
}

// Analyze breaks text into tokens with readings and base forms.
func (a *Analyzer) Analyze(text string) []Token {
	var result []Token
	for _, token := range a.t.Tokenize(text) {
		if token.Class == tokenizer.DUMMY || strings.TrimSpace(token.Surface) == "" {
			continue
		}

		// IPA features: 0 POS, 6 base form, 7 reading.
		features := token.Features()
		tok := Token{Surface: token.Surface, BaseForm: token.Surface}
		if len(features) > 0 {
			tok.PrimaryPOS = features[0]
		}
		if len(features) > 6 && features[6] != "*" {
			tok.BaseForm = features[6]
		}
		if len(features) > 7 && features[7] != "*" {
			tok.Reading = features[7]
		}
		result = append(result, tok)
	}
	return result
}

// Furigana splits term into ruby segments that spell reading. ok is false
// when term contains no kanji. If the analyzer's readings do not agree
// with reading the whole term becomes one segment.
func (a *Analyzer) Furigana(term, reading string) (segs []dictionary.FuriganaSegment, ok bool) {
	if !HasKanji(term) || reading == "" {
		return nil, false
	}
	want := ToHiragana(reading)

	var got strings.Builder
	for _, tok := range a.Analyze(term) {
		if !HasKanji(tok.Surface) {
			segs = append(segs, dictionary.FuriganaSegment{Ruby: tok.Surface})
			got.WriteString(ToHiragana(tok.Surface))
			continue
		}
		if tok.Reading == "" {
			return whole(term, want), true
		}
		r := ToHiragana(tok.Reading)
		segs = append(segs, splitOkurigana(tok.Surface, r)...)
		got.WriteString(r)
	}

	if got.String() != want || strings.Join(rubies(segs), "") != term {
		return whole(term, want), true
	}
	return merge(segs), true
}

func whole(term, reading string) []dictionary.FuriganaSegment {
	return []dictionary.FuriganaSegment{{Ruby: term, Rt: reading}}
}

func rubies(segs []dictionary.FuriganaSegment) []string {
	out := make([]string, len(segs))
	for i, s := range segs {
		out[i] = s.Ruby
	}
	return out
}

// splitOkurigana peels kana shared by surface and reading off both ends,
// so 走る/はしる becomes 走(はし) る.
func splitOkurigana(surface, reading string) []dictionary.FuriganaSegment {
	s, r := []rune(surface), []rune(ToHiragana(reading))

	head := 0
	for head < len(s) && head < len(r) && IsKana(s[head]) && toHira(s[head]) == r[head] {
		head++
	}
	tail := 0
	for tail < len(s)-head && tail < len(r)-head &&
		IsKana(s[len(s)-1-tail]) && toHira(s[len(s)-1-tail]) == r[len(r)-1-tail] {
		tail++
	}

	core := s[head : len(s)-tail]
	coreReading := r[head : len(r)-tail]
	if len(core) == 0 || len(coreReading) == 0 {
		return whole(surface, string(r))
	}

	var out []dictionary.FuriganaSegment
	if head > 0 {
		out = append(out, dictionary.FuriganaSegment{Ruby: string(s[:head])})
	}
	out = append(out, dictionary.FuriganaSegment{Ruby: string(core), Rt: string(coreReading)})
	if tail > 0 {
		out = append(out, dictionary.FuriganaSegment{Ruby: string(s[len(s)-tail:])})
	}
	return out
}

// merge joins adjacent kana-only segments.
func merge(segs []dictionary.FuriganaSegment) []dictionary.FuriganaSegment {
	var out []dictionary.FuriganaSegment
	for _, s := range segs {
		if n := len(out); n > 0 && s.Rt == "" && out[n-1].Rt == "" {
			out[n-1].Ruby += s.Ruby
			continue
		}
		out = append(out, s)
	}
	return out
}

// ToHiragana converts Katakana to Hiragana.
func ToHiragana(s string) string {
	runes := []rune(s)
	for i, r := range runes {
		runes[i] = toHira(r)
	}
	return string(runes)
}

func toHira(r rune) rune {
	if r >= 0x30A1 && r <= 0x30F6 {
		return r - 0x60
	}
	return r
}

// IsKana reports whether r is hiragana, katakana or the prolonged sound mark.
func IsKana(r rune) bool {
	return unicode.In(r, unicode.Hiragana, unicode.Katakana) || r == 'ー'
}

// HasKanji reports whether s contains at least one Han character.
func HasKanji(s string) bool {
	for _, r := range s {
		if unicode.Is(unicode.Han, r) {
			return true
		}
	}
	return false
}
