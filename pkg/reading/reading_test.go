package reading

import (
	"reflect"
	"testing"

	"github.com/japaniel/kotoba/pkg/dictionary"
)

func TestToHiragana(t *testing.T) {
	tests := []struct {
		in, out string
	}{
		{"ア", "あ"},
		{"カ", "か"},
		{"ガ", "が"},
		{"パ", "ぱ"},
		{"ン", "ん"},
		{"ー", "ー"},
		{"abc", "abc"},
		{"あいう", "あいう"},
		{"ハシル", "はしる"},
	}
	for _, tt := range tests {
		if got := ToHiragana(tt.in); got != tt.out {
			t.Errorf("ToHiragana(%q) = %q; want %q", tt.in, got, tt.out)
		}
	}
}

func TestHasKanji(t *testing.T) {
	if !HasKanji("走る") {
		t.Error("走る contains kanji")
	}
	if HasKanji("はしる") || HasKanji("テスト") || HasKanji("") {
		t.Error("kana-only strings have no kanji")
	}
}

func TestSplitOkurigana(t *testing.T) {
	tests := []struct {
		surface, reading string
		want             []dictionary.FuriganaSegment
	}{
		{"走る", "はしる", []dictionary.FuriganaSegment{{Ruby: "走", Rt: "はし"}, {Ruby: "る"}}},
		{"お茶", "おちゃ", []dictionary.FuriganaSegment{{Ruby: "お"}, {Ruby: "茶", Rt: "ちゃ"}}},
		{"犬", "イヌ", []dictionary.FuriganaSegment{{Ruby: "犬", Rt: "いぬ"}}},
		// Interior kana stays inside the segment.
		{"食べ物", "たべもの", []dictionary.FuriganaSegment{{Ruby: "食べ物", Rt: "たべもの"}}},
	}
	for _, tt := range tests {
		got := splitOkurigana(tt.surface, tt.reading)
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("splitOkurigana(%q, %q) = %+v; want %+v", tt.surface, tt.reading, got, tt.want)
		}
	}
}

func TestMerge(t *testing.T) {
	got := merge([]dictionary.FuriganaSegment{
		{Ruby: "見", Rt: "み"}, {Ruby: "せ"}, {Ruby: "る"},
	})
	want := []dictionary.FuriganaSegment{{Ruby: "見", Rt: "み"}, {Ruby: "せる"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("merge = %+v; want %+v", got, want)
	}
}

func TestAnalyzerFurigana(t *testing.T) {
	a, err := NewAnalyzer()
	if err != nil {
		t.Fatalf("NewAnalyzer: %v", err)
	}

	segs, ok := a.Furigana("走る", "はしる")
	if !ok {
		t.Fatal("expected furigana for 走る")
	}
	want := []dictionary.FuriganaSegment{{Ruby: "走", Rt: "はし"}, {Ruby: "る"}}
	if !reflect.DeepEqual(segs, want) {
		t.Errorf("Furigana(走る) = %+v; want %+v", segs, want)
	}

	if _, ok := a.Furigana("ねこ", "ねこ"); ok {
		t.Error("kana-only term should not get furigana")
	}

	// A reading the analyzer cannot reproduce falls back to one segment.
	segs, ok = a.Furigana("犬", "ケン")
	if !ok {
		t.Fatal("expected fallback furigana")
	}
	if want := []dictionary.FuriganaSegment{{Ruby: "犬", Rt: "けん"}}; !reflect.DeepEqual(segs, want) {
		t.Errorf("fallback = %+v; want %+v", segs, want)
	}
}

func TestAnalyze(t *testing.T) {
	a, err := NewAnalyzer()
	if err != nil {
		t.Fatalf("NewAnalyzer: %v", err)
	}
	tokens := a.Analyze("猫が走った")
	if len(tokens) == 0 {
		t.Fatal("no tokens")
	}
	if tokens[0].Surface != "猫" || tokens[0].Reading != "ネコ" {
		t.Errorf("first token = %+v", tokens[0])
	}
	found := false
	for _, tok := range tokens {
		if tok.BaseForm == "走る" {
			found = true
		}
	}
	if !found {
		t.Error("expected base form 走る")
	}
}
