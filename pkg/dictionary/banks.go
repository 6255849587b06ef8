package dictionary

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/japaniel/kotoba/pkg/tags"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ParseTermBank decodes a Yomitan term bank. Each row is
// [term, reading, definitionTags, rules, score, glossary, sequence, termTags].
func ParseTermBank(r io.Reader) ([]Entry, error) {
	var rows [][]json.RawMessage
	if err := decodeJSON(r, &rows); err != nil {
		return nil, fmt.Errorf("decode term bank: %w", err)
	}

	entries := make([]Entry, 0, len(rows))
	for i, row := range rows {
		if len(row) < 6 {
			return nil, fmt.Errorf("term bank row %d: expected at least 6 fields, got %d", i, len(row))
		}
		var e Entry
		var defTags, termTags string
		var score json.Number
		if err := json.Unmarshal(row[0], &e.Term); err != nil {
			return nil, fmt.Errorf("term bank row %d: term: %w", i, err)
		}
		if err := json.Unmarshal(row[1], &e.Reading); err != nil {
			return nil, fmt.Errorf("term bank row %d: reading: %w", i, err)
		}
		if err := unmarshalOptionalString(row[2], &defTags); err != nil {
			return nil, fmt.Errorf("term bank row %d: definition tags: %w", i, err)
		}
		if err := json.Unmarshal(row[4], &score); err != nil {
			return nil, fmt.Errorf("term bank row %d: score: %w", i, err)
		}
		freq, err := score.Int64()
		if err != nil {
			// Scores are occasionally written as floats.
			f, ferr := score.Float64()
			if ferr != nil {
				return nil, fmt.Errorf("term bank row %d: score %q: %w", i, score, err)
			}
			freq = int64(f)
		}
		meanings, err := parseGlossary(row[5])
		if err != nil {
			return nil, fmt.Errorf("term bank row %d: glossary: %w", i, err)
		}
		if len(row) > 6 {
			var seq json.Number
			if err := json.Unmarshal(row[6], &seq); err == nil {
				if n, err := seq.Int64(); err == nil {
					e.GroupID, e.Grouped = n, true
				}
			}
		}
		if len(row) > 7 {
			if err := unmarshalOptionalString(row[7], &termTags); err != nil {
				return nil, fmt.Errorf("term bank row %d: term tags: %w", i, err)
			}
		}

		e.PartOfSpeechTags = strings.Fields(defTags)
		e.ExtraTags = strings.Fields(termTags)
		e.Frequency, e.Ranked = freq, true
		e.Meanings = meanings
		entries = append(entries, e)
	}
	return entries, nil
}

// ParseTagBank decodes a Yomitan tag bank. Each row is
// [name, category, order, notes, score].
func ParseTagBank(r io.Reader) ([]tags.Definition, error) {
	var rows [][]json.RawMessage
	if err := decodeJSON(r, &rows); err != nil {
		return nil, fmt.Errorf("decode tag bank: %w", err)
	}

	defs := make([]tags.Definition, 0, len(rows))
	for i, row := range rows {
		if len(row) < 5 {
			return nil, fmt.Errorf("tag bank row %d: expected 5 fields, got %d", i, len(row))
		}
		var d tags.Definition
		var order, score json.Number
		if err := json.Unmarshal(row[0], &d.Symbol); err != nil {
			return nil, fmt.Errorf("tag bank row %d: name: %w", i, err)
		}
		if err := unmarshalOptionalString(row[1], &d.Category); err != nil {
			return nil, fmt.Errorf("tag bank row %d: category: %w", i, err)
		}
		if err := json.Unmarshal(row[2], &order); err != nil {
			return nil, fmt.Errorf("tag bank row %d: order: %w", i, err)
		}
		if err := unmarshalOptionalString(row[3], &d.Description); err != nil {
			return nil, fmt.Errorf("tag bank row %d: notes: %w", i, err)
		}
		if err := json.Unmarshal(row[4], &score); err != nil {
			return nil, fmt.Errorf("tag bank row %d: score: %w", i, err)
		}
		o, _ := order.Int64()
		s, _ := score.Int64()
		d.Order, d.Score = int(o), int(s)
		defs = append(defs, d)
	}
	return defs, nil
}

type furiganaRecord struct {
	Text     string            `json:"text"`
	Reading  string            `json:"reading"`
	Furigana []FuriganaSegment `json:"furigana"`
}

// ParseFurigana decodes a JmdictFurigana style file:
// [{"text": ..., "reading": ..., "furigana": [{"ruby": ..., "rt": ...}]}].
func ParseFurigana(r io.Reader) ([]FuriganaEntry, error) {
	var records []furiganaRecord
	if err := decodeJSON(r, &records); err != nil {
		return nil, fmt.Errorf("decode furigana: %w", err)
	}
	out := make([]FuriganaEntry, 0, len(records))
	for _, rec := range records {
		out = append(out, FuriganaEntry{Term: rec.Text, Reading: rec.Reading, Segments: rec.Furigana})
	}
	return out, nil
}

// decodeJSON reads all of r, drops a leading UTF-8 BOM (JmdictFurigana ships
// with one) and unmarshals into v.
func decodeJSON(r io.Reader, v any) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	data = bytes.TrimPrefix(data, utf8BOM)
	return json.Unmarshal(data, v)
}

func unmarshalOptionalString(raw json.RawMessage, dst *string) error {
	if len(raw) == 0 || string(raw) == "null" {
		*dst = ""
		return nil
	}
	return json.Unmarshal(raw, dst)
}

// parseGlossary flattens a glossary array. Items are plain strings, text
// objects ({"type":"text","text":...}) or structured content, whose text
// leaves are concatenated.
func parseGlossary(raw json.RawMessage) ([]string, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, err
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			out = append(out, s)
			continue
		}
		var obj map[string]any
		if err := json.Unmarshal(item, &obj); err != nil {
			return nil, err
		}
		if text, ok := obj["text"].(string); ok && obj["type"] == "text" {
			out = append(out, text)
			continue
		}
		if content, ok := obj["content"]; ok {
			var b strings.Builder
			flattenContent(content, &b)
			if b.Len() > 0 {
				out = append(out, b.String())
			}
		}
	}
	return out, nil
}

func flattenContent(node any, b *strings.Builder) {
	switch v := node.(type) {
	case string:
		b.WriteString(v)
	case []any:
		for _, child := range v {
			flattenContent(child, b)
		}
	case map[string]any:
		if v["tag"] == "rt" || v["tag"] == "rp" {
			return
		}
		if c, ok := v["content"]; ok {
			flattenContent(c, b)
		}
	}
}
