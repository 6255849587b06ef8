package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/japaniel/kotoba/pkg/dictionary"
	"github.com/japaniel/kotoba/pkg/tags"
)

// DBExecutor is an interface that allows methods to accept either *sql.DB or *sql.Tx
type DBExecutor interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
	Query(query string, args ...interface{}) (*sql.Rows, error)
	QueryRow(query string, args ...interface{}) *sql.Row
}

// CreateOrGetSource returns the id of the source row for path, creating it
// if needed. The record count is refreshed on every call.
func CreateOrGetSource(db DBExecutor, kind, path string, records int) (int64, error) {
	trimmedPath := strings.TrimSpace(path)
	if trimmedPath == "" {
		return 0, fmt.Errorf("path must be non-empty")
	}
	if strings.TrimSpace(kind) == "" {
		return 0, fmt.Errorf("kind must be non-empty")
	}

	var id int64
	err := db.QueryRow(`INSERT INTO sources (kind, path, records)
		VALUES (?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
		  kind = excluded.kind,
		  records = excluded.records
		RETURNING id`, kind, trimmedPath, records).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert source: %w", err)
	}
	return id, nil
}

// GetSourceProgress returns how many records of a source have been committed.
func GetSourceProgress(db DBExecutor, sourceID int64) (int, error) {
	var n int
	err := db.QueryRow("SELECT last_processed FROM sources WHERE id = ?", sourceID).Scan(&n)
	if err != nil {
		return 0, err
	}
	return n, nil
}

// UpdateSourceProgress records that the first n records have been committed.
func UpdateSourceProgress(db DBExecutor, sourceID int64, n int) error {
	_, err := db.Exec("UPDATE sources SET last_processed = ?, imported_at = ? WHERE id = ?", n, time.Now().UTC(), sourceID)
	return err
}

// ListSources returns every imported source ordered by id.
func ListSources(db DBExecutor) ([]Source, error) {
	rows, err := db.Query(`SELECT id, kind, path, records, last_processed, imported_at FROM sources ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Source
	for rows.Next() {
		var s Source
		if err := rows.Scan(&s.ID, &s.Kind, &s.Path, &s.Records, &s.LastProcessed, &s.ImportedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// InsertTag stores a tag definition. An existing symbol is left untouched,
// so the first definition imported wins.
func InsertTag(db DBExecutor, def tags.Definition) error {
	sym := strings.TrimSpace(def.Symbol)
	if sym == "" {
		return fmt.Errorf("tag symbol must be non-empty")
	}
	_, err := db.Exec(`INSERT INTO tags (symbol, category, sort_order, description, score)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(symbol) DO NOTHING`,
		sym, def.Category, def.Order, def.Description, def.Score)
	if err != nil {
		return fmt.Errorf("insert tag %q: %w", sym, err)
	}
	return nil
}

// InsertEntry appends an entry and returns its row id. sourceID may be 0.
func InsertEntry(db DBExecutor, e dictionary.Entry, sourceID int64) (int64, error) {
	if strings.TrimSpace(e.Term) == "" {
		return 0, fmt.Errorf("entry term must be non-empty")
	}
	meanings, err := json.Marshal(nonNil(e.Meanings))
	if err != nil {
		return 0, fmt.Errorf("encode meanings: %w", err)
	}

	var freq, group interface{}
	if e.Ranked {
		freq = e.Frequency
	}
	if e.Grouped {
		group = e.GroupID
	}

	res, err := db.Exec(`INSERT INTO entries (term, reading, pos_tags, extra_tags, frequency, group_id, meanings, source_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Term, e.Reading,
		strings.Join(e.PartOfSpeechTags, " "), strings.Join(e.ExtraTags, " "),
		freq, group, string(meanings), nullableInt64(sourceID))
	if err != nil {
		return 0, fmt.Errorf("insert entry %q: %w", e.Term, err)
	}
	return res.LastInsertId()
}

// InsertFurigana stores a furigana annotation. The first annotation for a
// term and reading wins.
func InsertFurigana(db DBExecutor, f dictionary.FuriganaEntry) error {
	segs, err := json.Marshal(f.Segments)
	if err != nil {
		return fmt.Errorf("encode furigana: %w", err)
	}
	_, err = db.Exec(`INSERT INTO furigana (term, reading, segments) VALUES (?, ?, ?)
		ON CONFLICT(term, reading) DO NOTHING`, f.Term, f.Reading, string(segs))
	if err != nil {
		return fmt.Errorf("insert furigana %q: %w", f.Term, err)
	}
	return nil
}

// LoadTags returns tag definitions in insertion order.
func LoadTags(db DBExecutor) ([]tags.Definition, error) {
	rows, err := db.Query(`SELECT symbol, category, sort_order, description, score FROM tags ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []tags.Definition
	for rows.Next() {
		var d tags.Definition
		if err := rows.Scan(&d.Symbol, &d.Category, &d.Order, &d.Description, &d.Score); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// LoadEntries returns every entry in insertion order.
func LoadEntries(db DBExecutor) ([]dictionary.Entry, error) {
	rows, err := db.Query(`SELECT term, reading, pos_tags, extra_tags, frequency, group_id, meanings FROM entries ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []dictionary.Entry
	for rows.Next() {
		var e dictionary.Entry
		var pos, extra, meanings string
		var freq, group sql.NullInt64
		if err := rows.Scan(&e.Term, &e.Reading, &pos, &extra, &freq, &group, &meanings); err != nil {
			return nil, err
		}
		e.PartOfSpeechTags = strings.Fields(pos)
		e.ExtraTags = strings.Fields(extra)
		if freq.Valid {
			e.Frequency, e.Ranked = freq.Int64, true
		}
		if group.Valid {
			e.GroupID, e.Grouped = group.Int64, true
		}
		if err := json.Unmarshal([]byte(meanings), &e.Meanings); err != nil {
			return nil, fmt.Errorf("decode meanings of %q: %w", e.Term, err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// LoadFurigana returns every furigana annotation.
func LoadFurigana(db DBExecutor) ([]dictionary.FuriganaEntry, error) {
	rows, err := db.Query(`SELECT term, reading, segments FROM furigana`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []dictionary.FuriganaEntry
	for rows.Next() {
		var f dictionary.FuriganaEntry
		var segs string
		if err := rows.Scan(&f.Term, &f.Reading, &segs); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(segs), &f.Segments); err != nil {
			return nil, fmt.Errorf("decode furigana of %q: %w", f.Term, err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// CountEntries returns the number of stored entries.
func CountEntries(db DBExecutor) (int, error) {
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM entries`).Scan(&n)
	return n, err
}

// CountFurigana returns the number of stored furigana annotations.
func CountFurigana(db DBExecutor) (int, error) {
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM furigana`).Scan(&n)
	return n, err
}

// LoadDictionary reads the whole database into an in-memory store and tag
// resolver.
func LoadDictionary(db DBExecutor) (*dictionary.Store, *tags.Resolver, error) {
	defs, err := LoadTags(db)
	if err != nil {
		return nil, nil, fmt.Errorf("load tags: %w", err)
	}
	entries, err := LoadEntries(db)
	if err != nil {
		return nil, nil, fmt.Errorf("load entries: %w", err)
	}
	furigana, err := LoadFurigana(db)
	if err != nil {
		return nil, nil, fmt.Errorf("load furigana: %w", err)
	}
	return dictionary.NewStore(entries, furigana), tags.NewResolver(defs), nil
}

// nullableInt64 returns nil for 0 (meaning no row) else the value.
func nullableInt64(v int64) interface{} {
	if v == 0 {
		return nil
	}
	return v
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
