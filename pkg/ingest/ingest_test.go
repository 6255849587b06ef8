package ingest

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/japaniel/kotoba/pkg/db"
	"github.com/japaniel/kotoba/pkg/dictionary"
)

func setupDB(t testing.TB) *sql.DB {
	conn, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func testEntries(n int) []dictionary.Entry {
	entries := make([]dictionary.Entry, n)
	for i := range entries {
		entries[i] = dictionary.Entry{
			Term:             fmt.Sprintf("語%d", i),
			Reading:          fmt.Sprintf("ご%d", i),
			PartOfSpeechTags: []string{"n"},
			Frequency:        int64(i),
			Ranked:           true,
			Meanings:         []string{fmt.Sprintf("word %d", i)},
		}
	}
	return entries
}

// stubGenerator returns a single whole-word segment and counts calls.
type stubGenerator struct {
	calls atomic.Int32
}

func (g *stubGenerator) Furigana(term, reading string) ([]dictionary.FuriganaSegment, bool) {
	g.calls.Add(1)
	return []dictionary.FuriganaSegment{{Ruby: term, Rt: reading}}, true
}

func TestIngestPreservesOrder(t *testing.T) {
	conn := setupDB(t)

	sourceID, err := db.CreateOrGetSource(conn, db.KindTermBank, "term_bank_1.json", 50)
	if err != nil {
		t.Fatal(err)
	}
	ingester := NewIngester(conn, nil)
	ingester.BatchSize = 7
	ingester.Workers = 8

	count, err := ingester.Ingest(context.Background(), sourceID, testEntries(50))
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	if count != 50 {
		t.Fatalf("expected 50 entries, got %d", count)
	}

	got, err := db.LoadEntries(conn)
	if err != nil {
		t.Fatal(err)
	}
	for i, e := range got {
		if want := fmt.Sprintf("語%d", i); e.Term != want {
			t.Fatalf("entry %d is %s, want %s", i, e.Term, want)
		}
	}
	progress, err := db.GetSourceProgress(conn, sourceID)
	if err != nil || progress != 50 {
		t.Fatalf("progress = %d, %v; want 50", progress, err)
	}
}

func TestIngestResume(t *testing.T) {
	conn := setupDB(t)

	sourceID, err := db.CreateOrGetSource(conn, db.KindTermBank, "term_bank_1.json", 10)
	if err != nil {
		t.Fatal(err)
	}
	// Pretend the first 5 entries were committed by an earlier run.
	if err := db.UpdateSourceProgress(conn, sourceID, 5); err != nil {
		t.Fatal(err)
	}

	ingester := NewIngester(conn, nil)
	ingester.BatchSize = 2 // Verify batching doesn't interfere
	var last int
	ingester.OnProgress = func(current, total int) {
		if current <= last || total != 10 {
			t.Errorf("progress went from %d to %d/%d", last, current, total)
		}
		last = current
	}

	count, err := ingester.Ingest(context.Background(), sourceID, testEntries(10))
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	if count != 5 {
		t.Errorf("Expected 5 entries, got %d", count)
	}
	if last != 10 {
		t.Errorf("final progress = %d, want 10", last)
	}

	// Running again is a no-op.
	count, err = ingester.Ingest(context.Background(), sourceID, testEntries(10))
	if err != nil || count != 0 {
		t.Errorf("second run = %d, %v; want 0, nil", count, err)
	}
}

func TestIngestContextCancel(t *testing.T) {
	conn := setupDB(t)
	sourceID, _ := db.CreateOrGetSource(conn, db.KindTermBank, "bank.json", 100)

	ingester := NewIngester(conn, nil)
	ingester.BatchSize = 10

	// Create a context that is ALREADY canceled
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	count, err := ingester.Ingest(ctx, sourceID, testEntries(100))
	if count != 0 {
		t.Errorf("Expected 0 entries with cancelled context, got %d", count)
	}
	if err != context.Canceled {
		t.Errorf("Expected context.Canceled error, got %v", err)
	}
}

func TestIngestGeneratesMissingFurigana(t *testing.T) {
	conn := setupDB(t)

	if err := db.InsertFurigana(conn, dictionary.FuriganaEntry{
		Term: "語0", Reading: "ご0",
		Segments: []dictionary.FuriganaSegment{{Ruby: "語", Rt: "ご"}, {Ruby: "0"}},
	}); err != nil {
		t.Fatal(err)
	}

	entries := testEntries(3)
	// A second sense of the same headword must not trigger another generation.
	entries = append(entries, entries[1])

	gen := &stubGenerator{}
	ingester := NewIngester(conn, gen)
	sourceID, err := db.CreateOrGetSource(conn, db.KindTermBank, "bank.json", len(entries))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ingester.Ingest(context.Background(), sourceID, entries); err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}

	if got := gen.calls.Load(); got != 2 {
		t.Errorf("expected 2 generations, got %d", got)
	}
	furi, err := db.LoadFurigana(conn)
	if err != nil {
		t.Fatal(err)
	}
	if len(furi) != 3 {
		t.Fatalf("expected 3 furigana rows, got %d", len(furi))
	}
	for _, f := range furi {
		if f.Term == "語0" && len(f.Segments) != 2 {
			t.Errorf("imported furigana was overwritten: %+v", f)
		}
	}
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestImport(t *testing.T) {
	conn := setupDB(t)
	dir := t.TempDir()

	src := dictionary.Sources{
		TagBanks: []string{writeFile(t, dir, "tag_bank_1.json",
			`[["n","partOfSpeech",-3,"noun",0],["P","popular",-10,"popular term",10]]`)},
		TermBanks: []string{
			writeFile(t, dir, "term_bank_1.json",
				`[["犬","いぬ","n","",10,["dog"],1,"P"],["猫","ねこ","n","",12,["cat"],2,""]]`),
			writeFile(t, dir, "term_bank_2.json", `[["broken"`),
		},
		Furigana: []string{writeFile(t, dir, "furigana.json",
			`[{"text":"犬","reading":"いぬ","furigana":[{"ruby":"犬","rt":"いぬ"}]}]`)},
	}

	ingester := NewIngester(conn, &stubGenerator{})
	rep, err := ingester.Import(context.Background(), src)
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if rep.Entries != 2 || rep.Tags != 2 || rep.Furigana != 1 {
		t.Errorf("unexpected report %+v", rep)
	}
	if rep.Generated != 1 {
		t.Errorf("expected furigana generated for 猫 only, got %d", rep.Generated)
	}
	if len(rep.Warnings) != 1 {
		t.Errorf("expected one warning for the broken bank, got %v", rep.Warnings)
	}

	store, resolver, err := db.LoadDictionary(conn)
	if err != nil {
		t.Fatal(err)
	}
	if store.Len() != 2 || resolver.Len() != 2 {
		t.Fatalf("loaded %d entries and %d tags", store.Len(), resolver.Len())
	}

	// A second import finds every source complete.
	rep, err = ingester.Import(context.Background(), src)
	if err != nil {
		t.Fatalf("second Import failed: %v", err)
	}
	if rep.Entries != 0 || rep.Sources != 0 {
		t.Errorf("second import should skip everything, got %+v", rep)
	}
	n, _ := db.CountEntries(conn)
	if n != 2 {
		t.Errorf("expected 2 entries after re-import, got %d", n)
	}
}
