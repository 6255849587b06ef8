package dictionary

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/japaniel/kotoba/pkg/tags"
)

// Sources lists the files a Store is built from.
type Sources struct {
	TermBanks []string
	TagBanks  []string
	Furigana  []string
	JMdict    []string
}

// Empty reports whether no source file is configured.
func (s Sources) Empty() bool {
	return len(s.TermBanks)+len(s.TagBanks)+len(s.Furigana)+len(s.JMdict) == 0
}

// LoadWarning records a source file that could not be loaded.
type LoadWarning struct {
	Path string
	Err  error
}

func (w *LoadWarning) Error() string { return fmt.Sprintf("load %s: %v", w.Path, w.Err) }

func (w *LoadWarning) Unwrap() error { return w.Err }

// Result is the outcome of Load.
type Result struct {
	Store    *Store
	Tags     *tags.Resolver
	Warnings []*LoadWarning
}

var bankIndex = regexp.MustCompile(`_(\d+)\.json$`)

// DiscoverSources finds Yomitan term and tag banks in dir, ordered by bank
// number (term_bank_2.json sorts before term_bank_10.json).
func DiscoverSources(dir string) (Sources, error) {
	var src Sources
	terms, err := filepath.Glob(filepath.Join(dir, "term_bank_*.json"))
	if err != nil {
		return src, err
	}
	tagFiles, err := filepath.Glob(filepath.Join(dir, "tag_bank_*.json"))
	if err != nil {
		return src, err
	}
	sortBanks(terms)
	sortBanks(tagFiles)
	src.TermBanks = terms
	src.TagBanks = tagFiles
	return src, nil
}

func sortBanks(paths []string) {
	num := func(p string) int {
		m := bankIndex.FindStringSubmatch(filepath.Base(p))
		if m == nil {
			return -1
		}
		n, _ := strconv.Atoi(m[1])
		return n
	}
	sort.SliceStable(paths, func(i, j int) bool {
		ni, nj := num(paths[i]), num(paths[j])
		if ni != nj {
			return ni < nj
		}
		return paths[i] < paths[j]
	})
}

type fileResult struct {
	entries  []Entry
	tagDefs  []tags.Definition
	furigana []FuriganaEntry
}

// Load reads every source concurrently. A file that is missing or malformed
// is logged and reported as a warning; the rest still load. The only error
// returned is context cancellation. Entry order follows the order of
// JMdict files, then term banks, each in the order listed.
func Load(ctx context.Context, src Sources, workers int, logger *slog.Logger) (*Result, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if workers <= 0 {
		workers = 4
	}

	type job struct {
		path  string
		parse func(path string) (fileResult, error)
	}
	var jobs []job
	for _, p := range src.JMdict {
		jobs = append(jobs, job{p, loadJMdictFile})
	}
	for _, p := range src.TermBanks {
		jobs = append(jobs, job{p, loadTermBankFile})
	}
	for _, p := range src.TagBanks {
		jobs = append(jobs, job{p, loadTagBankFile})
	}
	for _, p := range src.Furigana {
		jobs = append(jobs, job{p, loadFuriganaFile})
	}

	results := make([]fileResult, len(jobs))
	var (
		mu       sync.Mutex
		warnings []*LoadWarning
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, j := range jobs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := j.parse(j.path)
			if err != nil {
				logger.Warn("dictionary source skipped", slog.String("path", j.path), slog.Any("error", err))
				mu.Lock()
				warnings = append(warnings, &LoadWarning{Path: j.path, Err: err})
				mu.Unlock()
				return nil
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var (
		entries  []Entry
		tagDefs  []tags.Definition
		furigana []FuriganaEntry
	)
	for _, r := range results {
		entries = append(entries, r.entries...)
		tagDefs = append(tagDefs, r.tagDefs...)
		furigana = append(furigana, r.furigana...)
	}
	sort.Slice(warnings, func(i, j int) bool { return warnings[i].Path < warnings[j].Path })

	res := &Result{
		Store:    NewStore(entries, furigana),
		Tags:     tags.NewResolver(tagDefs),
		Warnings: warnings,
	}
	logger.Info("dictionary loaded",
		slog.Int("entries", res.Store.Len()),
		slog.Int("furigana", res.Store.FuriganaLen()),
		slog.Int("tags", res.Tags.Len()),
		slog.Int("warnings", len(warnings)),
	)
	return res, nil
}

func loadTermBankFile(path string) (fileResult, error) {
	entries, err := ReadTermBank(path)
	return fileResult{entries: entries}, err
}

func loadTagBankFile(path string) (fileResult, error) {
	defs, err := ReadTagBank(path)
	return fileResult{tagDefs: defs}, err
}

func loadFuriganaFile(path string) (fileResult, error) {
	furi, err := ReadFurigana(path)
	return fileResult{furigana: furi}, err
}

func loadJMdictFile(path string) (fileResult, error) {
	entries, defs, err := ReadJMdict(path)
	return fileResult{entries: entries, tagDefs: defs}, err
}

// ReadTermBank parses the term bank at path.
func ReadTermBank(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseTermBank(f)
}

// ReadTagBank parses the tag bank at path.
func ReadTagBank(path string) ([]tags.Definition, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseTagBank(f)
}

// ReadFurigana parses the JmdictFurigana file at path.
func ReadFurigana(path string) ([]FuriganaEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseFurigana(f)
}

// ReadJMdict loads a jmdict-simplified file and returns its entries plus tag
// definitions for every tag it declares and the "common" marker.
func ReadJMdict(path string) ([]Entry, []tags.Definition, error) {
	words, tagDescs, err := LoadJMdictSimplified(path)
	if err != nil {
		return nil, nil, err
	}
	symbols := make([]string, 0, len(tagDescs))
	for sym := range tagDescs {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)
	defs := make([]tags.Definition, 0, len(symbols)+1)
	for _, sym := range symbols {
		defs = append(defs, tags.Definition{Symbol: sym, Description: tagDescs[sym]})
	}
	defs = append(defs, tags.Definition{Symbol: "common", Description: "common word"})
	return FromJMdict(words), defs, nil
}
