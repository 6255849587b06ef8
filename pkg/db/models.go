package db

import "time"

// Source kinds recorded for imported files.
const (
	KindTermBank = "term_bank"
	KindTagBank  = "tag_bank"
	KindFurigana = "furigana"
	KindJMdict   = "jmdict"

	// KindJMdictTags records the tag definitions embedded in a JMdict file.
	KindJMdictTags = "jmdict_tags"
)

// Source is a provenance record for an imported dictionary file.
type Source struct {
	ID   int64
	Kind string
	Path string
	// Records is the number of rows the file contained.
	Records int
	// LastProcessed is how many of those rows have been committed; an
	// interrupted import resumes from here.
	LastProcessed int
	ImportedAt    time.Time
}

// Complete reports whether every record of the source has been committed.
func (s Source) Complete() bool {
	return s.Records > 0 && s.LastProcessed >= s.Records
}
