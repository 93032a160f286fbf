// Package cleaner reconstructs per-file documents from the line-oriented
// rows of the raw dataset.
//
// The dataset stores each source file as a sequence of rows. A row whose
// trimmed text begins with a file name (`name.txt`, optionally followed by
// a comma and a quote) starts a new file; the remainder of that row and
// every following row belong to it until the next marker.
package cleaner

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/fyrsmithlabs/docrag/internal/documents"
	"go.uber.org/zap"
)

// DefaultMinLength is the minimum rune count of an emitted document.
const DefaultMinLength = 100

var (
	markerRe    = regexp.MustCompile(`^([A-Za-z0-9_\-\.]+\.txt),?"?(.*)$`)
	blankRunsRe = regexp.MustCompile(`\n{3,}`)
	spaceRunsRe = regexp.MustCompile(`[ \t]+`)
)

// headerLine is the CSV header that leaks into the dataset as a row.
const headerLine = "filename,text"

// Config configures a Cleaner.
type Config struct {
	// MinLength is the minimum number of characters a cleaned document
	// needs to be kept. Zero selects DefaultMinLength.
	MinLength int
}

// Stats summarizes one cleaning pass.
type Stats struct {
	Rows      int
	Skipped   int
	Markers   int
	Documents int
	TooShort  int
}

// Cleaner groups raw rows into documents.
type Cleaner struct {
	minLength int
	logger    *zap.Logger
}

// New creates a Cleaner. logger may be nil.
func New(cfg Config, logger *zap.Logger) *Cleaner {
	if cfg.MinLength <= 0 {
		cfg.MinLength = DefaultMinLength
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cleaner{minLength: cfg.MinLength, logger: logger}
}

// Clean groups rows into documents using the default configuration.
func Clean(records []documents.RawRecord) []documents.Document {
	docs, _ := New(Config{}, nil).Clean(records)
	return docs
}

// Clean groups rows into documents in input order.
//
// Blank rows and the CSV header row are skipped. Rows before the first
// marker are discarded. A file whose cleaned text is shorter than the
// minimum length is dropped. The result is deterministic for a given input.
func (c *Cleaner) Clean(records []documents.RawRecord) ([]documents.Document, Stats) {
	var (
		docs    []documents.Document
		stats   = Stats{Rows: len(records)}
		current string
		buffer  []string
	)

	flush := func() {
		if current == "" || len(buffer) == 0 {
			return
		}
		text := Normalize(strings.Join(buffer, " "))
		if utf8.RuneCountInString(text) < c.minLength {
			stats.TooShort++
			c.logger.Debug("dropping short document",
				zap.String("file", current),
				zap.Int("length", utf8.RuneCountInString(text)),
			)
			return
		}
		docs = append(docs, documents.Document{File: current, Text: text})
	}

	for _, r := range records {
		line := strings.TrimSpace(r.Text)
		if line == "" || strings.EqualFold(line, headerLine) {
			stats.Skipped++
			continue
		}

		if m := markerRe.FindStringSubmatch(line); m != nil {
			flush()
			stats.Markers++
			current = m[1]
			buffer = []string{m[2]}
			continue
		}
		buffer = append(buffer, line)
	}
	flush()

	stats.Documents = len(docs)
	return docs, stats
}

// Normalize collapses runs of three or more newlines to a blank line,
// collapses runs of spaces and tabs to one space and trims the result.
func Normalize(text string) string {
	text = blankRunsRe.ReplaceAllString(text, "\n\n")
	text = spaceRunsRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}
