package glossary

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"
)

// CSVOptions describes the layout of a spreadsheet export.
type CSVOptions struct {
	Delimiter rune   // zero value means ';'
	Encoding  string // IANA name; empty or utf-8 means no transcoding
}

// ReadCSV parses a tabular glossary export. The first row is the header; each
// following row is adapted through FromRow. Returns the canonical entries and
// the number of data rows read, so callers can report how many records were
// excluded.
func ReadCSV(reader io.Reader, opts CSVOptions) ([]Entry, int, error) {
	// Transcode non-UTF-8 exports.
	if enc := opts.Encoding; enc != "" && !isUTF8(enc) {
		e, err := htmlindex.Get(enc)
		if err != nil {
			return nil, 0, fmt.Errorf("unsupported encoding %q: %w", enc, err)
		}
		reader = transform.NewReader(reader, e.NewDecoder())
	}

	r := csv.NewReader(reader)
	r.Comma = ';'
	if opts.Delimiter != 0 {
		r.Comma = opts.Delimiter
	}
	r.LazyQuotes = true
	r.TrimLeadingSpace = true
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err == io.EOF {
		return nil, 0, fmt.Errorf("empty glossary export")
	}
	if err != nil {
		return nil, 0, fmt.Errorf("read header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	var entries []Entry
	rows := 0
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, rows, fmt.Errorf("read row %d: %w", rows+1, err)
		}
		rows++

		row := make(Row, len(header))
		for i, h := range header {
			if i < len(record) {
				row[h] = record[i]
			}
		}
		if e, ok := FromRow(row); ok {
			entries = append(entries, e)
		}
	}
	return entries, rows, nil
}

// ReadCSVFile parses a tabular glossary export from disk.
func ReadCSVFile(path string, opts CSVOptions) ([]Entry, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open glossary export: %w", err)
	}
	defer f.Close()
	return ReadCSV(f, opts)
}

func isUTF8(enc string) bool {
	e := strings.ToLower(strings.ReplaceAll(enc, "-", ""))
	return e == "utf8" || e == ""
}
