package tabular

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/sells-group/lead-ingest/internal/model"
)

// Format is the container format of an upload.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ErrEmpty is returned when an upload has no header row.
var ErrEmpty = eris.New("tabular: file is empty")

// ErrUnsupportedFormat is returned for uploads that are neither CSV nor XLSX.
var ErrUnsupportedFormat = eris.New("tabular: only .csv and .xlsx files are supported")

// ErrMalformed is returned when the file or its header row cannot be
// tokenized.
var ErrMalformed = eris.New("tabular: malformed file")

// FormatFromName infers the format from a file name's extension.
func FormatFromName(name string) (Format, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv":
		return FormatCSV, nil
	case ".xlsx":
		return FormatXLSX, nil
	default:
		return "", eris.Wrapf(ErrUnsupportedFormat, "file %q", name)
	}
}

// Row is one data row keyed by header.
type Row struct {
	Line   int // 1-based line in the source, header is line 1
	Record *model.RawRecord
}

// RowError is a data row that could not be tokenized.
type RowError struct {
	Line int
	Err  error
}

func (e RowError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

// Table is a parsed upload.
type Table struct {
	Format    Format
	Encoding  string
	Headers   []string
	Rows      []Row
	RowErrors []RowError
	Truncated int // rows dropped beyond MaxRows
}

// Options configures Parse.
type Options struct {
	MaxRows int // 0 = unlimited
	CSV     CSVOptions
}

// DefaultOptions returns the options used for vendor uploads. Bare quotes
// inside unquoted cells are kept as literal text.
func DefaultOptions(maxRows int) Options {
	return Options{MaxRows: maxRows, CSV: CSVOptions{LazyQuotes: true}}
}

// Parse tokenizes an upload into headers and raw records. Headers are
// trimmed. Blank rows are skipped. Cells beyond the header width are kept
// under "column_N" keys. A data row that cannot be tokenized is recorded in
// RowErrors and the rest of the file is still read; a malformed header row
// fails the whole parse with ErrMalformed.
func Parse(ctx context.Context, format Format, data []byte, opts Options) (*Table, error) {
	t := &Table{Format: format}

	var rowCh <-chan StreamRow
	var errCh <-chan error
	switch format {
	case FormatCSV:
		decoded, enc, err := Decode(data)
		if err != nil {
			return nil, err
		}
		t.Encoding = enc
		rowCh, errCh = StreamCSV(ctx, bytes.NewReader(decoded), opts.CSV)
	case FormatXLSX:
		t.Encoding = "xlsx"
		rowCh, errCh = StreamXLSX(ctx, data)
	default:
		return nil, eris.Wrapf(ErrUnsupportedFormat, "format %q", format)
	}

	var headerErr error
	full := func() bool { return opts.MaxRows > 0 && len(t.Rows) >= opts.MaxRows }
	for row := range rowCh {
		switch {
		case t.Headers == nil && headerErr == nil:
			if row.Err != nil {
				headerErr = row.Err
				continue
			}
			t.Headers = trimAll(row.Cells)
		case headerErr != nil:
			// Drain so the stream goroutine can finish.
		case row.Err != nil:
			if full() {
				t.Truncated++
				continue
			}
			t.RowErrors = append(t.RowErrors, RowError{Line: row.Line, Err: row.Err})
		case isBlank(row.Cells):
		case full():
			t.Truncated++
		default:
			t.Rows = append(t.Rows, Row{Line: row.Line, Record: toRecord(t.Headers, row.Cells)})
		}
	}
	for err := range errCh {
		if err == nil {
			continue
		}
		if ctx.Err() != nil {
			return nil, err
		}
		return nil, eris.Wrapf(ErrMalformed, "%v", err)
	}
	if headerErr != nil {
		return nil, eris.Wrapf(ErrMalformed, "header row: %v", headerErr)
	}

	if len(t.Headers) == 0 || isBlank(t.Headers) {
		return nil, ErrEmpty
	}
	return t, nil
}

// Decode converts upload bytes to UTF-8 and reports the detected encoding.
// A UTF-8 or UTF-16 byte order mark selects that encoding; otherwise valid
// UTF-8 is used as-is and anything else is read as Windows-1252, which is
// what spreadsheet tools emit for "CSV" without a BOM.
func Decode(data []byte) ([]byte, string, error) {
	switch {
	case bytes.HasPrefix(data, []byte{0xEF, 0xBB, 0xBF}):
		return data[3:], "utf-8-bom", nil
	case bytes.HasPrefix(data, []byte{0xFF, 0xFE}), bytes.HasPrefix(data, []byte{0xFE, 0xFF}):
		out, _, err := transform.Bytes(unicode.BOMOverride(unicode.UTF8.NewDecoder()), data)
		if err != nil {
			return nil, "", eris.Wrap(err, "tabular: decode utf-16")
		}
		if data[0] == 0xFF {
			return out, "utf-16le", nil
		}
		return out, "utf-16be", nil
	case utf8.Valid(data):
		return data, "utf-8", nil
	default:
		out, err := charmap.Windows1252.NewDecoder().Bytes(data)
		if err != nil {
			return nil, "", eris.Wrap(err, "tabular: decode windows-1252")
		}
		return out, "windows-1252", nil
	}
}

func toRecord(headers, cells []string) *model.RawRecord {
	rec := model.NewRawRecord()
	for i, cell := range cells {
		key := fmt.Sprintf("column_%d", i+1)
		if i < len(headers) && headers[i] != "" {
			key = headers[i]
		}
		if prev, ok := rec.Get(key); ok && prev != "" {
			// Repeated header: the first non-empty cell wins.
			continue
		}
		rec.Set(key, cell)
	}
	for i := len(cells); i < len(headers); i++ {
		if headers[i] == "" {
			continue
		}
		if _, ok := rec.Get(headers[i]); !ok {
			rec.Set(headers[i], "")
		}
	}
	return rec
}

func trimAll(cells []string) []string {
	out := make([]string, len(cells))
	for i, c := range cells {
		out[i] = strings.TrimSpace(c)
	}
	return out
}

func isBlank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
