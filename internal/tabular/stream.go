// Package tabular tokenizes vendor CSV and XLSX exports into header lists and
// raw records.
package tabular

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// CSVOptions configures the streaming CSV parser.
type CSVOptions struct {
	Delimiter  rune // default ','
	Comment    rune // comment character (0 = none)
	LazyQuotes bool
	TrimSpace  bool
}

// StreamRow is one tokenized row. Line is 1-based in the source. Err is set
// when the row could not be tokenized; the stream carries on after it.
type StreamRow struct {
	Line  int
	Cells []string
	Err   error
}

// StreamCSV reads CSV rows, header included, and sends them to a channel.
// A malformed record is sent as a StreamRow with Err set and reading
// continues with the next record. Caller must consume the returned row
// channel. Fatal errors are sent on the error channel. Both channels are
// closed when processing completes.
func StreamCSV(ctx context.Context, r io.Reader, opts CSVOptions) (<-chan StreamRow, <-chan error) {
	rowCh := make(chan StreamRow, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(rowCh)
		defer close(errCh)

		reader := csv.NewReader(r)
		if opts.Delimiter != 0 {
			reader.Comma = opts.Delimiter
		}
		if opts.Comment != 0 {
			reader.Comment = opts.Comment
		}
		reader.LazyQuotes = opts.LazyQuotes
		reader.FieldsPerRecord = -1 // vendor exports drop trailing empty cells
		reader.ReuseRecord = false

		for {
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}

			record, err := reader.Read()
			if err == io.EOF {
				return
			}

			var row StreamRow
			var pe *csv.ParseError
			switch {
			case errors.As(err, &pe):
				row = StreamRow{
					Line: pe.StartLine,
					Err:  eris.Wrapf(pe.Err, "malformed CSV at column %d", pe.Column),
				}
			case err != nil:
				errCh <- eris.Wrap(err, "csv: read row")
				return
			default:
				line, _ := reader.FieldPos(0)
				if opts.TrimSpace {
					for i, field := range record {
						record[i] = strings.TrimSpace(field)
					}
				}
				row = StreamRow{Line: line, Cells: record}
			}

			select {
			case rowCh <- row:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}
		}
	}()

	return rowCh, errCh
}

// StreamXLSX reads the first sheet of an XLSX workbook held in memory and
// sends its rows to a channel. Both channels are closed when processing
// completes.
func StreamXLSX(ctx context.Context, data []byte) (<-chan StreamRow, <-chan error) {
	rowCh := make(chan StreamRow, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(rowCh)
		defer close(errCh)

		f, err := xlsx.OpenBinary(data)
		if err != nil {
			errCh <- eris.Wrap(err, "xlsx: open workbook")
			return
		}
		if len(f.Sheets) == 0 {
			errCh <- eris.New("xlsx: workbook has no sheets")
			return
		}

		for i, row := range f.Sheets[0].Rows {
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "xlsx: context cancelled")
				return
			}

			select {
			case rowCh <- StreamRow{Line: i + 1, Cells: rowToStrings(row)}:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "xlsx: context cancelled")
				return
			}
		}
	}()

	return rowCh, errCh
}

func rowToStrings(row *xlsx.Row) []string {
	if row == nil {
		return nil
	}
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = strings.TrimSpace(cell.String())
	}
	return cells
}
