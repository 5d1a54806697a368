package telemplot

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
)

// SourceOptions controls how OpenTable reads a data file.
type SourceOptions struct {
	// "csv", "relaxed" or "xlsx". Empty means pick by file extension.
	Format string

	// Excel sheet name. Empty means the first sheet.
	Sheet string

	// The time column index, 0 by convention.
	XIndex int

	// Skip rows whose column count differs from the header.
	ExpectExactColumnCount bool
}

// Reads an Excel sheet row by row. Cell values are returned formatted, the
// way they are displayed in Excel, so dates come out as text.
type XlsxStringReader struct {
	file  *excelize.File
	rows  *excelize.Rows
	sheet string

	lineCount int
}

func NewXlsxStringReader(path string, sheet string) (*XlsxStringReader, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}

	if sheet == "" {
		sheet = f.GetSheetName(0)
	}

	rows, err := f.Rows(sheet)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
	}

	return &XlsxStringReader{
		file:  f,
		rows:  rows,
		sheet: sheet,
	}, nil
}

func (r *XlsxStringReader) Read(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if !r.rows.Next() {
		if err := r.rows.Error(); err != nil {
			return nil, err
		}
		return nil, io.EOF
	}

	r.lineCount++

	columns, err := r.rows.Columns()
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"tag":     "XlsxString",
			"sheet":   r.sheet,
			"lineNum": r.lineCount,
		}).WithError(err).Warn("unable to read row, ignoring...")
		return nil, errIgnoreThisRow
	}

	if len(columns) == 0 {
		return nil, errIgnoreThisRow
	}

	return columns, nil
}

func (r *XlsxStringReader) Close() error {
	rowsErr := r.rows.Close()
	if err := r.file.Close(); err != nil {
		return err
	}
	return rowsErr
}

// Reads the whole file at path into a Table. The first line of the file is
// the header.
func OpenTable(ctx context.Context, path string, opts SourceOptions) (*Table, error) {
	format := opts.Format
	if format == "" {
		format = formatFromExtension(path)
	}

	logger := logrus.WithFields(logrus.Fields{
		"tag":    "OpenTable",
		"path":   path,
		"format": format,
	})

	var input StringReader
	switch format {
	case "csv", "relaxed":
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()

		if format == "csv" {
			input = NewCsvStringReader(f)
		} else {
			input = NewRelaxedStringReader(f)
		}
	case "xlsx":
		xr, err := NewXlsxStringReader(path, opts.Sheet)
		if err != nil {
			return nil, err
		}
		defer xr.Close()
		input = xr
	default:
		return nil, fmt.Errorf("data format %q: %w", format, ErrUnknownFormat)
	}

	logger.Debug("reading table")

	return ReadTable(ctx, &TextToDataRowReader{
		Input:                  input,
		XIndex:                 opts.XIndex,
		Header:                 true,
		ExpectExactColumnCount: opts.ExpectExactColumnCount,
	})
}

func formatFromExtension(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return "xlsx"
	case ".txt", ".dat", ".tsv":
		return "relaxed"
	default:
		return "csv"
	}
}
