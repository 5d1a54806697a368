package telemplot

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// The pipeline starts with a StringReader (CSV, relaxed text or an Excel
// sheet) that splits each line into fields. The TextToDataRowReader turns the
// fields into DataRows, and ReadTable drains the rows into a Table that serves
// as the TabularSource for plotting.

var errIgnoreThisRow = errors.New("ignore this row")

// When Read is called, return an array of strings which are the columns.
type StringReader interface {
	Read(context.Context) ([]string, error)
}

// One row of the data set. X is the time axis value, Ys are the remaining
// columns in their original order.
type DataRow struct {
	X  time.Time
	Ys []float64
}

// When Read is called, return the DataRow.
type DataRowReader interface {
	Read(context.Context) (DataRow, error)

	// Column names with the time column at index 0. Only valid after the
	// first successful Read when the header is taken from the input.
	ColumnNames() []string
}

// This implements a StringReader and reads an io.Reader using the Golang
// csv module.  This means the input data must strictly conform to CSV data. If
// the input data is not exactly CSV (for example separated by one or more
// spaces), use the RelaxedStringReader.
type CsvStringReader struct {
	input     io.Reader
	csvReader *csv.Reader

	lineCount int
}

func NewCsvStringReader(input io.Reader) *CsvStringReader {
	csvReader := csv.NewReader(input)
	// Column count is checked by TextToDataRowReader, not by encoding/csv.
	csvReader.FieldsPerRecord = -1
	csvReader.TrimLeadingSpace = true

	return &CsvStringReader{
		input:     input,
		csvReader: csvReader,
		lineCount: 0,
	}
}

func (r *CsvStringReader) Read(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	line, err := r.csvReader.Read()
	if err == io.EOF {
		return nil, io.EOF
	}

	r.lineCount++

	if err != nil {
		logger := logrus.WithFields(logrus.Fields{
			"tag":     "CsvString",
			"line":    line,
			"lineNum": r.lineCount,
		})

		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			logger.WithError(err).Debug("unable to parse CSV, ignoring...")
			return nil, errIgnoreThisRow
		}

		logger.WithError(err).Error("unable to read CSV")
		return nil, err
	}

	return line, nil
}

// This is a more relaxed reader that can split on spaces or commas. However, it does not
// follow string CSV formatting. Column names containing spaces will be split,
// so only use it for headerless or single-word headers.
type RelaxedStringReader struct {
	input   io.Reader
	scanner *bufio.Scanner

	lineCount int
}

func NewRelaxedStringReader(input io.Reader) *RelaxedStringReader {
	return &RelaxedStringReader{
		input:   input,
		scanner: bufio.NewScanner(input),

		lineCount: 0,
	}
}

// Split on either comma or any number of spaces or tabs
var relaxedSplitter = regexp.MustCompile("[ \t]+|,")

func (r *RelaxedStringReader) Read(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	stillHasData := r.scanner.Scan()
	if !stillHasData {
		if err := r.scanner.Err(); err != nil {
			logrus.WithField("tag", "RelaxedString").WithError(err).Error("unable to read line")
			return nil, err
		}
		return nil, io.EOF
	}

	r.lineCount++
	line := r.scanner.Text()

	// Return only non-empty fields
	splittedLine := Filter(relaxedSplitter.Split(line, -1), func(value string) bool {
		return len(value) > 0
	})

	if len(splittedLine) == 0 {
		return nil, errIgnoreThisRow
	}

	return splittedLine, nil
}

// Layouts tried, in order, for the time column after unix seconds.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"01/02/2006 15:04:05",
	"1/2/2006 15:04:05",
	"1/2/2006 15:04",
	"1/2/06 15:04:05",
	"1/2/06 15:04",
	"01-02-06",
}

// Parses a time column value. Numbers are unix seconds, anything else must
// match one of the known layouts and is interpreted as UTC when it carries no
// zone.
func ParseTimestamp(value string) (time.Time, error) {
	value = strings.TrimSpace(value)

	if seconds, err := strconv.ParseFloat(value, 64); err == nil {
		if math.IsNaN(seconds) || math.IsInf(seconds, 0) {
			return time.Time{}, fmt.Errorf("timestamp %q is not finite", value)
		}
		whole, frac := math.Modf(seconds)
		return time.Unix(int64(whole), int64(frac*1e9)).UTC(), nil
	}

	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, value, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", value)
}

// Creates a DataRowReader based on text input. Unrecognized/unparsable lines
// will be ignored and logged via warnings.
type TextToDataRowReader struct {
	// The input reader object (CsvStringReader, RelaxedStringReader or
	// XlsxStringReader)
	Input StringReader

	// The time column index. Note this column will be put into DataRow.X while
	// the rest of the row except this column will be put into DataRow.Ys.
	XIndex int

	// If set, the first line read is taken as the column names.
	Header bool

	// The labels of the columns, time column first. Filled from the first line
	// when Header is set.
	Columns []string

	// If the input row has a different length than Columns, ignore the row.
	ExpectExactColumnCount bool
}

func (r *TextToDataRowReader) Read(ctx context.Context) (DataRow, error) {
	if r.Header && r.Columns == nil {
		header, err := r.Input.Read(ctx)
		if err != nil {
			return DataRow{}, err
		}

		if err := r.setColumnsFromHeader(header); err != nil {
			return DataRow{}, err
		}
	}

	line, err := r.Input.Read(ctx)
	if err != nil {
		return DataRow{}, err
	}

	logger := logrus.WithFields(logrus.Fields{
		"tag":  "TextToData",
		"line": line,
	})

	if r.XIndex >= len(line) {
		logger.Warn("time column missing, ignoring...")
		return DataRow{}, errIgnoreThisRow
	}

	dataRow := DataRow{}

	for i, value := range line {
		if i == r.XIndex {
			x, err := ParseTimestamp(value)
			if err != nil {
				logger.WithError(err).Warn("cannot parse timestamp, ignoring...")
				return DataRow{}, errIgnoreThisRow
			}
			dataRow.X = x
			continue
		}

		floatValue, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			logger.Warn("cannot parse float, ignoring...")
			return DataRow{}, errIgnoreThisRow
		}

		dataRow.Ys = append(dataRow.Ys, floatValue)
	}

	expected := len(r.Columns) - 1
	if r.ExpectExactColumnCount && r.Columns != nil && expected != len(dataRow.Ys) {
		logger.Warnf("expected column count (%d) is not observed (%d)", expected, len(dataRow.Ys))
		return DataRow{}, errIgnoreThisRow
	}

	return dataRow, nil
}

func (r *TextToDataRowReader) setColumnsFromHeader(header []string) error {
	if r.XIndex < 0 || r.XIndex >= len(header) {
		return fmt.Errorf("time column %d is outside the header of %d columns", r.XIndex, len(header))
	}

	columns := make([]string, 0, len(header))
	columns = append(columns, strings.TrimSpace(header[r.XIndex]))
	for i, name := range header {
		if i == r.XIndex {
			continue
		}
		columns = append(columns, strings.TrimSpace(name))
	}

	r.Columns = columns
	return nil
}

func (r *TextToDataRowReader) ColumnNames() []string {
	return r.Columns
}
