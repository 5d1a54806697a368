package telemplot

import (
	"context"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/sirupsen/logrus"
)

// TabularSource is the read-only view of a data set the plotting code
// consumes. Column 0 is always the time axis.
type TabularSource interface {
	ColumnNames() []string
	SeriesByIndex(i int) (Series, error)
}

// Table is an in-memory data set: one shared time column plus one value slice
// per value column.
type Table struct {
	columns []string
	times   []time.Time
	values  [][]float64
}

// Creates an empty table. columns must include the time column at index 0.
func NewTable(columns []string) *Table {
	values := make([][]float64, Max(len(columns)-1, 0))
	return &Table{
		columns: append([]string(nil), columns...),
		values:  values,
	}
}

// Appends a row. Missing trailing values are stored as NaN and extra values
// are dropped, so every column stays aligned with the time column.
func (t *Table) Append(row DataRow) error {
	if n := len(t.times); n > 0 && row.X.Before(t.times[n-1]) {
		return fmt.Errorf("row %d at %s is before %s: %w", n+1, row.X.Format(time.RFC3339), t.times[n-1].Format(time.RFC3339), ErrTimestampOrder)
	}

	t.times = append(t.times, row.X)
	for c := range t.values {
		value := math.NaN()
		if c < len(row.Ys) {
			value = row.Ys[c]
		}
		t.values[c] = append(t.values[c], value)
	}

	return nil
}

func (t *Table) ColumnNames() []string {
	return t.columns
}

// Number of data rows.
func (t *Table) Len() int {
	return len(t.times)
}

// Returns value column i as a Series. Index 0 is the time axis and cannot be
// plotted.
func (t *Table) SeriesByIndex(i int) (Series, error) {
	if i < 1 || i >= len(t.columns) {
		return Series{}, &InvalidColumnError{Index: i, ColumnCount: len(t.columns)}
	}

	column := t.values[i-1]
	points := make([]Point, len(t.times))
	for row, ts := range t.times {
		points[row] = Point{Time: ts, Value: column[row]}
	}

	return Series{Name: t.columns[i], Points: points}, nil
}

// Drains reader into a Table. Rows the reader asks to ignore are skipped.
func ReadTable(ctx context.Context, reader DataRowReader) (*Table, error) {
	logger := logrus.WithField("tag", "ReadTable")

	var table *Table
	ignored := 0

	for {
		row, err := reader.Read(ctx)
		if err == errIgnoreThisRow {
			ignored++
			continue
		} else if err == io.EOF {
			break
		} else if err != nil {
			return nil, err
		}

		if table == nil {
			columns := reader.ColumnNames()
			if columns == nil {
				columns = defaultColumnNames(len(row.Ys))
			}
			if len(columns) < 2 {
				return nil, ErrNoValueColumns
			}
			table = NewTable(columns)
		}

		if err := table.Append(row); err != nil {
			return nil, err
		}
	}

	if table == nil || table.Len() == 0 {
		return nil, ErrEmptyTable
	}

	logger.WithFields(logrus.Fields{
		"rows":    table.Len(),
		"columns": len(table.columns),
		"ignored": ignored,
	}).Info("table loaded")

	return table, nil
}

// Names used when the input carries no header: "time", "col1", "col2", ...
func defaultColumnNames(valueColumns int) []string {
	columns := make([]string, 0, valueColumns+1)
	columns = append(columns, "time")
	for i := 1; i <= valueColumns; i++ {
		columns = append(columns, fmt.Sprintf("col%d", i))
	}
	return columns
}
