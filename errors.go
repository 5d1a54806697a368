package telemplot

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptySeries indicates a series without a single finite value.
	ErrEmptySeries = errors.New("series has no finite values")

	// ErrEmptyTable indicates the data source produced no data rows.
	ErrEmptyTable = errors.New("table has no data rows")

	// ErrNoValueColumns indicates the data source only has the time column.
	ErrNoValueColumns = errors.New("table has no value columns")

	// ErrTimestampOrder indicates a row whose timestamp is earlier than the
	// previous row.
	ErrTimestampOrder = errors.New("timestamps must be non-decreasing")

	// ErrUnknownFormat indicates an input or output format that is not
	// supported.
	ErrUnknownFormat = errors.New("unknown format")

	// ErrLengthMismatch indicates parallel inputs of different lengths.
	ErrLengthMismatch = errors.New("length mismatch")
)

// SelectionSyntaxError is returned when a selection token is not an integer.
type SelectionSyntaxError struct {
	Token string
	Err   error
}

func (e *SelectionSyntaxError) Error() string {
	return fmt.Sprintf("invalid column number %q: columns must be integers separated by commas", e.Token)
}

func (e *SelectionSyntaxError) Unwrap() error {
	return e.Err
}

// SelectionCountError is returned when the selection has fewer than one or
// more than Max columns after the time column is dropped.
type SelectionCountError struct {
	Count int
	Max   int
}

func (e *SelectionCountError) Error() string {
	return fmt.Sprintf("you must select between 1 and %d columns (got %d)", e.Max, e.Count)
}

// InvalidColumnError is returned when a selected index does not name a value
// column of the table.
type InvalidColumnError struct {
	Index       int
	ColumnCount int
}

func (e *InvalidColumnError) Error() string {
	return fmt.Sprintf("you must select a column between 1 and %d (got %d)", e.ColumnCount-1, e.Index)
}

// DegenerateRangeError describes a selection whose values are all equal. It
// is reported as a warning; the range is widened instead of rejected.
type DegenerateRangeError struct {
	Value float64
	Span  float64
}

func (e *DegenerateRangeError) Error() string {
	return fmt.Sprintf("all selected values equal %g, y-range widened to a span of %g", e.Value, e.Span)
}

// ErrorKind is a short machine readable name for err, used on the wire and in
// metrics labels.
func ErrorKind(err error) string {
	var syntaxErr *SelectionSyntaxError
	var countErr *SelectionCountError
	var columnErr *InvalidColumnError

	switch {
	case err == nil:
		return ""
	case errors.As(err, &syntaxErr):
		return "selection_syntax"
	case errors.As(err, &countErr):
		return "selection_count"
	case errors.As(err, &columnErr):
		return "invalid_column"
	case errors.Is(err, ErrEmptySeries):
		return "empty_series"
	case errors.Is(err, ErrUnknownFormat):
		return "unknown_format"
	default:
		return "internal"
	}
}

// IsUserError reports whether err was caused by what the request asked for
// rather than by the program. A column without any finite value counts.
func IsUserError(err error) bool {
	switch ErrorKind(err) {
	case "selection_syntax", "selection_count", "invalid_column", "empty_series", "unknown_format":
		return true
	}
	return false
}
