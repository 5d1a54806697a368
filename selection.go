package telemplot

import (
	"strconv"
	"strings"
)

// Selection is the ordered list of value column indices to plot. The time
// column (index 0) is never part of it.
type Selection []int

// Parses a comma separated list of column numbers such as "1, 3".
//
// Every 0 is dropped because column 0 is the time axis, and repeated indices
// keep their first position. The remaining count must be within
// [1, maxSeries] and every index must be a value column of a table with
// columnCount columns (time column included).
func ParseSelection(raw string, columnCount int, maxSeries int) (Selection, error) {
	selection := Selection{}

	for _, token := range strings.Split(raw, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}

		index, err := strconv.Atoi(token)
		if err != nil {
			return nil, &SelectionSyntaxError{Token: token, Err: err}
		}

		if index == 0 {
			continue
		}

		selection = append(selection, index)
	}

	selection = Unique(selection)

	if len(selection) < 1 || len(selection) > maxSeries {
		return nil, &SelectionCountError{Count: len(selection), Max: maxSeries}
	}

	for _, index := range selection {
		if index < 1 || index >= columnCount {
			return nil, &InvalidColumnError{Index: index, ColumnCount: columnCount}
		}
	}

	return selection, nil
}

// Reports whether a console line asks to quit.
func IsExitCommand(raw string) bool {
	return strings.EqualFold(strings.TrimSpace(raw), "exit")
}

// Formats the selection back into the input syntax.
func (s Selection) String() string {
	return strings.Join(Map(s, strconv.Itoa), ",")
}
