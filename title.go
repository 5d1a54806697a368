package telemplot

// Composes the figure title: the prefix followed by the column names in
// selection order, separated by commas.
//
// The names are consumed from the tail and the title is assembled back to
// front, which keeps the left-to-right order of the selection.
func BuildTitle(prefix string, names []string) string {
	rest := ""
	for i := len(names) - 1; i >= 0; i-- {
		if rest == "" {
			rest = " " + names[i]
		} else {
			rest = " " + names[i] + "," + rest
		}
	}

	return prefix + rest
}
