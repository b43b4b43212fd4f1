package util

import (
	"strings"
)

// ParseShowTable parses the tabular output of SONiC "show" commands:
//
//	Neighbhor      V     AS  ...  NeighborName
//	-----------  ---  -----  ...  --------------
//	10.0.0.57      4  64600  ...  ARISTA01T1
//
// Column boundaries come from the dash divider line; the header line is the
// non-empty line right above it. Keys are the lowercased header labels.
// Rows end at the first blank line after the divider. Output without a
// divider yields nil.
func ParseShowTable(output string) []map[string]string {
	lines := strings.Split(strings.ReplaceAll(output, "\r\n", "\n"), "\n")

	div := -1
	for i, l := range lines {
		if i > 0 && isDividerLine(l) {
			div = i
			break
		}
	}
	if div < 0 {
		return nil
	}
	header := lines[div-1]
	spans := dividerSpans(lines[div])
	if len(spans) == 0 {
		return nil
	}

	keys := make([]string, len(spans))
	for i := range spans {
		keys[i] = strings.ToLower(strings.TrimSpace(column(header, spans, i)))
	}

	var rows []map[string]string
	for _, l := range lines[div+1:] {
		if strings.TrimSpace(l) == "" {
			break
		}
		row := make(map[string]string, len(keys))
		for i, k := range keys {
			row[k] = strings.TrimSpace(column(l, spans, i))
		}
		rows = append(rows, row)
	}
	return rows
}

func isDividerLine(l string) bool {
	t := strings.TrimSpace(l)
	if t == "" || !strings.Contains(t, "-") {
		return false
	}
	return strings.Trim(t, "- ") == ""
}

// dividerSpans returns the start offset of every dash group.
func dividerSpans(l string) []int {
	var starts []int
	in := false
	for i := 0; i < len(l); i++ {
		if l[i] == '-' && !in {
			starts = append(starts, i)
			in = true
		} else if l[i] != '-' {
			in = false
		}
	}
	return starts
}

// column extracts column i, running from its divider start to the next
// column's start (or end of line for the last column).
func column(l string, starts []int, i int) string {
	start := starts[i]
	if start >= len(l) {
		return ""
	}
	if i+1 < len(starts) && starts[i+1] < len(l) {
		return l[start:starts[i+1]]
	}
	return l[start:]
}
