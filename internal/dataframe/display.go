package dataframe

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
)

// displayMaxRows caps how many rows String renders; larger frames show
// head and tail halves around an ellipsis row.
const displayMaxRows = 10

// String renders the frame as an aligned table for diagnostics.
func (df *DataFrame) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "shape: (%d, %d)\n", df.Len(), df.Width())

	table := tablewriter.NewWriter(&sb)
	header := make([]string, 0, df.Width())
	for _, name := range df.order {
		header = append(header, fmt.Sprintf("%s\n%s", name, df.columns[name].DataType()))
	}
	table.SetHeader(header)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)

	n := df.Len()
	if n <= displayMaxRows {
		for i := 0; i < n; i++ {
			table.Append(df.renderRow(i))
		}
	} else {
		half := displayMaxRows / 2
		for i := 0; i < half; i++ {
			table.Append(df.renderRow(i))
		}
		ellipsis := make([]string, df.Width())
		for i := range ellipsis {
			ellipsis[i] = "…"
		}
		table.Append(ellipsis)
		for i := n - half; i < n; i++ {
			table.Append(df.renderRow(i))
		}
	}

	table.Render()
	return sb.String()
}

func (df *DataFrame) renderRow(i int) []string {
	row := make([]string, 0, df.Width())
	for _, name := range df.order {
		v, ok := df.columns[name].Get(i)
		if !ok {
			row = append(row, "null")
			continue
		}
		row = append(row, renderValue(v))
	}
	return row
}

func renderValue(v any) string {
	switch n := v.(type) {
	case float64:
		return strconv.FormatFloat(n, 'g', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(n), 'g', -1, 32)
	case string:
		return n
	default:
		return fmt.Sprintf("%v", v)
	}
}
