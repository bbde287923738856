package main

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// column describes one column of the journal listings. total, when set,
// summarises the column's cells in the footer.
type column struct {
	header   string
	align    text.Align
	widthMax int
	trim     func(string, int) string
	total    func(cells []string) string
}

var attendanceColumns = []column{
	{header: "ID", align: text.AlignRight, total: countRows},
	{header: "Time"},
	{header: "Ago"},
	{header: "Name", widthMax: 24, trim: text.Trim, total: countDistinct},
	{header: "Known", align: text.AlignCenter, total: countKnown},
	{header: "Token", align: text.AlignRight},
	{header: "Snapshot", widthMax: 48, trim: trimHead},
}

var statsColumns = []column{
	{header: "Metric"},
	{header: "Value", align: text.AlignRight},
}

func renderTable(columns []column, rows [][]string) string {
	if len(columns) == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.Style().Format.Footer = text.FormatDefault

	header := make(table.Row, len(columns))
	configs := make([]table.ColumnConfig, len(columns))
	for i, c := range columns {
		header[i] = c.header
		configs[i] = table.ColumnConfig{
			Number:           i + 1,
			Align:            c.align,
			AlignHeader:      text.AlignLeft,
			AlignFooter:      c.align,
			WidthMax:         c.widthMax,
			WidthMaxEnforcer: c.trim,
		}
	}
	tw.AppendHeader(header)
	tw.SetColumnConfigs(configs)

	for _, row := range rows {
		r := make(table.Row, len(columns))
		for i := range r {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	if footer, ok := totals(columns, rows); ok {
		tw.AppendFooter(footer)
	}
	return tw.Render()
}

func totals(columns []column, rows [][]string) (table.Row, bool) {
	footer := make(table.Row, len(columns))
	has := false
	for i, c := range columns {
		footer[i] = ""
		if c.total == nil {
			continue
		}
		cells := make([]string, 0, len(rows))
		for _, row := range rows {
			if i < len(row) {
				cells = append(cells, row[i])
			}
		}
		footer[i] = c.total(cells)
		has = true
	}
	return footer, has
}

func countRows(cells []string) string {
	if len(cells) == 1 {
		return "1 row"
	}
	return fmt.Sprintf("%d rows", len(cells))
}

func countDistinct(cells []string) string {
	seen := make(map[string]struct{}, len(cells))
	for _, c := range cells {
		seen[c] = struct{}{}
	}
	return fmt.Sprintf("%d names", len(seen))
}

func countKnown(cells []string) string {
	n := 0
	for _, c := range cells {
		if c == "yes" {
			n++
		}
	}
	return fmt.Sprintf("%d known", n)
}

// trimHead keeps the end of long snapshot paths, where the file name is.
func trimHead(s string, maxLen int) string {
	r := []rune(s)
	if maxLen < 2 || len(r) <= maxLen {
		return s
	}
	return "…" + string(r[len(r)-maxLen+1:])
}
