package ctl

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// tbl collects rows and prints them as aligned columns under a dimmed,
// underlined header.
type tbl struct {
	t      *table.Table
	indent string
}

func newTable(indent string, columns ...string) *tbl {
	cell := lipgloss.NewStyle().PaddingRight(2)
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderTop(false).
		BorderBottom(false).
		BorderLeft(false).
		BorderRight(false).
		BorderColumn(false).
		BorderStyle(dim).
		Headers(columns...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return cell.Inherit(dim)
			}
			return cell
		})
	return &tbl{t: t, indent: indent}
}

func (t *tbl) row(cells ...string) {
	t.t.Row(cells...)
}

func (t *tbl) flush() {
	for _, line := range strings.Split(t.t.Render(), "\n") {
		fmt.Println(t.indent + line)
	}
}
