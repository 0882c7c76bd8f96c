package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/mattn/go-isatty"

	"github.com/P-wig/cyphersql/internal/store"
)

var (
	// headerStyle renders column names.
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#A78BFA")).Bold(true)

	// mutedStyle renders borders and NULL cells.
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6C7086"))
)

// isTerminal reports whether w is a terminal. Tests replace it.
var isTerminal = func(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && isatty.IsTerminal(f.Fd())
}

// writeTable prints query rows: a bordered lipgloss table on a terminal,
// tab-separated lines with a header otherwise.
func writeTable(w io.Writer, t *store.Table) {
	cells := make([][]string, len(t.Rows))
	for i, row := range t.Rows {
		cells[i] = make([]string, len(row))
		for j, v := range row {
			cells[i][j] = formatCell(v)
		}
	}

	if !isTerminal(w) {
		fmt.Fprintln(w, strings.Join(t.Columns, "\t"))
		for _, row := range cells {
			fmt.Fprintln(w, strings.Join(row, "\t"))
		}
		return
	}

	tbl := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(mutedStyle).
		Headers(t.Columns...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle.Padding(0, 1)
			}
			if row >= 0 && row < len(t.Rows) && col < len(t.Rows[row]) && t.Rows[row][col] == nil {
				return mutedStyle.Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		}).
		Rows(cells...)

	fmt.Fprintln(w, tbl.Render())
	fmt.Fprintf(w, "(%d row(s))\n", len(t.Rows))
}

// formatCell renders one value; NULL stands for nil.
func formatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case string:
		return x
	case []byte:
		return string(x)
	default:
		return fmt.Sprint(x)
	}
}
