package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/blacktop/postgate/internal/availability"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"golang.org/x/term"
)

// isTerminal reports whether out is an interactive terminal.
func isTerminal(out io.Writer) bool {
	f, ok := out.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// writeReport prints a table on terminals and JSON elsewhere, unless asJSON forces JSON.
func writeReport(out io.Writer, report []availability.PlatformAvailability, asJSON bool) error {
	if asJSON || !isTerminal(out) {
		return writeJSON(out, report)
	}
	_, err := fmt.Fprintln(out, reportTable(report))
	return err
}

func reportTable(report []availability.PlatformAvailability) string {
	rows := make([][]string, 0, len(report))
	for _, entry := range report {
		rows = append(rows, []string{entry.Platform.Label(), yesNo(entry.Available), entry.Reason, entry.ActionHint})
		for _, account := range entry.Accounts {
			rows = append(rows, []string{"  " + account.DisplayName, yesNo(account.Available), account.Reason, account.ActionHint})
		}
	}

	header := lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cell := lipgloss.NewStyle().Padding(0, 1)
	blocked := cell.Foreground(lipgloss.Color("9"))
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers("PLATFORM", "AVAILABLE", "REASON", "ACTION").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return header
			}
			if col == 1 && row >= 0 && row < len(rows) && rows[row][1] == "no" {
				return blocked
			}
			return cell
		}).
		String()
}

func yesNo(ok bool) string {
	if ok {
		return "yes"
	}
	return "no"
}
