package api

import (
	"fmt"
	"strconv"

	"github.com/abelzeko/reservoir-sim/internal/entities"
	"github.com/abelzeko/reservoir-sim/internal/repository"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

var headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
var cellStyle = lipgloss.NewStyle().Padding(0, 1)

// HistoryTable renders logged flow events as a bordered table, in the order given
func HistoryTable(events []entities.FlowEvent) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(mutedStyle).
		Headers("ID", "DATE", "ACTION", "VOLUME (L)", "FINAL LEVEL (L)").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})

	for _, ev := range events {
		t.Row(
			strconv.FormatInt(ev.ID, 10),
			ev.Timestamp.Format(repository.TimestampLayout),
			string(ev.Direction),
			fmt.Sprintf("%.1f", ev.Volume),
			fmt.Sprintf("%.1f", ev.ResultingLevel),
		)
	}
	return t.String()
}
