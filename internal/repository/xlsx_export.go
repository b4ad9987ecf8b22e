package repository

import (
	"fmt"

	"github.com/abelzeko/reservoir-sim/internal/entities"
	"github.com/xuri/excelize/v2"
)

// HistorySheet is the name of the worksheet written by ExportXLSX
const HistorySheet = "Historique"

var exportHeader = []string{"ID", "Date", "Action", "Volume (L)", "Final level (L)"}

// ExportXLSX writes the given events to a spreadsheet at path, in the order given
func ExportXLSX(events []entities.FlowEvent, path string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", HistorySheet); err != nil {
		return fmt.Errorf("failed to rename sheet: %w", err)
	}

	for col, title := range exportHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return fmt.Errorf("failed to compute header cell: %w", err)
		}
		if err := f.SetCellValue(HistorySheet, cell, title); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}
	if err := f.SetCellStyle(HistorySheet, "A1", "E1", bold); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}

	for i, ev := range events {
		row := i + 2
		values := []interface{}{
			ev.ID,
			ev.Timestamp.Format(TimestampLayout),
			string(ev.Direction),
			ev.Volume,
			ev.ResultingLevel,
		}
		for col, v := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row)
			if err != nil {
				return fmt.Errorf("failed to compute cell: %w", err)
			}
			if err := f.SetCellValue(HistorySheet, cell, v); err != nil {
				return fmt.Errorf("failed to write row %d: %w", row, err)
			}
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save spreadsheet: %w", err)
	}
	return nil
}
