package export

import (
	"fmt"
	"strconv"

	"github.com/xuri/excelize/v2"

	"panel_exporter/internal/protocol"
)

const exportSheet = "Modbus Export"

// Fill colors for the signal quality and RSSI columns.
const (
	fillGreen      = "00FF00"
	fillLightGreen = "90EE90"
	fillYellow     = "FFFF00"
	fillOrange     = "FF6600"
	fillRed        = "FF0000"
	fillGray       = "CCCCCC"
)

// WriteXLSX writes the table as a workbook. The Signal Quality and RSSI
// columns get per-cell fills grading the radio link at a glance.
func WriteXLSX(path string, table Table) error {
	book := excelize.NewFile()
	defer book.Close()

	if err := book.SetSheetName("Sheet1", exportSheet); err != nil {
		return fmt.Errorf("name export sheet: %w", err)
	}

	header := make([]interface{}, len(table.Header))
	for i, name := range table.Header {
		header[i] = name
	}
	if err := book.SetSheetRow(exportSheet, "A1", &header); err != nil {
		return fmt.Errorf("write xlsx header: %w", err)
	}
	for i, row := range table.Rows {
		cells := make([]interface{}, len(row))
		for j, cell := range row {
			cells[j] = cell
		}
		anchor, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := book.SetSheetRow(exportSheet, anchor, &cells); err != nil {
			return fmt.Errorf("write xlsx row %d: %w", i+2, err)
		}
	}

	styles, err := newFillStyles(book)
	if err != nil {
		return err
	}
	if err := fillColumn(book, styles, table, protocol.FieldSignalQuality, signalQualityFill); err != nil {
		return err
	}
	if err := fillColumn(book, styles, table, protocol.FieldRSSI, rssiFill); err != nil {
		return err
	}

	if err := book.SaveAs(path); err != nil {
		return fmt.Errorf("save xlsx %s: %w", path, err)
	}
	return nil
}

type fillStyles map[string]int

func newFillStyles(book *excelize.File) (fillStyles, error) {
	styles := fillStyles{}
	for _, color := range []string{fillGreen, fillLightGreen, fillYellow, fillOrange, fillRed, fillGray} {
		id, err := book.NewStyle(&excelize.Style{
			Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{color}},
		})
		if err != nil {
			return nil, fmt.Errorf("register fill style %s: %w", color, err)
		}
		styles[color] = id
	}
	return styles, nil
}

// fillColumn applies the chooser's color to every data cell of one column.
// Columns absent from this batch are skipped.
func fillColumn(book *excelize.File, styles fillStyles, table Table, column string, choose func(string) string) error {
	index := -1
	for i, name := range table.Header {
		if name == column {
			index = i
			break
		}
	}
	if index < 0 {
		return nil
	}
	for i, row := range table.Rows {
		cell, err := excelize.CoordinatesToCellName(index+1, i+2)
		if err != nil {
			return err
		}
		style := styles[choose(row[index])]
		if err := book.SetCellStyle(exportSheet, cell, cell, style); err != nil {
			return fmt.Errorf("style cell %s: %w", cell, err)
		}
	}
	return nil
}

func signalQualityFill(value string) string {
	switch protocol.SignalQuality(value) {
	case protocol.QualityExcellent:
		return fillGreen
	case protocol.QualityGood:
		return fillLightGreen
	case protocol.QualityFair:
		return fillYellow
	case protocol.QualityWeak:
		return fillOrange
	default:
		return fillGray
	}
}

// rssiFill grades received power: at least -65 dBm is good, down to -75 dBm
// is average, below that poor. Non-numeric cells are unknown.
func rssiFill(value string) string {
	rssi, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fillGray
	}
	switch {
	case rssi >= -65:
		return fillGreen
	case rssi >= -75:
		return fillYellow
	default:
		return fillRed
	}
}
