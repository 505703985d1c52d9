/*
Package report renders statistics views into downloadable documents.

Currently a single format: an XLSX workbook of the aggregate statistics
rows, one row per (employee, month, year) group. The workbook is built
in memory and streamed to the caller; nothing touches disk.
*/
package report

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/warp/leave-engine/leave"
)

const statsSheet = "Statistiche"

var statsHeader = []string{
	"UtenteID", "Cognome", "Nome", "Email", "Mese", "Anno",
	"NumeroRichieste", "GiorniTotaliRichiesti", "GiorniTotaliApprovati",
}

// WriteStatsXLSX writes the statistics rows as an XLSX workbook.
// Row order is preserved from the input.
func WriteStatsXLSX(w io.Writer, rows []leave.StatRow) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	index, err := f.NewSheet(statsSheet)
	if err != nil {
		return err
	}
	f.SetActiveSheet(index)
	// Drop the default sheet so the workbook opens on the data.
	_ = f.DeleteSheet("Sheet1")

	for col, title := range statsHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(statsSheet, cell, title); err != nil {
			return err
		}
	}

	for i, row := range rows {
		values := []any{
			row.UserID, row.Cognome, row.Nome, row.Email,
			row.Month, row.Year,
			row.RequestCount, row.DaysRequested, row.DaysApproved,
		}
		for col, v := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(statsSheet, cell, v); err != nil {
				return err
			}
		}
	}

	_, err = f.WriteTo(w)
	return err
}

// StatsFilename returns a dated attachment name for the export.
func StatsFilename(now time.Time) string {
	return fmt.Sprintf("statistiche-permessi-%s.xlsx", now.Format("2006-01-02"))
}
