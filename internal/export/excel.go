package export

import (
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"

	"github.com/ironsheep/colony-counter-mcp/internal/apperr"
	"github.com/ironsheep/colony-counter-mcp/internal/logger"
	"github.com/ironsheep/colony-counter-mcp/internal/session"
)

// Workbook is a counts spreadsheet: row 1 holds day headers ("5" or
// "Day 5"), and somewhere under each header a "colonies" cell marks the row
// above sample 1.
type Workbook struct {
	file  *excelize.File
	sheet string
	rows  [][]string
}

// OpenWorkbook opens an existing workbook on its active sheet.
func OpenWorkbook(path string) (*Workbook, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, apperr.Export("failed to open workbook "+path, err)
	}
	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	rows, err := f.GetRows(sheet)
	if err != nil {
		f.Close()
		return nil, apperr.Export("failed to read sheet "+sheet, err)
	}
	return &Workbook{file: f, sheet: sheet, rows: rows}, nil
}

// dayColumn returns the 0-based column whose header names day.
func (wb *Workbook) dayColumn(day int) (int, bool) {
	if len(wb.rows) == 0 {
		return 0, false
	}
	want := strconv.Itoa(day)
	for col, v := range wb.rows[0] {
		v = strings.TrimSpace(v)
		if v == want || strings.EqualFold(v, "day "+want) {
			return col, true
		}
	}
	return 0, false
}

// coloniesRow returns the 1-based row of the "colonies" cell in col.
func (wb *Workbook) coloniesRow(col int) (int, bool) {
	for r, row := range wb.rows {
		if col < len(row) && strings.EqualFold(strings.TrimSpace(row[col]), "colonies") {
			return r + 1, true
		}
	}
	return 0, false
}

// WriteCount stores count for (day, sample). It reports false without error
// when the sheet has no column for day. Sample numbers start at 1, so the
// colonies cell itself is never written.
func (wb *Workbook) WriteCount(day, sample, count int) (bool, error) {
	if sample < 1 {
		return false, apperr.InvalidParameter("sample", "must be at least 1, got %d", sample)
	}
	col, ok := wb.dayColumn(day)
	if !ok {
		return false, nil
	}
	row, ok := wb.coloniesRow(col)
	if !ok {
		return false, apperr.Export("'colonies' cell not found under day "+strconv.Itoa(day)+" column", nil)
	}

	cell, err := excelize.CoordinatesToCellName(col+1, row+sample)
	if err != nil {
		return false, apperr.Export("invalid target cell", err)
	}
	if err := wb.file.SetCellValue(wb.sheet, cell, count); err != nil {
		return false, apperr.Export("failed to write "+cell, err)
	}
	return true, nil
}

// Save writes the workbook back to the file it was opened from.
func (wb *Workbook) Save() error {
	if err := wb.file.Save(); err != nil {
		return apperr.Export("failed to save workbook", err)
	}
	return nil
}

func (wb *Workbook) Close() error {
	return wb.file.Close()
}

// ExcelReport counts what ExportExcel did.
type ExcelReport struct {
	Written int      `json:"written"`
	Skipped []string `json:"skipped"`
}

// ExportExcel fills the blob count of every snapshot into the workbook at
// path and saves it. Snapshots without a day or sample number, or whose
// day has no column, are skipped with a warning.
func ExportExcel(path string, snaps []session.Snapshot) (ExcelReport, error) {
	report := ExcelReport{Skipped: []string{}}

	wb, err := OpenWorkbook(path)
	if err != nil {
		return report, err
	}
	defer wb.Close()

	for _, s := range snaps {
		log := logger.WithFields(logrus.Fields{"source": s.Source, "count": s.BlobCount})
		if s.Day == nil || s.Sample == nil {
			log.Warn("No day or sample number, skipping")
			report.Skipped = append(report.Skipped, s.Source)
			continue
		}
		if *s.Sample < 1 {
			log.WithField("sample", *s.Sample).Warn("Sample number below 1, skipping")
			report.Skipped = append(report.Skipped, s.Source)
			continue
		}
		ok, err := wb.WriteCount(*s.Day, *s.Sample, s.BlobCount)
		if err != nil {
			return report, err
		}
		if !ok {
			log.WithField("day", *s.Day).Warn("Unable to find the column for day, skipping")
			report.Skipped = append(report.Skipped, s.Source)
			continue
		}
		report.Written++
	}

	if err := wb.Save(); err != nil {
		return report, err
	}
	logger.WithField("path", path).WithField("written", report.Written).Info("Blob counts exported to Excel")
	return report, nil
}
