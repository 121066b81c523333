package analytics

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// シート名
const (
	sheetSummary   = "Summary"
	sheetActivity  = "Daily scans"
	sheetTopCards  = "Top cards"
	sheetBreakdown = "Breakdown"
)

// WriteXLSX は集計結果をExcelブックとしてwに書き出す。
func WriteXLSX(w io.Writer, r *Report) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetSummary); err != nil {
		return fmt.Errorf("failed to rename sheet: %w", err)
	}
	for _, name := range []string{sheetActivity, sheetTopCards, sheetBreakdown} {
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("failed to create sheet %s: %w", name, err)
		}
	}

	summary := [][]any{
		{"Time range", string(r.Window)},
		{"Since (UTC)", r.Since.UTC().Format("2006-01-02 15:04:05")},
		{"Total cards", r.TotalCards},
		{"New cards", r.NewCards},
		{"Total scans", r.TotalScans},
		{"QR scans", r.QRScans},
		{"NFC scans", r.NFCScans},
	}
	if err := writeRows(f, sheetSummary, summary); err != nil {
		return err
	}

	activity := [][]any{{"Date", "Scans"}}
	for _, d := range r.ScanActivity {
		activity = append(activity, []any{d.Date, d.Scans})
	}
	if err := writeRows(f, sheetActivity, activity); err != nil {
		return err
	}

	top := [][]any{{"Card ID", "Name", "Scans"}}
	for _, c := range r.TopCards {
		top = append(top, []any{c.CardID, c.Name, c.Scans})
	}
	if err := writeRows(f, sheetTopCards, top); err != nil {
		return err
	}

	breakdown := [][]any{{"Kind", "Label", "Count", "Percentage"}}
	for _, s := range r.ScanMethods {
		breakdown = append(breakdown, []any{"scan method", s.Label, s.Count, s.Percentage})
	}
	for _, s := range r.DeviceTypes {
		breakdown = append(breakdown, []any{"device type", s.Label, s.Count, s.Percentage})
	}
	if err := writeRows(f, sheetBreakdown, breakdown); err != nil {
		return err
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return fmt.Errorf("failed to resolve cell: %w", err)
		}
		values := row
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}
