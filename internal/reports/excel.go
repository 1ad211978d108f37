package reports

import (
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	sheetIndents   = "Indent Summary"
	sheetMaterials = "Material Summary"
	sheetSummary   = "Summary"
)

var indentHeaders = []string{
	"Indent Number", "Site", "Created By", "Status", "Created Date",
	"Estimated Cost", "Order Number", "Actual Cost", "Vendor",
}

var materialHeaders = []string{
	"Material", "Category", "Total Quantity", "Unit", "Avg Unit Price", "Total Cost",
}

// BuildWorkbook renders the three-sheet monthly workbook. Indents without an
// order show "N/A" for order fields and zero actual cost.
func BuildWorkbook(m Monthly, generatedBy string, generatedAt time.Time) (*excelize.File, error) {
	f := excelize.NewFile()
	f.SetSheetName("Sheet1", sheetIndents)
	if _, err := f.NewSheet(sheetMaterials); err != nil {
		return nil, fmt.Errorf("reports: add sheet: %w", err)
	}
	if _, err := f.NewSheet(sheetSummary); err != nil {
		return nil, fmt.Errorf("reports: add sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("reports: header style: %w", err)
	}

	if err := writeIndentSheet(f, m.Indents, bold); err != nil {
		return nil, err
	}
	if err := writeMaterialSheet(f, m.Materials, bold); err != nil {
		return nil, err
	}
	if err := writeSummarySheet(f, m, generatedBy, generatedAt, bold); err != nil {
		return nil, err
	}
	return f, nil
}

func writeIndentSheet(f *excelize.File, rows []IndentRow, bold int) error {
	if err := writeHeaders(f, sheetIndents, indentHeaders, bold); err != nil {
		return err
	}
	for i, row := range rows {
		r := i + 2
		orderNumber, vendor := "N/A", "N/A"
		actualCost := 0.0
		if row.OrderNumber != nil {
			orderNumber = *row.OrderNumber
		}
		if row.VendorName != nil {
			vendor = *row.VendorName
		}
		if row.ActualCost != nil {
			actualCost = *row.ActualCost
		}
		values := []any{
			row.IndentNumber,
			fmt.Sprintf("%s (%s)", row.SiteName, row.SiteCode),
			row.CreatedByName,
			row.Status,
			row.CreatedAt.Format("2006-01-02"),
			row.EstimatedCost,
			orderNumber,
			actualCost,
			vendor,
		}
		if err := writeRow(f, sheetIndents, r, values); err != nil {
			return err
		}
	}
	return f.SetColWidth(sheetIndents, "A", "I", 18)
}

func writeMaterialSheet(f *excelize.File, rows []MaterialRollup, bold int) error {
	if err := writeHeaders(f, sheetMaterials, materialHeaders, bold); err != nil {
		return err
	}
	for i, row := range rows {
		values := []any{
			row.MaterialName, row.Category, row.TotalQuantity,
			row.Unit, row.AvgUnitPrice, row.TotalCost,
		}
		if err := writeRow(f, sheetMaterials, i+2, values); err != nil {
			return err
		}
	}
	return f.SetColWidth(sheetMaterials, "A", "F", 18)
}

func writeSummarySheet(f *excelize.File, m Monthly, generatedBy string, generatedAt time.Time, bold int) error {
	p := message.NewPrinter(language.English)
	lines := [][2]any{
		{"Monthly Procurement Report", ""},
		{"Period", fmt.Sprintf("%s %d", time.Month(m.Period.Month), m.Period.Year)},
		{"Generated On", generatedAt.Format("2006-01-02 15:04")},
		{"Generated By", generatedBy},
		{"", ""},
		{"Total Indents", m.Stats.TotalIndents},
		{"Completed Indents", m.Stats.CompletedIndents},
		{"Pending Indents", m.Stats.PendingIndents},
		{"Completion Rate", m.Stats.CompletionRate + "%"},
		{"Total Estimated Cost", p.Sprintf("%.2f", m.Stats.TotalEstimatedCost)},
		{"Total Actual Cost", p.Sprintf("%.2f", m.Stats.TotalActualCost)},
		{"Cost Variance", p.Sprintf("%.2f", m.Stats.TotalActualCost-m.Stats.TotalEstimatedCost)},
	}
	for i, line := range lines {
		r := i + 1
		cell := fmt.Sprintf("A%d", r)
		if err := f.SetCellValue(sheetSummary, cell, line[0]); err != nil {
			return fmt.Errorf("reports: write %s: %w", sheetSummary, err)
		}
		if err := f.SetCellValue(sheetSummary, fmt.Sprintf("B%d", r), line[1]); err != nil {
			return fmt.Errorf("reports: write %s: %w", sheetSummary, err)
		}
		if err := f.SetCellStyle(sheetSummary, cell, cell, bold); err != nil {
			return err
		}
	}
	return f.SetColWidth(sheetSummary, "A", "B", 24)
}

func writeHeaders(f *excelize.File, sheet string, headers []string, bold int) error {
	for i, h := range headers {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		cell := col + "1"
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return fmt.Errorf("reports: write %s header: %w", sheet, err)
		}
		if err := f.SetCellStyle(sheet, cell, cell, bold); err != nil {
			return err
		}
	}
	return nil
}

func writeRow(f *excelize.File, sheet string, row int, values []any) error {
	for i, v := range values {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, fmt.Sprintf("%s%d", col, row), v); err != nil {
			return fmt.Errorf("reports: write %s row %d: %w", sheet, row, err)
		}
	}
	return nil
}
