package pipeline

import (
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"quotematch/internal"
)

var exportHeaders = []string{
	"input_line_no", "source", "raw_line", "parsed_name_or_code", "parsed_qty", "parsed_unit",
	"match_status", "confidence", "match_reason",
	"product_id", "product_sync_uid", "product_header", "product_articul", "unit_header",
	"code_elcom", "code_manufacturer", "code_raec", "code_pc", "code_etm",
	"candidate2_header", "candidate2_score",
}

// ExportXLSX renders the audit sheet: one row per request line with
// the verdict, the resolved product and the runner-up candidate.
func ExportXLSX(rows []internal.ExportRow, outputPath string) error {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)

	for i, h := range exportHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	for i, row := range rows {
		r := i + 2
		set := func(col int, value any) {
			cell, _ := excelize.CoordinatesToCellName(col, r)
			_ = f.SetCellValue(sheet, cell, value)
		}

		set(1, row.LineNo)
		set(2, row.Source)
		set(3, row.RawLine)
		set(4, orEmpty(row.ParsedNameOrCode))
		set(5, orBlank(row.ParsedQty))
		set(6, orEmpty(row.ParsedUnit))
		set(7, row.Status)
		set(8, row.Confidence)
		set(9, row.Reason)
		set(10, orBlankInt(row.ProductID))
		set(11, orEmpty(row.ProductSyncUID))
		set(12, orEmpty(row.ProductHeader))
		set(13, orEmpty(row.ProductArticul))
		set(14, orEmpty(row.UnitHeader))
		set(15, orEmpty(row.CodeElcom))
		set(16, orEmpty(row.CodeManufacturer))
		set(17, orEmpty(row.CodeRaec))
		set(18, orEmpty(row.CodePC))
		set(19, orEmpty(row.CodeEtm))
		set(20, orEmpty(row.RunnerUpHeader))
		set(21, orBlank(row.RunnerUpScore))
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	return f.SaveAs(outputPath)
}

func orEmpty(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func orBlank(v *float64) any {
	if v == nil {
		return ""
	}
	return *v
}

func orBlankInt(v *int) any {
	if v == nil {
		return ""
	}
	return *v
}
