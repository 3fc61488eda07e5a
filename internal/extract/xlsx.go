package extract

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

const (
	xlsxMaxSheets = 2
	xlsxMaxRows   = 10
	xlsxMaxCols   = 10
)

// extractXLSX previews the first sheets of a workbook as pipe-separated rows.
func extractXLSX(path string) (string, error) {
	var lines []string
	if err := fileHeader("Excel名", path, &lines); err != nil {
		return "", err
	}

	wb, err := excelize.OpenFile(path)
	if err != nil {
		return "", fmt.Errorf("open workbook: %w", err)
	}
	defer wb.Close()

	sheets := wb.GetSheetList()
	lines = append(lines, fmt.Sprintf("シート数: %d", len(sheets)))
	lines = append(lines, fmt.Sprintf("シート一覧: %s", strings.Join(sheets, ", ")))

	for i, sheet := range sheets {
		if i >= xlsxMaxSheets {
			lines = append(lines, fmt.Sprintf("\n...(残り %d シートは省略されました)", len(sheets)-xlsxMaxSheets))
			break
		}
		lines = append(lines, fmt.Sprintf("\n[シート: %s]", sheet))

		rows, err := wb.GetRows(sheet)
		if err != nil {
			lines = append(lines, fmt.Sprintf("シートの読み込みに失敗しました: %v", err))
			continue
		}
		if len(rows) == 0 {
			lines = append(lines, "データなし")
			continue
		}

		maxRows := len(rows)
		if maxRows > xlsxMaxRows {
			maxRows = xlsxMaxRows
		}
		omittedCols := 0
		for _, row := range rows[:maxRows] {
			if len(row) > xlsxMaxCols {
				if over := len(row) - xlsxMaxCols; over > omittedCols {
					omittedCols = over
				}
				row = row[:xlsxMaxCols]
			}
			lines = append(lines, strings.Join(row, " | "))
		}
		if len(rows) > maxRows {
			lines = append(lines, fmt.Sprintf("...(残り %d 行は省略されました)", len(rows)-maxRows))
		}
		if omittedCols > 0 {
			lines = append(lines, fmt.Sprintf("...(残り %d 列は省略されました)", omittedCols))
		}
	}

	return strings.Join(lines, "\n"), nil
}
