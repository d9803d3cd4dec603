package exporter

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	"audience-bot/internal/domain"
)

// ExcelRenderer сериализует табличную модель отчета в xlsx через excelize.
type ExcelRenderer struct{}

// NewExcelRenderer создает новый экземпляр ExcelRenderer.
func NewExcelRenderer() *ExcelRenderer {
	return &ExcelRenderer{}
}

// Render записывает страницы отчета в книгу и возвращает ее байты.
func (r *ExcelRenderer) Render(report *domain.ExcelReport) ([]byte, error) {
	f := excelize.NewFile()
	defer func() {
		_ = f.Close()
	}()

	for i, sheet := range report.Sheets {
		if i == 0 {
			// Переименовываем лист, создаваемый excelize по умолчанию.
			if err := f.SetSheetName("Sheet1", sheet.Name); err != nil {
				return nil, fmt.Errorf("failed to rename sheet: %w", err)
			}
		} else {
			if _, err := f.NewSheet(sheet.Name); err != nil {
				return nil, fmt.Errorf("failed to create sheet %s: %w", sheet.Name, err)
			}
		}

		for col, header := range sheet.Columns {
			cell, err := excelize.CoordinatesToCellName(col+1, 1)
			if err != nil {
				return nil, fmt.Errorf("failed to build header cell: %w", err)
			}
			if err := f.SetCellValue(sheet.Name, cell, header); err != nil {
				return nil, fmt.Errorf("failed to set header cell: %w", err)
			}
		}

		for rowIdx, row := range sheet.Rows {
			for col, header := range sheet.Columns {
				cell, err := excelize.CoordinatesToCellName(col+1, rowIdx+2)
				if err != nil {
					return nil, fmt.Errorf("failed to build data cell: %w", err)
				}
				if err := f.SetCellValue(sheet.Name, cell, row[header]); err != nil {
					return nil, fmt.Errorf("failed to set data cell: %w", err)
				}
			}
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to write excel to buffer: %w", err)
	}
	return buf.Bytes(), nil
}
