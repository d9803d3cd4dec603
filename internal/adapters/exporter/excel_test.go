package exporter

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"audience-bot/internal/domain"
)

func TestExcelRenderer_Render(t *testing.T) {
	renderer := NewExcelRenderer()

	report := &domain.ExcelReport{
		Sheets: []domain.SheetModel{
			{
				Name:    "Участники",
				Columns: []string{"Имя", "Username", "Наличие канала"},
				Rows: []map[string]string{
					{"Имя": "Alice Smith", "Username": "alice", "Наличие канала": "да"},
					{"Имя": "Bob", "Username": "", "Наличие канала": ""},
				},
			},
			{
				Name:    "Каналы",
				Columns: []string{"Имя", "Username"},
				Rows: []map[string]string{
					{"Имя": "Daily News", "Username": "daily_news"},
				},
			},
		},
	}

	data, err := renderer.Render(report)
	require.NoError(t, err)
	require.NotEmpty(t, data)

	// Открываем книгу обратно и проверяем содержимое.
	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	require.Equal(t, []string{"Участники", "Каналы"}, f.GetSheetList())

	header, err := f.GetCellValue("Участники", "A1")
	require.NoError(t, err)
	require.Equal(t, "Имя", header)

	header, err = f.GetCellValue("Участники", "C1")
	require.NoError(t, err)
	require.Equal(t, "Наличие канала", header)

	cell, err := f.GetCellValue("Участники", "A2")
	require.NoError(t, err)
	require.Equal(t, "Alice Smith", cell)

	cell, err = f.GetCellValue("Участники", "C2")
	require.NoError(t, err)
	require.Equal(t, "да", cell)

	cell, err = f.GetCellValue("Участники", "B3")
	require.NoError(t, err)
	require.Equal(t, "", cell)

	cell, err = f.GetCellValue("Каналы", "B2")
	require.NoError(t, err)
	require.Equal(t, "daily_news", cell)
}

func TestExcelRenderer_EmptyReport(t *testing.T) {
	renderer := NewExcelRenderer()

	// Без страниц получается валидная книга со стандартным листом.
	data, err := renderer.Render(&domain.ExcelReport{})
	require.NoError(t, err)
	require.NotEmpty(t, data)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	require.Len(t, f.GetSheetList(), 1)
}

func TestExcelRenderer_SheetWithoutRows(t *testing.T) {
	renderer := NewExcelRenderer()

	report := &domain.ExcelReport{
		Sheets: []domain.SheetModel{
			{Name: "Упомянутые", Columns: []string{"Имя", "Username"}},
		},
	}

	data, err := renderer.Render(report)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	header, err := f.GetCellValue("Упомянутые", "B1")
	require.NoError(t, err)
	require.Equal(t, "Username", header)

	// Строк с данными нет.
	rows, err := f.GetRows("Упомянутые")
	require.NoError(t, err)
	require.Len(t, rows, 1)
}
