package domain

import (
	"errors"
	"time"
)

// ReportFormat определяет способ доставки отчета.
type ReportFormat string

const (
	FormatPlainText ReportFormat = "plain_text"
	FormatExcel     ReportFormat = "excel"
)

// ReportMetadata описывает контекст построения отчета.
type ReportMetadata struct {
	ExportedAt       time.Time
	ChatName         string
	ParticipantCount int
}

// TextList — текстовый вариант отчета, по одной строке на участника.
type TextList struct {
	Lines []string
}

// SheetModel — одна страница табличного отчета.
type SheetModel struct {
	Name    string
	Columns []string
	Rows    []map[string]string
}

// ExcelReport — табличный вариант отчета, по странице на категорию.
type ExcelReport struct {
	Sheets []SheetModel
}

// ErrIncompleteReport возвращается при попытке завершить отчет без содержимого.
var ErrIncompleteReport = errors.New("report is incomplete")

// AudienceReport — собранный отчет в одном из двух форматов.
type AudienceReport struct {
	Format   ReportFormat
	Metadata ReportMetadata
	TextList *TextList
	Excel    *ExcelReport
}

// SetText помечает отчет как текстовый.
func (r *AudienceReport) SetText(metadata ReportMetadata, list *TextList) {
	r.Format = FormatPlainText
	r.Metadata = metadata
	r.TextList = list
	r.Excel = nil
}

// SetExcel помечает отчет как табличный.
func (r *AudienceReport) SetExcel(metadata ReportMetadata, excel *ExcelReport) {
	r.Format = FormatExcel
	r.Metadata = metadata
	r.Excel = excel
	r.TextList = nil
}

// Report — готовый к доставке отчет: текст либо байты книги xlsx.
type Report struct {
	Format     ReportFormat
	Metadata   ReportMetadata
	Text       string
	ExcelBytes []byte
}

// Validate проверяет, что отчет согласован с заявленным форматом.
func (r *AudienceReport) Validate() error {
	if r.Format == "" {
		return ErrIncompleteReport
	}
	if r.Format == FormatPlainText && r.TextList == nil {
		return ErrIncompleteReport
	}
	if r.Format == FormatExcel && r.Excel == nil {
		return ErrIncompleteReport
	}
	return nil
}
