package integration

import (
	"context"
	"testing"

	"audience-bot/internal/adapters/exporter"
	"audience-bot/internal/adapters/parser"
	"audience-bot/internal/adapters/source"
	"audience-bot/internal/core/services"
	"audience-bot/internal/domain"
	"audience-bot/internal/ports"
)

// Проверки соответствия интерфейсам портов.
var (
	_ ports.DataSource    = (*source.CliSource)(nil)
	_ ports.DataSource    = (*source.MemorySource)(nil)
	_ ports.Parser        = (*parser.MultiFormatParser)(nil)
	_ ports.Extractor     = (*services.ExtractionService)(nil)
	_ ports.ReportBuilder = (*services.ReportingService)(nil)
	_ ports.Exporter      = (*exporter.ConsoleExporter)(nil)
	_ ports.Enricher      = (*services.EnrichmentService)(nil)
)

// MockEnricher — мок-реализация ports.Enricher без вызовов API.
type MockEnricher struct {
	enrichFunc func(ctx context.Context, result *domain.ExtractionResult) error
}

func (m *MockEnricher) Enrich(ctx context.Context, result *domain.ExtractionResult) error {
	if m.enrichFunc != nil {
		return m.enrichFunc(ctx, result)
	}
	// Реализация по умолчанию проставляет описание каждому участнику.
	for id, profile := range result.Participants {
		profile.Description = "Test bio"
		result.Participants[id] = profile
	}
	return nil
}

func TestEnricherWithMock(t *testing.T) {
	var enricher ports.Enricher = &MockEnricher{}

	result := domain.NewExtractionResult()
	id := domain.ProfileID{Kind: domain.KindUserID, Value: "1"}
	result.Participants[id] = domain.AudienceProfile{ID: id, DisplayName: "Test User", Username: "testuser"}

	if err := enricher.Enrich(context.Background(), result); err != nil {
		t.Errorf("Ожидалось отсутствие ошибки от мок-обогащения, получено: %v", err)
	}

	if got := result.Participants[id].Description; got != "Test bio" {
		t.Errorf("Ожидалось описание 'Test bio', получено '%s'", got)
	}
	if got := result.Participants[id].DisplayName; got != "Test User" {
		t.Errorf("Ожидалось имя 'Test User', получено '%s'", got)
	}
}

// Обогащение встраивается в общий поток между извлечением и отчетом.
func TestFlowWithEnrichment(t *testing.T) {
	psr := parser.NewMultiFormatParser()
	messages, err := psr.Parse([]parser.File{{Filename: "result.json", Content: []byte(exportJSON)}})
	if err != nil {
		t.Fatalf("Не удалось разобрать данные: %v", err)
	}

	result, err := services.NewExtractionService().Extract(messages)
	if err != nil {
		t.Fatalf("Не удалось извлечь аудиторию: %v", err)
	}

	enricher := &MockEnricher{
		enrichFunc: func(ctx context.Context, r *domain.ExtractionResult) error {
			for id, profile := range r.Participants {
				profile.HasChannel = true
				r.Participants[id] = profile
			}
			return nil
		},
	}
	if err := enricher.Enrich(context.Background(), result); err != nil {
		t.Fatalf("Не удалось обогатить аудиторию: %v", err)
	}

	reporting := services.NewReportingService(services.ReportPolicy{ForceExcel: true}, exporter.NewExcelRenderer())
	report, err := reporting.Build(result, domain.ReportMetadata{ChatName: "Test Chat"})
	if err != nil {
		t.Fatalf("Не удалось построить отчет: %v", err)
	}

	if report.Format != domain.FormatExcel {
		t.Errorf("Ожидался табличный формат, получено %s", report.Format)
	}
	if len(report.ExcelBytes) == 0 {
		t.Error("Ожидались непустые байты книги")
	}
}
