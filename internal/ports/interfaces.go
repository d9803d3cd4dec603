package ports

import (
	"context"

	"audience-bot/internal/adapters/parser"
	"audience-bot/internal/domain"
)

// DataSource определяет интерфейс для получения исходных данных чата.
type DataSource interface {
	// Fetch загружает данные из источника и возвращает их в виде байтового среза.
	Fetch() ([]byte, error)
}

// Parser определяет интерфейс для разбора файлов экспорта чата.
type Parser interface {
	// Parse приводит файлы к последовательности канонических сообщений,
	// соблюдая порядок списка файлов.
	Parse(files []parser.File) ([]domain.ChatMessage, error)
}

// Extractor определяет интерфейс извлечения аудитории из сообщений.
type Extractor interface {
	Extract(messages []domain.ChatMessage) (*domain.ExtractionResult, error)
}

// ReportBuilder определяет интерфейс построения отчета из результата извлечения.
type ReportBuilder interface {
	Build(result *domain.ExtractionResult, metadata domain.ReportMetadata) (*domain.Report, error)
}

// Exporter определяет интерфейс для вывода результата извлечения.
type Exporter interface {
	Export(result *domain.ExtractionResult) error
}

// Enricher определяет интерфейс дозаполнения профилей участников
// данными из внешнего API. Реализация мутирует result на месте.
type Enricher interface {
	Enrich(ctx context.Context, result *domain.ExtractionResult) error
}
