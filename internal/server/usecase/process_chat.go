package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"audience-bot/internal/adapters/parser"
	"audience-bot/internal/cache"
	"audience-bot/internal/domain"
	"audience-bot/internal/pkg/config"
	"audience-bot/internal/ports"
)

var (
	// ErrInputTooLarge возвращается, когда суммарный размер входных файлов превышает лимит.
	ErrInputTooLarge = errors.New("input exceeds total size limit")
	// ErrTooManyMessages возвращается, когда экспорт содержит больше сообщений, чем разрешено.
	ErrTooManyMessages = errors.New("export exceeds message limit")
)

// ProcessChatUseCase инкапсулирует пайплайн обработки экспорта чата:
// проверка лимитов, разбор, извлечение аудитории, опциональное
// обогащение и сборка отчета. Результат кэшируется по хешу набора файлов.
type ProcessChatUseCase struct {
	cfg        *config.Config
	parser     ports.Parser
	extractor  ports.Extractor
	reporter   ports.ReportBuilder
	enricher   ports.Enricher // nil, если обогащение выключено
	cacheStore *cache.CacheStore
	log        *slog.Logger
}

// NewProcessChatUseCase создает новый экземпляр ProcessChatUseCase.
// enricher может быть nil: тогда шаг обогащения пропускается.
func NewProcessChatUseCase(
	cfg *config.Config,
	p ports.Parser,
	extractor ports.Extractor,
	reporter ports.ReportBuilder,
	enricher ports.Enricher,
	cacheStore *cache.CacheStore,
	log *slog.Logger,
) *ProcessChatUseCase {
	if log == nil {
		log = slog.Default()
	}
	return &ProcessChatUseCase{
		cfg:        cfg,
		parser:     p,
		extractor:  extractor,
		reporter:   reporter,
		enricher:   enricher,
		cacheStore: cacheStore,
		log:        log,
	}
}

// ReportResult — итог обработки набора файлов.
type ReportResult struct {
	Report    *domain.Report
	Hash      string
	FromCache bool
}

// Process обрабатывает набор файлов экспорта и возвращает готовый отчет.
// Порядок файлов значим: он определяет порядок сообщений, а значит и то,
// чьи атрибуты побеждают при дедупликации.
func (uc *ProcessChatUseCase) Process(ctx context.Context, files []parser.File) (*ReportResult, error) {
	if err := uc.checkSizeLimit(files); err != nil {
		return nil, err
	}

	contents := make([][]byte, 0, len(files))
	for _, f := range files {
		contents = append(contents, f.Content)
	}
	batchHash := cache.CalculateBatchHash(contents)

	if cachedItem, found := uc.cacheStore.Get(batchHash); found {
		uc.log.InfoContext(ctx, "Попадание в кэш для набора файлов", "hash", batchHash)
		return &ReportResult{Report: cachedItem.Report, Hash: batchHash, FromCache: true}, nil
	}

	messages, err := uc.parser.Parse(files)
	if err != nil {
		return nil, fmt.Errorf("не удалось разобрать файлы экспорта: %w", err)
	}
	uc.log.InfoContext(ctx, "Экспорт разобран", "file_count", len(files), "message_count", len(messages))

	if max := uc.cfg.Processing.MaxMessages; max > 0 && len(messages) > max {
		return nil, fmt.Errorf("%w: %d > %d", ErrTooManyMessages, len(messages), max)
	}

	result, err := uc.extractor.Extract(messages)
	if err != nil {
		return nil, fmt.Errorf("не удалось извлечь аудиторию: %w", err)
	}
	uc.log.InfoContext(ctx, "Аудитория извлечена",
		"participants", result.ParticipantCount(),
		"mentioned_only", result.MentionedCount(),
		"channels", result.ChannelCount(),
	)

	if uc.enricher != nil {
		if err := uc.enricher.Enrich(ctx, result); err != nil {
			// Обогащение — шаг best effort: отчет строится из того,
			// что удалось собрать.
			uc.log.WarnContext(ctx, "Обогащение завершилось с ошибкой, отчет строится по частичным данным", "error", err)
		}
	}

	metadata := domain.ReportMetadata{
		ExportedAt:       time.Now(),
		ChatName:         chatNameFromFiles(files),
		ParticipantCount: result.ParticipantCount(),
	}

	report, err := uc.reporter.Build(result, metadata)
	if err != nil {
		return nil, fmt.Errorf("не удалось собрать отчет: %w", err)
	}

	ttl := uc.cfg.CacheTTL()
	uc.cacheStore.Put(batchHash, report, ttl)
	uc.log.InfoContext(ctx, "Результат кэширован для набора файлов", "hash", batchHash, "ttl", ttl.String())

	return &ReportResult{Report: report, Hash: batchHash}, nil
}

// checkSizeLimit проверяет суммарный размер входных файлов.
func (uc *ProcessChatUseCase) checkSizeLimit(files []parser.File) error {
	limit := uc.cfg.MaxTotalBytes()
	if limit <= 0 {
		return nil
	}

	total := 0
	for _, f := range files {
		total += len(f.Content)
	}
	if total > limit {
		return fmt.Errorf("%w: %d > %d", ErrInputTooLarge, total, limit)
	}
	return nil
}

// chatNameFromFiles выводит имя чата из имени первого файла набора.
func chatNameFromFiles(files []parser.File) string {
	if len(files) == 0 {
		return ""
	}
	name := filepath.Base(files[0].Filename)
	return strings.TrimSuffix(name, filepath.Ext(name))
}
