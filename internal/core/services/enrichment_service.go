package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/gotd/td/tg"

	"audience-bot/internal/domain"
	"audience-bot/internal/ports"
)

// ErrProfileNotResolved — терминальная ошибка: профиль не удалось найти через API.
var ErrProfileNotResolved = errors.New("profile not resolvable")

// channelRegexp ищет упоминания каналов в описании профиля:
// шаблоны вида @channelname или t.me/channelname.
var channelRegexp = regexp.MustCompile(`(?:@|t\.me/)([a-zA-Z0-9_]{5,})`)

// extractChannelFromBio возвращает имя канала, упомянутого в bio,
// или пустую строку, если упоминаний нет.
func extractChannelFromBio(bio string) string {
	if bio == "" {
		return ""
	}

	matches := channelRegexp.FindStringSubmatch(bio)
	if len(matches) > 1 {
		return matches[1]
	}

	return ""
}

// EnrichmentConfig хранит конфигурацию для EnrichmentService.
type EnrichmentConfig struct {
	// TotalTimeout — максимальная продолжительность обогащения всего списка.
	TotalTimeout time.Duration
	// OperationTimeout — таймаут одного вызова Telegram API.
	OperationTimeout time.Duration
	// PoolSize — количество одновременных воркеров.
	PoolSize int
	// ClientRetryPause — пауза перед повторной попыткой получить клиент от роутера.
	ClientRetryPause time.Duration
}

// EnrichmentOption — функциональная опция для настройки EnrichmentService.
type EnrichmentOption func(*EnrichmentService)

// WithTotalTimeout устанавливает общий таймаут процесса обогащения.
func WithTotalTimeout(d time.Duration) EnrichmentOption {
	return func(s *EnrichmentService) {
		s.config.TotalTimeout = d
	}
}

// WithOperationTimeout устанавливает таймаут одной операции API.
func WithOperationTimeout(d time.Duration) EnrichmentOption {
	return func(s *EnrichmentService) {
		s.config.OperationTimeout = d
	}
}

// WithPoolSize устанавливает количество одновременных воркеров.
func WithPoolSize(n int) EnrichmentOption {
	return func(s *EnrichmentService) {
		if n > 0 {
			s.config.PoolSize = n
		}
	}
}

// WithClientRetryPause устанавливает паузу между попытками получения клиента.
func WithClientRetryPause(d time.Duration) EnrichmentOption {
	return func(s *EnrichmentService) {
		s.config.ClientRetryPause = d
	}
}

// WithEnrichmentLogger устанавливает логгер для сервиса.
func WithEnrichmentLogger(l *slog.Logger) EnrichmentOption {
	return func(s *EnrichmentService) {
		if l != nil {
			s.log = l
		}
	}
}

// EnrichmentService дозаполняет профили участников данными из Telegram API:
// описание (bio), признак наличия канала и недостающие имена.
// Сервис не хранит состояние и безопасен для одновременного использования.
type EnrichmentService struct {
	router ports.Router
	config EnrichmentConfig
	log    *slog.Logger
}

// NewEnrichmentService создает новый EnrichmentService с использованием
// функциональных опций поверх конфигурации по умолчанию.
func NewEnrichmentService(r ports.Router, opts ...EnrichmentOption) *EnrichmentService {
	s := &EnrichmentService{
		router: r,
		config: EnrichmentConfig{
			TotalTimeout:     10 * time.Minute,
			OperationTimeout: 5 * time.Second,
			PoolSize:         1,
			ClientRetryPause: 1 * time.Second,
		},
		log: slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// enrichOutcome — вспомогательная структура для передачи результатов от воркеров.
type enrichOutcome struct {
	profile domain.AudienceProfile
	err     error
	isSet   bool // Отличает успешное обогащение от случая, когда профиль не был найден.
}

// Enrich дозаполняет профили участников в результате извлечения.
// Обогащаются только профили с известным username: для остальных
// у нас нет access hash, и API их не разрешит. Метод мутирует result
// на месте; при срабатывании общего таймаута применяется то, что успели
// собрать, и возвращается ошибка.
func (s *EnrichmentService) Enrich(ctx context.Context, result *domain.ExtractionResult) error {
	if result == nil || len(result.Participants) == 0 {
		return nil
	}

	candidates := make([]domain.AudienceProfile, 0, len(result.Participants))
	for _, profile := range result.Participants {
		if profile.Username == "" {
			continue
		}
		candidates = append(candidates, profile)
	}

	if len(candidates) == 0 {
		s.log.InfoContext(ctx, "No participants with usernames, nothing to enrich")
		return nil
	}

	cfg := s.config

	ctx, cancel := context.WithTimeout(ctx, cfg.TotalTimeout)
	defer cancel()

	s.log.InfoContext(ctx, "Starting enrichment process",
		"candidates", len(candidates),
		"pool_size", cfg.PoolSize,
		"total_timeout", cfg.TotalTimeout,
	)

	tasks := make(chan domain.AudienceProfile, len(candidates))
	results := make(chan enrichOutcome, len(candidates))
	var wg sync.WaitGroup

	for i := 0; i < cfg.PoolSize; i++ {
		wg.Add(1)
		go s.worker(ctx, &wg, &cfg, tasks, results)
	}

	for _, p := range candidates {
		tasks <- p
	}

	enriched := make([]domain.AudienceProfile, 0, len(candidates))
	var processingErrors []error
	finishedCount := 0

	for finishedCount < len(candidates) {
		select {
		case res := <-results:
			if res.err != nil {
				// Терминальная ошибка (скорее всего, таймаут): задача завершена неудачно.
				processingErrors = append(processingErrors, res.err)
			} else if res.isSet {
				enriched = append(enriched, res.profile)
			}
			finishedCount++
		case <-ctx.Done():
			// Глобальный таймаут сработал, пока мы ждали результатов.
			// Применяем то, что успели собрать, и возвращаем ошибку.
			s.apply(result, enriched)
			err := fmt.Errorf("enrichment process timed out: %w", ctx.Err())
			s.log.WarnContext(ctx, "Enrichment process timed out", "enriched_count", len(enriched), "error", err)
			return err
		}
	}

	// Все задачи получили терминальный статус. Теперь можно безопасно
	// закрыть канал задач, чтобы воркеры завершились.
	close(tasks)
	wg.Wait()
	close(results)

	s.apply(result, enriched)

	if len(processingErrors) > 0 {
		return errors.Join(processingErrors...)
	}

	s.log.InfoContext(ctx, "Enrichment process finished successfully", "enriched_count", len(enriched))
	return nil
}

// apply записывает обогащенные профили обратно в результат извлечения.
// Профиль, выбывший из участников за время обогащения, игнорируется.
func (s *EnrichmentService) apply(result *domain.ExtractionResult, enriched []domain.AudienceProfile) {
	for _, profile := range enriched {
		if _, ok := result.Participants[profile.ID]; !ok {
			continue
		}
		result.Participants[profile.ID] = profile
	}
}

func (s *EnrichmentService) worker(ctx context.Context, wg *sync.WaitGroup, cfg *EnrichmentConfig, tasks chan domain.AudienceProfile, results chan<- enrichOutcome) {
	defer wg.Done()
	for {
		select {
		case <-ctx.Done():
			// Глобальный контекст завершен, выходим.
			return
		case p, ok := <-tasks:
			if !ok {
				// Канал задач закрыт, больше работы нет.
				return
			}

			profile, err := s.enrichProfile(ctx, cfg, p)
			if err != nil {
				if errors.Is(err, ErrProfileNotResolved) {
					s.log.DebugContext(ctx, "Profile could not be resolved, skipping", "username", p.Username, "error", err)
					// Неудача для одного профиля, а не всего процесса.
					// Пустой результат уменьшает счетчик ожидания в Enrich.
					results <- enrichOutcome{isSet: false}
				} else if ctx.Err() != nil {
					s.log.WarnContext(ctx, "Failed to enrich profile due to context cancellation", "username", p.Username, "error", err)
					results <- enrichOutcome{err: err}
				} else {
					// Прочие ошибки считаются временными: задача уходит в конец очереди.
					s.log.WarnContext(ctx, "Re-queueing profile due to transient error", "username", p.Username, "error", err)
					tasks <- p
				}
				continue
			}

			results <- enrichOutcome{profile: profile, isSet: true}
		}
	}
}

// enrichProfile разрешает профиль по username и дозаполняет его полями из API.
func (s *EnrichmentService) enrichProfile(ctx context.Context, cfg *EnrichmentConfig, p domain.AudienceProfile) (domain.AudienceProfile, error) {
	tgUser, err := s.resolveByUsername(ctx, cfg, p.Username)
	if err != nil {
		return domain.AudienceProfile{}, err
	}

	s.log.DebugContext(ctx, "Profile resolved successfully", "username", p.Username, "tg_user_id", tgUser.ID)

	bio, bioErr := s.getFullUserInfo(ctx, cfg, tgUser)
	if bioErr != nil {
		// Ошибка получения bio некритична, но возвращаем ее,
		// чтобы задачу можно было перепоставить в очередь.
		s.log.WarnContext(ctx, "Failed to get full user info, will retry", "tg_user_id", tgUser.ID, "error", bioErr)
		return domain.AudienceProfile{}, fmt.Errorf("failed to get full user info for %d: %w", tgUser.ID, bioErr)
	}

	p.Description = bio
	if extractChannelFromBio(bio) != "" {
		p.HasChannel = true
	}
	if p.FirstName == "" {
		p.FirstName = tgUser.FirstName
	}
	if p.LastName == "" {
		p.LastName = tgUser.LastName
	}
	if p.DisplayName == "" {
		p.DisplayName = strings.TrimSpace(fmt.Sprintf("%s %s", tgUser.FirstName, tgUser.LastName))
	}

	return p, nil
}

func (s *EnrichmentService) resolveByUsername(ctx context.Context, cfg *EnrichmentConfig, username string) (*tg.User, error) {
	cleanUsername := strings.TrimPrefix(username, "@")
	s.log.DebugContext(ctx, "Executing ContactsResolveUsername", "username", cleanUsername)
	logArgs := []any{"operation", "ContactsResolveUsername", "username", cleanUsername}
	res, err := s.executeOperation(ctx, cfg, logArgs, func(ctx context.Context, cl ports.TelegramClient) (any, error) {
		return cl.ContactsResolveUsername(ctx, &tg.ContactsResolveUsernameRequest{Username: cleanUsername})
	})
	if err != nil {
		s.log.WarnContext(ctx, "resolveByUsername executeOperation failed", "username", username, "error", err)
		return nil, err
	}
	if res == nil {
		err := errors.New("resolve by username returned no result")
		s.log.ErrorContext(ctx, "Unexpected nil result from API", "username", username, "error", err)
		return nil, err
	}

	resolved, ok := res.(*tg.ContactsResolvedPeer)
	if !ok || resolved == nil || len(resolved.Users) == 0 {
		err := fmt.Errorf("%w: username not found or resolved to non-user", ErrProfileNotResolved)
		s.log.DebugContext(ctx, "Could not resolve username", "username", username, "error", err)
		return nil, err
	}
	if user, ok := resolved.Users[0].(*tg.User); ok {
		return user, nil
	}

	err = errors.New("resolved peer is not a user")
	s.log.WarnContext(ctx, "Unexpected peer type from resolution", "username", username, "peer_type", fmt.Sprintf("%T", resolved.Users[0]))
	return nil, err
}

func (s *EnrichmentService) getFullUserInfo(ctx context.Context, cfg *EnrichmentConfig, user *tg.User) (string, error) {
	accessHash, ok := user.GetAccessHash()
	if !ok {
		s.log.WarnContext(ctx, "User object is missing access hash", "user_id", user.ID)
		return "", errors.New("no access hash for user")
	}

	s.log.DebugContext(ctx, "Executing UsersGetFullUser", "user_id", user.ID)
	logArgs := []any{"operation", "UsersGetFullUser", "user_id", user.ID}
	res, err := s.executeOperation(ctx, cfg, logArgs, func(ctx context.Context, cl ports.TelegramClient) (any, error) {
		return cl.UsersGetFullUser(ctx, &tg.InputUser{UserID: user.ID, AccessHash: accessHash})
	})
	if err != nil {
		s.log.WarnContext(ctx, "getFullUserInfo executeOperation failed", "user_id", user.ID, "error", err)
		return "", err
	}
	if res == nil {
		err := errors.New("get full user info returned no result")
		s.log.ErrorContext(ctx, "Unexpected nil result from API", "user_id", user.ID, "error", err)
		return "", err
	}

	userFull, ok := res.(*tg.UsersUserFull)
	if !ok {
		err := errors.New("failed to cast to UserFull")
		s.log.ErrorContext(ctx, "Unexpected type from getFullUserInfo", "user_id", user.ID, "type", fmt.Sprintf("%T", res))
		return "", err
	}
	return userFull.FullUser.About, nil
}

func (s *EnrichmentService) executeOperation(ctx context.Context, cfg *EnrichmentConfig, logArgs []any, fn func(ctx context.Context, cl ports.TelegramClient) (any, error)) (any, error) {
	// Цикл отвечает за получение клиента. Он "бесконечный",
	// но ограничен родительским контекстом.
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		s.log.DebugContext(ctx, "Attempting to get a client from the router")
		apiClient, err := s.router.GetClient(ctx)
		if err != nil {
			s.log.WarnContext(ctx, "Failed to get a client from the router, will retry", "error", err, "pause", cfg.ClientRetryPause)
			select {
			case <-time.After(cfg.ClientRetryPause):
				continue
			case <-ctx.Done():
				return nil, fmt.Errorf("не удалось получить клиент, так как контекст был отменен: %w", ctx.Err())
			}
		}

		s.log.DebugContext(ctx, "Obtained client successfully", "client_id", apiClient.ID())

		opCtx, opCancel := context.WithTimeout(ctx, cfg.OperationTimeout)
		res, opErr := fn(opCtx, apiClient)
		opCancel()

		finalLogArgs := append(logArgs, "client_id", apiClient.ID())

		if opErr == nil {
			s.log.DebugContext(ctx, "API operation executed successfully", finalLogArgs...)
			return res, nil
		}

		// Ошибка операции возвращается вызывающей стороне: она решает,
		// перепоставить задачу или завершить ее.
		finalLogArgs = append(finalLogArgs, "error", opErr)
		s.log.WarnContext(ctx, "API operation failed", finalLogArgs...)
		return nil, fmt.Errorf("операция API завершилась с ошибкой: %w", opErr)
	}
}
