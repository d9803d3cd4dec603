package services

import (
	"errors"

	"audience-bot/internal/domain"
)

// ErrNoMessages возвращается, когда до извлечения не дошло ни одного сообщения.
var ErrNoMessages = errors.New("no messages to analyze")

// occurrenceRole — роль вхождения ссылки в сообщении.
type occurrenceRole string

const (
	roleAuthor         occurrenceRole = "author"
	roleMention        occurrenceRole = "mention"
	roleForwardChannel occurrenceRole = "forward_channel"
	roleForwardUser    occurrenceRole = "forward_user"
)

// occurrence — одно вхождение ссылки на пользователя с ее ролью.
type occurrence struct {
	raw  domain.RawUserRef
	role occurrenceRole
}

// ClassificationPolicy назначает категорию профиля по роли вхождения
// и флагам ссылки. Чистая функция без состояния.
type ClassificationPolicy struct{}

// Classify возвращает категорию для вхождения.
// Автор: канал → бот → участник. Упоминание и переслано-от-пользователя:
// канал → бот → только упомянутый. Переслано-от-канала: всегда канал
// (эта роль назначается только при установленном флаге is_channel).
func (ClassificationPolicy) Classify(raw domain.RawUserRef, role occurrenceRole) domain.ProfileType {
	if raw.IsChannel {
		return domain.TypeChannel
	}
	if raw.IsBot {
		return domain.TypeBot
	}
	if role == roleMention || role == roleForwardUser {
		return domain.TypeMentionedOnly
	}
	return domain.TypeParticipant
}

// ExtractionService сворачивает поток канонических сообщений в
// дедуплицированный список аудитории. Сервис не хранит состояние и
// безопасен для одновременного использования на независимых батчах.
type ExtractionService struct {
	policy ClassificationPolicy
}

// NewExtractionService создает новый экземпляр ExtractionService.
func NewExtractionService() *ExtractionService {
	return &ExtractionService{}
}

// Extract строит список аудитории из последовательности сообщений.
// Пустая последовательность — ошибка ErrNoMessages.
func (s *ExtractionService) Extract(messages []domain.ChatMessage) (*domain.ExtractionResult, error) {
	if len(messages) == 0 {
		return nil, ErrNoMessages
	}
	result := domain.NewExtractionResult()
	for _, msg := range messages {
		if msg.IsService {
			continue
		}
		for _, occ := range collectOccurrences(msg) {
			// Удаленные аккаунты не доходят до классификации.
			if occ.raw.IsDeleted {
				continue
			}
			id, ok := domain.ProfileIDFromRaw(occ.raw)
			if !ok {
				continue
			}
			profile := domain.AudienceProfile{
				ID:          id,
				Type:        s.policy.Classify(occ.raw, occ.role),
				Username:    occ.raw.Username,
				DisplayName: occ.raw.DisplayName,
				FirstName:   occ.raw.FirstName,
				LastName:    occ.raw.LastName,
				HasChannel:  occ.raw.IsChannel,
			}
			applyProfile(result, profile)
		}
	}
	result.Finalize()
	return result, nil
}

// collectOccurrences возвращает вхождения ссылок одного сообщения:
// автор, упоминания и источник пересылки.
func collectOccurrences(msg domain.ChatMessage) []occurrence {
	var occurrences []occurrence
	if msg.Author != nil {
		occurrences = append(occurrences, occurrence{raw: *msg.Author, role: roleAuthor})
	}
	for _, mention := range msg.Mentions {
		occurrences = append(occurrences, occurrence{raw: mention, role: roleMention})
	}
	if msg.ForwardAuthor != nil {
		role := roleForwardUser
		if msg.ForwardAuthor.IsChannel {
			role = roleForwardChannel
		}
		occurrences = append(occurrences, occurrence{raw: *msg.ForwardAuthor, role: role})
	}
	return occurrences
}

// applyProfile вставляет профиль в целевую категорию. Последнее
// вхождение той же идентичности перезаписывает все поля профиля;
// членство в категориях подчиняется правилам эксклюзивности.
func applyProfile(result *domain.ExtractionResult, profile domain.AudienceProfile) {
	switch profile.Type {
	case domain.TypeChannel:
		result.AddChannel(profile)
	case domain.TypeMentionedOnly:
		result.AddMentioned(profile)
	default:
		result.AddParticipant(profile)
	}
}
