package parser

import (
	"strconv"
	"strings"
	"time"

	"audience-bot/internal/domain"
)

// record — динамическая запись одного сообщения до нормализации.
// Экспорты разных поколений называют одни и те же логические поля
// по-разному, поэтому доступ идет через явные упорядоченные цепочки
// псевдонимов, а не через рефлексию.
type record map[string]any

// value возвращает первое непустое значение среди перечисленных ключей.
func (r record) value(keys ...string) (any, bool) {
	for _, key := range keys {
		v, ok := r[key]
		if !ok || v == nil {
			continue
		}
		if s, isStr := v.(string); isStr && s == "" {
			continue
		}
		return v, true
	}
	return nil, false
}

// str возвращает первое непустое строковое значение среди ключей.
func (r record) str(keys ...string) string {
	for _, key := range keys {
		if s, ok := r[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// has сообщает, присутствует ли хотя бы один из ключей.
func (r record) has(keys ...string) bool {
	for _, key := range keys {
		if _, ok := r[key]; ok {
			return true
		}
	}
	return false
}

// flag интерпретирует значение как логический флаг.
func (r record) flag(key string) bool {
	switch v := r[key].(type) {
	case bool:
		return v
	case string:
		return v == "1" || v == "true"
	default:
		return false
	}
}

// buildMessage превращает динамическую запись в каноническое сообщение.
// Общая точка для структурированного и markup-декодеров.
func buildMessage(data record) domain.ChatMessage {
	fwd := buildForwardAuthor(data)
	return domain.ChatMessage{
		MessageID:     parseMessageID(data),
		Timestamp:     parseTimestamp(data),
		Author:        buildAuthor(data),
		Mentions:      buildMentions(data),
		Text:          parseText(data["text"]),
		IsService:     data.str("type") == "service" || data.flag("is_service_message"),
		IsForwarded:   fwd != nil,
		ForwardAuthor: fwd,
	}
}

// buildAuthor разрешает автора сообщения.
// Предпочитается явный вложенный объект author; иначе автор собирается
// из плоских legacy-полей from/actor.
func buildAuthor(data record) *domain.RawUserRef {
	if payload, ok := data["author"].(map[string]any); ok {
		return buildRawUserRef(record(payload), "")
	}
	fallbackName := data.str("from", "actor")
	payload := record{}
	if id, ok := data.value("from_id", "actor_id"); ok {
		payload["id"] = id
	}
	if username := data.str("from_username", "actor_username"); username != "" {
		payload["username"] = username
	}
	return buildRawUserRef(payload, fallbackName)
}

// buildMentions собирает ссылки из списка mentions.
// Элемент может быть объектом или голой строкой username.
func buildMentions(data record) []domain.RawUserRef {
	entries, ok := data["mentions"].([]any)
	if !ok {
		return nil
	}
	var mentions []domain.RawUserRef
	for _, entry := range entries {
		var ref *domain.RawUserRef
		switch v := entry.(type) {
		case map[string]any:
			ref = buildRawUserRef(record(v), "")
		case string:
			ref = buildRawUserRef(record{}, v)
		}
		if ref != nil {
			mentions = append(mentions, *ref)
		}
	}
	return mentions
}

// buildForwardAuthor разрешает источник пересылки.
// Эвристика канала (подстрока "channel" в id или имени, либо ключи
// forwarded_from_chat / forwarded_from_chat_id) намеренно сохранена в
// исходном виде: пользователь с именем вроде "Channel Master" будет
// ошибочно отнесен к каналам.
func buildForwardAuthor(data record) *domain.RawUserRef {
	sourceName := data.str("forwarded_from", "forward_from", "forwarded_from_chat")
	sourceID, hasID := data.value("forwarded_from_id", "forward_from_id", "forwarded_from_chat_id")
	if sourceName == "" && !hasID {
		return nil
	}
	payload := record{}
	if hasID {
		payload["id"] = sourceID
	}
	if username := data.str("forwarded_from_username"); username != "" {
		payload["username"] = username
	}
	if sourceName != "" {
		payload["display_name"] = sourceName
	}
	idStr := ""
	if hasID {
		idStr = stringify(sourceID)
	}
	if strings.Contains(strings.ToLower(idStr), "channel") ||
		data.has("forwarded_from_chat", "forwarded_from_chat_id") ||
		strings.Contains(strings.ToLower(sourceName), "channel") {
		payload["is_channel"] = true
	}
	return buildRawUserRef(payload, sourceName)
}

// buildRawUserRef конструирует ссылку на пользователя из записи.
// Возвращает nil, если не удалось разрешить ни одно поле, похожее на имя:
// запись с одним лишь числовым id отбрасывается.
func buildRawUserRef(payload record, fallbackName string) *domain.RawUserRef {
	if len(payload) == 0 && fallbackName == "" {
		return nil
	}
	firstName := payload.str("first_name")
	lastName := payload.str("last_name")
	if firstName == "" && lastName == "" && fallbackName != "" {
		firstName, lastName = splitFullName(fallbackName)
	}
	username := payload.str("username")
	displayName := payload.str("display_name")
	if displayName == "" {
		displayName = fallbackName
	}
	if displayName == "" {
		displayName = firstName
	}
	if displayName == "" {
		displayName = lastName
	}
	if displayName == "" {
		displayName = username
	}
	if displayName == "" {
		return nil
	}
	idValue, _ := payload.value("id", "user_id")
	return &domain.RawUserRef{
		DisplayName: strings.TrimSpace(displayName),
		UserID:      parseUserID(idValue),
		Username:    username,
		FirstName:   firstName,
		LastName:    lastName,
		IsDeleted:   payload.flag("is_deleted"),
		IsBot:       payload.flag("is_bot"),
		IsChannel:   payload.flag("is_channel"),
	}
}

// parseText приводит текст сообщения к строке. В структурированном
// экспорте поле text может быть строкой или массивом фрагментов
// (строки и объекты с полем text — ссылки, упоминания и т.п.).
func parseText(v any) string {
	switch value := v.(type) {
	case string:
		return value
	case []any:
		var sb strings.Builder
		for _, part := range value {
			switch fragment := part.(type) {
			case string:
				sb.WriteString(fragment)
			case map[string]any:
				sb.WriteString(record(fragment).str("text"))
			}
		}
		return sb.String()
	}
	return ""
}

// parseTimestamp разбирает отметку времени по цепочке:
// числовой epoch → строка ISO-8601 → строка из цифр как epoch →
// запасное поле date_unixtime. Неудача не является ошибкой.
func parseTimestamp(data record) *time.Time {
	if ts := timeFromValue(data["date"]); ts != nil {
		return ts
	}
	return timeFromValue(data["date_unixtime"])
}

func timeFromValue(v any) *time.Time {
	switch value := v.(type) {
	case float64:
		t := time.Unix(int64(value), 0)
		return &t
	case int64:
		t := time.Unix(value, 0)
		return &t
	case string:
		// Экспорты встречаются и с пробелом вместо T, и с одной лишь датой.
		for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02"} {
			if t, err := time.Parse(layout, value); err == nil {
				return &t
			}
		}
		if isDigits(value) {
			if seconds, err := strconv.ParseInt(value, 10, 64); err == nil {
				t := time.Unix(seconds, 0)
				return &t
			}
		}
	}
	return nil
}

// parseMessageID приводит идентификатор сообщения к строке.
func parseMessageID(data record) string {
	v, ok := data.value("message_id", "id")
	if !ok {
		return ""
	}
	return stringify(v)
}

// parseUserID извлекает числовой id: числа берутся как есть,
// из строк вида "user12345" выбираются цифры.
func parseUserID(v any) *int64 {
	switch value := v.(type) {
	case float64:
		id := int64(value)
		return &id
	case int64:
		id := value
		return &id
	case int:
		id := int64(value)
		return &id
	case string:
		var digits strings.Builder
		for _, ch := range value {
			if ch >= '0' && ch <= '9' {
				digits.WriteRune(ch)
			}
		}
		if digits.Len() == 0 {
			return nil
		}
		id, err := strconv.ParseInt(digits.String(), 10, 64)
		if err != nil {
			return nil
		}
		return &id
	}
	return nil
}

// splitFullName делит отображаемое имя на имя и фамилию
// по первой последовательности пробелов.
func splitFullName(fullName string) (string, string) {
	parts := strings.Fields(fullName)
	if len(parts) == 0 {
		return "", ""
	}
	if len(parts) == 1 {
		return parts[0], ""
	}
	return parts[0], strings.Join(parts[1:], " ")
}

func stringify(v any) string {
	switch value := v.(type) {
	case string:
		return value
	case float64:
		return strconv.FormatInt(int64(value), 10)
	case int64:
		return strconv.FormatInt(value, 10)
	case int:
		return strconv.Itoa(value)
	case bool:
		return strconv.FormatBool(value)
	default:
		return ""
	}
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, ch := range s {
		if ch < '0' || ch > '9' {
			return false
		}
	}
	return true
}
