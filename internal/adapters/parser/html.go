package parser

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"

	"audience-bot/internal/domain"
)

// htmlScanner — толерантный сканер markup-экспорта. Никакой валидации
// схемы и построения дерева: состояние сводится к счетчику вложенности
// текущего блока сообщения и флагам "сейчас читаем X". Непарные
// закрывающие теги и битая разметка не прерывают разбор.
type htmlScanner struct {
	messages []record
	current  record
	depth    int

	inFromName bool
	inText     bool
	inDate     bool
}

// parseHTML восстанавливает канонические сообщения из markup-экспорта.
// Накопленные псевдозаписи проходят через ту же логику конструирования,
// что и записи структурированного декодера.
func parseHTML(data []byte) ([]domain.ChatMessage, error) {
	scanner := &htmlScanner{}
	scanner.run(data)

	var messages []domain.ChatMessage
	for _, entry := range scanner.messages {
		messages = append(messages, buildMessage(entry))
	}
	return messages, nil
}

func (s *htmlScanner) run(data []byte) {
	tokenizer := html.NewTokenizer(bytes.NewReader(data))
	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			// io.EOF либо битая разметка: в обоих случаях отдаем накопленное.
			return
		case html.StartTagToken:
			token := tokenizer.Token()
			if token.Data == "div" {
				s.handleStartTag(attributeMap(token))
			}
		case html.EndTagToken:
			token := tokenizer.Token()
			if token.Data == "div" {
				s.handleEndTag()
			}
		case html.TextToken:
			s.handleText(string(tokenizer.Text()))
		}
	}
}

// handleStartTag открывает новый блок сообщения либо отслеживает
// вложенные блоки автора, текста и даты.
func (s *htmlScanner) handleStartTag(attrs map[string]string) {
	classes := strings.Fields(attrs["class"])

	// Новый блок сообщения: class содержит токен "message".
	if containsToken(classes, "message") {
		s.openMessage(attrs)
		return
	}

	if s.current == nil {
		return
	}
	s.depth++
	if containsToken(classes, "from_name") {
		s.inFromName = true
	}
	if containsToken(classes, "text") {
		s.inText = true
	}
	if containsToken(classes, "date") {
		// Экспорт кладет ISO-дату в атрибут title.
		if title := attrs["title"]; title != "" {
			s.current["date"] = title
		}
		s.inDate = true
	}
}

// handleEndTag закрывает вложенный блок; при достижении нулевой
// вложенности блок сообщения финализируется и попадает в накопитель.
func (s *htmlScanner) handleEndTag() {
	if s.depth > 0 {
		s.depth--
		if s.depth == 0 && s.current != nil {
			s.messages = append(s.messages, s.current)
			s.current = nil
		}
	}
	s.inFromName = false
	s.inText = false
	s.inDate = false
}

// handleText направляет текстовое содержимое по активному флагу.
// Фрагменты обрезаются по пробелам; пустые игнорируются, чтобы не
// вносить лишние переводы строк.
func (s *htmlScanner) handleText(raw string) {
	if s.current == nil {
		return
	}
	text := strings.TrimSpace(raw)
	if text == "" {
		return
	}
	switch {
	case s.inFromName:
		s.current["from"] = text
		// Имя из from_name используется только когда data-атрибуты
		// автора отсутствовали.
		if _, ok := s.current["author"]; !ok {
			s.current["author"] = map[string]any{"display_name": text}
		}
	case s.inText:
		if existing, ok := s.current["text"].(string); ok && existing != "" {
			s.current["text"] = existing + "\n" + text
		} else {
			s.current["text"] = text
		}
	case s.inDate:
		s.current["date"] = text
	}
}

// openMessage заводит запись сообщения, засеянную из data-атрибутов блока.
func (s *htmlScanner) openMessage(attrs map[string]string) {
	current := record{
		"text": attrs["data-text"],
	}
	if id := firstAttr(attrs, "data-id", "id"); id != "" {
		current["message_id"] = id
	}
	if date := attrs["data-date"]; date != "" {
		current["date"] = date
	}

	authorID := attrs["data-author-id"]
	authorUsername := attrs["data-author-username"]
	if authorID != "" || authorUsername != "" {
		author := map[string]any{
			"is_deleted": attrs["data-author-deleted"] == "1",
			"is_bot":     attrs["data-author-bot"] == "1",
			"is_channel": attrs["data-author-channel"] == "1",
		}
		if isDigits(authorID) {
			author["id"] = authorID
		}
		if authorUsername != "" {
			author["username"] = authorUsername
		}
		if first := attrs["data-author-first-name"]; first != "" {
			author["first_name"] = first
		}
		if last := attrs["data-author-last-name"]; last != "" {
			author["last_name"] = last
		}
		current["author"] = author
	}

	// Параллельные списки id и username упоминаний, сопоставляемые по
	// позиции. Числовой id прикрепляется только если его индекс
	// существует в списке id.
	ids := splitList(attrs["data-mention-ids"])
	usernames := splitList(attrs["data-mention-usernames"])
	var mentions []any
	for idx, username := range usernames {
		mention := map[string]any{"username": username}
		if idx < len(ids) && isDigits(ids[idx]) {
			mention["id"] = ids[idx]
		}
		mentions = append(mentions, mention)
	}
	if len(mentions) > 0 {
		current["mentions"] = mentions
	}

	s.current = current
	s.depth = 1
}

func attributeMap(token html.Token) map[string]string {
	attrs := make(map[string]string, len(token.Attr))
	for _, attr := range token.Attr {
		attrs[attr.Key] = attr.Val
	}
	return attrs
}

func firstAttr(attrs map[string]string, keys ...string) string {
	for _, key := range keys {
		if v := attrs[key]; v != "" {
			return v
		}
	}
	return ""
}

func containsToken(classes []string, token string) bool {
	for _, class := range classes {
		if class == token {
			return true
		}
	}
	return false
}

func splitList(value string) []string {
	var parts []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}
