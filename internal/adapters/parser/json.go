package parser

import (
	"encoding/json"
	"fmt"

	"audience-bot/internal/domain"
)

// parseJSON разбирает структурированный экспорт. Список сообщений читается
// из корневого поля messages, затем из legacy-псевдонима chat_history;
// любая другая форма корневого документа дает пустой список, а не ошибку.
// Элементы списка, не являющиеся объектами, молча пропускаются.
func parseJSON(data []byte) ([]domain.ChatMessage, error) {
	var document map[string]json.RawMessage
	if err := json.Unmarshal(data, &document); err != nil {
		return nil, fmt.Errorf("failed to unmarshal json: %w", err)
	}

	entries := entryList(document["messages"])
	if len(entries) == 0 {
		entries = entryList(document["chat_history"])
	}

	var messages []domain.ChatMessage
	for _, entry := range entries {
		var fields map[string]any
		if err := json.Unmarshal(entry, &fields); err != nil {
			continue
		}
		messages = append(messages, buildMessage(record(fields)))
	}
	return messages, nil
}

// entryList декодирует значение поля как список; значение любой другой
// формы (строка, объект, число) трактуется как отсутствие сообщений.
func entryList(raw json.RawMessage) []json.RawMessage {
	if len(raw) == 0 {
		return nil
	}
	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil
	}
	return entries
}
