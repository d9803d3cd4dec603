package parser

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"

	"audience-bot/internal/domain"
)

// parseArchive разворачивает ZIP-контейнер: каждый элемент читается и
// рекурсивно отправляется на распознавание формата. Результаты
// конкатенируются в порядке перечисления элементов архива. Элемент
// нераспознанного формата пропускается молча: архивы часто содержат
// служебные файлы экспорта (стили, вложения). Нечитаемый архив или
// элемент проваливает разбор целиком.
func (p *MultiFormatParser) parseArchive(data []byte) ([]domain.ChatMessage, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptArchive, err)
	}

	var messages []domain.ChatMessage
	for _, member := range reader.File {
		content, err := readMember(member)
		if err != nil {
			return nil, fmt.Errorf("%w: элемент %s: %v", ErrCorruptArchive, member.Name, err)
		}
		parsed, err := p.parseFile(member.Name, content)
		if err != nil {
			if errors.Is(err, ErrUnsupportedFormat) {
				continue
			}
			return nil, fmt.Errorf("элемент %s: %w", member.Name, err)
		}
		messages = append(messages, parsed...)
	}
	return messages, nil
}

func readMember(member *zip.File) ([]byte, error) {
	stream, err := member.Open()
	if err != nil {
		return nil, err
	}
	defer stream.Close()
	return io.ReadAll(stream)
}
