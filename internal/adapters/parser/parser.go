package parser

import (
	"errors"
	"fmt"

	"audience-bot/internal/domain"
)

var (
	// ErrUnsupportedFormat возвращается, когда байты не похожи ни на один
	// из поддерживаемых форматов экспорта.
	ErrUnsupportedFormat = errors.New("unsupported export format")
	// ErrCorruptArchive возвращается, когда ZIP-контейнер не удается открыть.
	ErrCorruptArchive = errors.New("corrupt archive")
)

// File — один входной файл: имя и сырые байты.
type File struct {
	Filename string
	Content  []byte
}

// MultiFormatParser реализует интерфейс Parser: распознает формат каждого
// файла и приводит его содержимое к каноническим сообщениям.
type MultiFormatParser struct{}

// NewMultiFormatParser создает новый экземпляр MultiFormatParser.
func NewMultiFormatParser() *MultiFormatParser {
	return &MultiFormatParser{}
}

// Parse обрабатывает файлы в порядке списка и конкатенирует результаты.
// Пустой итог не является ошибкой на этом уровне: проверку на пустоту
// выполняет извлечение аудитории.
func (p *MultiFormatParser) Parse(files []File) ([]domain.ChatMessage, error) {
	var messages []domain.ChatMessage
	for _, file := range files {
		parsed, err := p.parseFile(file.Filename, file.Content)
		if err != nil {
			return nil, fmt.Errorf("файл %s: %w", file.Filename, err)
		}
		messages = append(messages, parsed...)
	}
	return messages, nil
}

// parseFile распознает формат и направляет байты нужному декодеру.
func (p *MultiFormatParser) parseFile(filename string, data []byte) ([]domain.ChatMessage, error) {
	format, err := DetectFormat(data)
	if err != nil {
		return nil, err
	}
	switch format {
	case FormatZip:
		return p.parseArchive(data)
	case FormatJSON:
		return parseJSON(data)
	default:
		return parseHTML(data)
	}
}
