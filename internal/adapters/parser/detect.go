package parser

import (
	"bytes"
	"strings"
	"unicode"
)

// Format — распознанный формат входного файла.
type Format string

const (
	FormatZip  Format = "zip"
	FormatJSON Format = "json"
	FormatHTML Format = "html"
)

// Сигнатуры ZIP-контейнера: обычный архив и пустой архив.
var zipSignatures = [][]byte{
	{'P', 'K', 0x03, 0x04},
	{'P', 'K', 0x05, 0x06},
}

// DetectFormat классифицирует сырые байты как контейнер, структурированный
// или markup-экспорт. Порядок проверок важен: сигнатура контейнера
// проверяется до текстовых эвристик, так как бинарное содержимое может
// случайно начинаться с '{' или '<' после срезания невалидных байт.
func DetectFormat(data []byte) (Format, error) {
	for _, sig := range zipSignatures {
		if bytes.HasPrefix(data, sig) {
			return FormatZip, nil
		}
	}
	// Декодирование с потерями: невалидные UTF-8 последовательности отбрасываются.
	text := strings.TrimLeftFunc(strings.ToValidUTF8(string(data), ""), unicode.IsSpace)
	if strings.HasPrefix(text, "{") {
		return FormatJSON, nil
	}
	if strings.HasPrefix(text, "<") {
		return FormatHTML, nil
	}
	return "", ErrUnsupportedFormat
}
