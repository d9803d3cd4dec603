package log

import (
	"context"
	"log/slog"
	"regexp"
)

// botTokenRegex находит токены бота вида botID:token в тексте логов.
var botTokenRegex = regexp.MustCompile(`\bbot\d+:[A-Za-z0-9_-]{35,}`)

// maskTokens заменяет найденные токены на маску.
func maskTokens(text string) string {
	return botTokenRegex.ReplaceAllString(text, "bot***:***masked-token***")
}

// TokenMaskerHandler — обертка slog.Handler, маскирующая токены бота
// в сообщениях и строковых атрибутах. Библиотечные логи и ошибки HTTP
// нередко включают URL с токеном; наружу он выходить не должен.
type TokenMaskerHandler struct {
	handler slog.Handler
}

// NewTokenMaskerHandler создает новый обработчик с маскировкой токенов.
func NewTokenMaskerHandler(handler slog.Handler) *TokenMaskerHandler {
	return &TokenMaskerHandler{handler: handler}
}

// NewMaskedLogger создает slog.Logger с маскировкой токенов.
func NewMaskedLogger(handler slog.Handler) *slog.Logger {
	return slog.New(NewTokenMaskerHandler(handler))
}

// Enabled реализует интерфейс slog.Handler.
func (h *TokenMaskerHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// Handle реализует интерфейс slog.Handler.
// Работаем с изолированной копией записи: оригинал slog может
// переиспользовать, и его менять нельзя.
func (h *TokenMaskerHandler) Handle(ctx context.Context, record slog.Record) error {
	masked := slog.NewRecord(record.Time, record.Level, maskTokens(record.Message), record.PC)
	record.Attrs(func(attr slog.Attr) bool {
		masked.AddAttrs(maskAttr(attr))
		return true
	})
	return h.handler.Handle(ctx, masked)
}

// WithAttrs реализует интерфейс slog.Handler.
func (h *TokenMaskerHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	maskedAttrs := make([]slog.Attr, len(attrs))
	for i, attr := range attrs {
		maskedAttrs[i] = maskAttr(attr)
	}
	return &TokenMaskerHandler{handler: h.handler.WithAttrs(maskedAttrs)}
}

// WithGroup реализует интерфейс slog.Handler.
func (h *TokenMaskerHandler) WithGroup(name string) slog.Handler {
	return &TokenMaskerHandler{handler: h.handler.WithGroup(name)}
}

// maskAttr рекурсивно маскирует значение атрибута.
func maskAttr(attr slog.Attr) slog.Attr {
	return slog.Attr{Key: attr.Key, Value: maskValue(attr.Value)}
}

func maskValue(value slog.Value) slog.Value {
	switch value.Kind() {
	case slog.KindString:
		return slog.StringValue(maskTokens(value.String()))
	case slog.KindAny:
		// Ошибки приводим к строке, иначе маска их не коснется.
		if err, ok := value.Any().(error); ok {
			return slog.StringValue(maskTokens(err.Error()))
		}
		return value
	case slog.KindGroup:
		group := value.Group()
		maskedGroup := make([]slog.Attr, len(group))
		for i, attr := range group {
			maskedGroup[i] = maskAttr(attr)
		}
		return slog.GroupValue(maskedGroup...)
	default:
		return value
	}
}
