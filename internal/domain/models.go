package domain

import (
	"strconv"
	"strings"
	"time"
)

// RawUserRef представляет один снимок упоминания пользователя в сообщении.
// Это value object: создается заново для каждого вхождения и не изменяется.
type RawUserRef struct {
	DisplayName string
	UserID      *int64
	Username    string
	FirstName   string
	LastName    string
	IsDeleted   bool
	IsBot       bool
	IsChannel   bool
}

// FullName возвращает "Имя Фамилия", либо DisplayName, если имя и фамилия пусты.
func (r RawUserRef) FullName() string {
	parts := make([]string, 0, 2)
	if r.FirstName != "" {
		parts = append(parts, r.FirstName)
	}
	if r.LastName != "" {
		parts = append(parts, r.LastName)
	}
	if full := strings.TrimSpace(strings.Join(parts, " ")); full != "" {
		return full
	}
	return r.DisplayName
}

// ChatMessage представляет одно нормализованное событие чата.
// Модель не зависит от исходного формата экспорта (JSON, ZIP, HTML).
// Инвариант: IsForwarded == (ForwardAuthor != nil).
type ChatMessage struct {
	MessageID     string
	Timestamp     *time.Time
	Author        *RawUserRef
	Mentions      []RawUserRef
	Text          string
	IsService     bool
	IsForwarded   bool
	ForwardAuthor *RawUserRef
}

// ProfileKind обозначает источник значения ключа идентичности.
type ProfileKind string

const (
	KindUserID      ProfileKind = "user_id"
	KindUsername    ProfileKind = "username"
	KindDisplayName ProfileKind = "display_name"
)

// ProfileID — ключ дедупликации для ссылки на пользователя.
// Вычисляется по строгой цепочке приоритетов:
// числовой id → username (без учета регистра) → отображаемое имя (без учета регистра).
// Сравнимая структура, пригодная как ключ map.
type ProfileID struct {
	Kind  ProfileKind
	Value string
}

// ProfileIDFromRaw вычисляет ключ идентичности для ссылки.
// Возвращает false, если ссылка не разрешима (нет ни id, ни username, ни имени).
func ProfileIDFromRaw(raw RawUserRef) (ProfileID, bool) {
	if raw.UserID != nil {
		return ProfileID{Kind: KindUserID, Value: strconv.FormatInt(*raw.UserID, 10)}, true
	}
	if raw.Username != "" {
		return ProfileID{Kind: KindUsername, Value: strings.ToLower(raw.Username)}, true
	}
	if raw.DisplayName != "" {
		return ProfileID{Kind: KindDisplayName, Value: strings.ToLower(raw.DisplayName)}, true
	}
	return ProfileID{}, false
}
