package bot

import (
	"sync"
	"time"

	"audience-bot/internal/storage"
)

// SessionState описывает фазу жизненного цикла сессии загрузки.
type SessionState string

const (
	SessionStateEmpty      SessionState = "empty"
	SessionStateCollecting SessionState = "collecting"
)

// Классы формата данных для UX-ограничения "не смешивать форматы".
// JSON и ZIP считаются одним структурированным классом.
const (
	FormatClassStructured = "structured"
	FormatClassHTML       = "html"
)

// Session — корзина загрузок одного чата до вызова /process или /reset.
type Session struct {
	ChatID       int64
	Files        []storage.FileRef
	State        SessionState
	ExportFormat string // класс формата первого принятого файла
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// AddFile добавляет ссылку на загруженный файл в сессию.
func (s *Session) AddFile(ref storage.FileRef) {
	s.Files = append(s.Files, ref)
	s.State = SessionStateCollecting
	s.UpdatedAt = time.Now()
}

// SessionStore — потокобезопасное in-memory хранилище сессий с TTL.
// Просроченная сессия при обращении сбрасывается, а ее блобы удаляются
// из временного хранилища.
type SessionStore struct {
	mu        sync.Mutex
	sessions  map[int64]*Session
	ttl       time.Duration
	tempStore storage.TempStorage
}

// NewSessionStore создает новый экземпляр SessionStore.
func NewSessionStore(ttl time.Duration, tempStore storage.TempStorage) *SessionStore {
	return &SessionStore{
		sessions:  make(map[int64]*Session),
		ttl:       ttl,
		tempStore: tempStore,
	}
}

// Get возвращает сессию чата, создавая пустую при необходимости.
// Просроченная сессия сбрасывается на месте.
func (st *SessionStore) Get(chatID int64) *Session {
	st.mu.Lock()
	defer st.mu.Unlock()

	session, ok := st.sessions[chatID]
	if !ok {
		session = &Session{
			ChatID:    chatID,
			State:     SessionStateEmpty,
			CreatedAt: time.Now(),
			UpdatedAt: time.Now(),
		}
		st.sessions[chatID] = session
		return session
	}

	if st.ttl > 0 && time.Since(session.UpdatedAt) > st.ttl {
		st.resetLocked(session)
	}
	return session
}

// Save фиксирует изменения сессии и обновляет отметку времени.
func (st *SessionStore) Save(session *Session) {
	st.mu.Lock()
	defer st.mu.Unlock()

	session.UpdatedAt = time.Now()
	st.sessions[session.ChatID] = session
}

// Clear сбрасывает сессию чата и удаляет ее блобы из временного хранилища.
func (st *SessionStore) Clear(chatID int64) {
	st.mu.Lock()
	defer st.mu.Unlock()

	if session, ok := st.sessions[chatID]; ok {
		st.resetLocked(session)
	}
}

// resetLocked очищает сессию; вызывающий держит st.mu.
func (st *SessionStore) resetLocked(session *Session) {
	for _, ref := range session.Files {
		// Ошибка удаления не мешает сбросу: блоб доберет фоновая очистка.
		st.tempStore.Delete(ref)
	}
	session.Files = nil
	session.State = SessionStateEmpty
	session.ExportFormat = ""
	session.UpdatedAt = time.Now()
}
