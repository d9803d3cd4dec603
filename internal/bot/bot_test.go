package bot

import (
	"strings"
	"testing"
	"time"

	"github.com/mattn/go-runewidth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"audience-bot/internal/storage"
)

func TestWrapString(t *testing.T) {
	t.Run("короткая строка возвращается как есть", func(t *testing.T) {
		lines := wrapString("короткая строка", 40)
		require.Len(t, lines, 1)
		assert.Equal(t, "короткая строка", lines[0])
	})

	t.Run("перенос идет по границам слов", func(t *testing.T) {
		lines := wrapString("один два три четыре пять", 10)
		require.Greater(t, len(lines), 1)
		for _, line := range lines {
			assert.LessOrEqual(t, runewidth.StringWidth(line), 10)
			assert.False(t, strings.HasPrefix(line, " "))
			assert.False(t, strings.HasSuffix(line, " "))
		}
	})

	t.Run("слово длиннее ширины ломается посередине", func(t *testing.T) {
		lines := wrapString("сверхдлинноеслово", 5)
		require.Greater(t, len(lines), 1)
		assert.Equal(t, "сверхдлинноеслово", strings.Join(lines, ""))
		for _, line := range lines {
			assert.LessOrEqual(t, runewidth.StringWidth(line), 5)
		}
	})

	t.Run("содержимое слов сохраняется при переносе", func(t *testing.T) {
		original := "Alice Smith (alice_in_wonderland)"
		lines := wrapString(original, 12)
		assert.Equal(t, strings.Fields(original), strings.Fields(strings.Join(lines, " ")))
	})

	t.Run("нулевая ширина отключает перенос", func(t *testing.T) {
		lines := wrapString("любой текст", 0)
		require.Len(t, lines, 1)
		assert.Equal(t, "любой текст", lines[0])
	})

	t.Run("широкие руны учитываются по реальной ширине", func(t *testing.T) {
		// Иероглифы занимают две колонки в моноширинном выводе.
		lines := wrapString("太郎山田太郎山田", 4)
		require.Greater(t, len(lines), 1)
		for _, line := range lines {
			assert.LessOrEqual(t, runewidth.StringWidth(line), 4)
		}
	})
}

func TestDetectFormatClass(t *testing.T) {
	t.Run("JSON относится к структурированному классу", func(t *testing.T) {
		class, err := detectFormatClass([]byte(`{"messages": []}`))
		require.NoError(t, err)
		assert.Equal(t, FormatClassStructured, class)
	})

	t.Run("ZIP относится к структурированному классу", func(t *testing.T) {
		class, err := detectFormatClass([]byte{'P', 'K', 0x03, 0x04})
		require.NoError(t, err)
		assert.Equal(t, FormatClassStructured, class)
	})

	t.Run("HTML образует отдельный класс", func(t *testing.T) {
		class, err := detectFormatClass([]byte("<html></html>"))
		require.NoError(t, err)
		assert.Equal(t, FormatClassHTML, class)
	})

	t.Run("нераспознанный формат дает ошибку", func(t *testing.T) {
		_, err := detectFormatClass([]byte("просто текст"))
		assert.Error(t, err)
	})
}

func TestTaskStore(t *testing.T) {
	t.Run("Set и Get", func(t *testing.T) {
		store := NewTaskStore()
		store.Set(100, "task-1")

		taskID, ok := store.Get(100)
		require.True(t, ok)
		assert.Equal(t, "task-1", taskID)
	})

	t.Run("Get для неизвестного чата", func(t *testing.T) {
		store := NewTaskStore()
		_, ok := store.Get(100)
		assert.False(t, ok)
	})

	t.Run("Set перезаписывает существующую задачу", func(t *testing.T) {
		store := NewTaskStore()
		store.Set(100, "task-1")
		store.Set(100, "task-2")

		taskID, _ := store.Get(100)
		assert.Equal(t, "task-2", taskID)
	})

	t.Run("Delete снимает активную задачу", func(t *testing.T) {
		store := NewTaskStore()
		store.Set(100, "task-1")
		store.Delete(100)

		_, ok := store.Get(100)
		assert.False(t, ok)
	})
}

func TestSessionStore(t *testing.T) {
	t.Run("Get создает пустую сессию", func(t *testing.T) {
		store := NewSessionStore(time.Minute, storage.NewMemoryStorage())

		session := store.Get(100)
		require.NotNil(t, session)
		assert.Equal(t, int64(100), session.ChatID)
		assert.Equal(t, SessionStateEmpty, session.State)
		assert.Empty(t, session.Files)
	})

	t.Run("AddFile переводит сессию в сбор файлов", func(t *testing.T) {
		tempStore := storage.NewMemoryStorage()
		store := NewSessionStore(time.Minute, tempStore)

		ref, err := tempStore.Save("export.json", []byte("{}"), "application/json")
		require.NoError(t, err)

		session := store.Get(100)
		session.AddFile(ref)
		store.Save(session)

		session = store.Get(100)
		assert.Equal(t, SessionStateCollecting, session.State)
		require.Len(t, session.Files, 1)
		assert.Equal(t, "export.json", session.Files[0].Filename)
	})

	t.Run("Clear сбрасывает сессию и удаляет блобы", func(t *testing.T) {
		tempStore := storage.NewMemoryStorage()
		store := NewSessionStore(time.Minute, tempStore)

		ref, err := tempStore.Save("export.json", []byte("{}"), "application/json")
		require.NoError(t, err)

		session := store.Get(100)
		session.AddFile(ref)
		session.ExportFormat = FormatClassStructured
		store.Save(session)

		store.Clear(100)

		session = store.Get(100)
		assert.Equal(t, SessionStateEmpty, session.State)
		assert.Empty(t, session.Files)
		assert.Empty(t, session.ExportFormat)

		_, err = tempStore.Read(ref)
		assert.ErrorIs(t, err, storage.ErrRefNotFound)
	})

	t.Run("Просроченная сессия сбрасывается при обращении", func(t *testing.T) {
		tempStore := storage.NewMemoryStorage()
		store := NewSessionStore(10*time.Millisecond, tempStore)

		ref, err := tempStore.Save("export.json", []byte("{}"), "application/json")
		require.NoError(t, err)

		session := store.Get(100)
		session.AddFile(ref)
		store.Save(session)

		time.Sleep(30 * time.Millisecond)

		session = store.Get(100)
		assert.Equal(t, SessionStateEmpty, session.State)
		assert.Empty(t, session.Files)

		_, err = tempStore.Read(ref)
		assert.ErrorIs(t, err, storage.ErrRefNotFound)
	})

	t.Run("Нулевой TTL отключает истечение", func(t *testing.T) {
		tempStore := storage.NewMemoryStorage()
		store := NewSessionStore(0, tempStore)

		ref, err := tempStore.Save("export.json", []byte("{}"), "application/json")
		require.NoError(t, err)

		session := store.Get(100)
		session.AddFile(ref)
		store.Save(session)

		time.Sleep(20 * time.Millisecond)

		session = store.Get(100)
		assert.Equal(t, SessionStateCollecting, session.State)
	})

	t.Run("Сессии разных чатов независимы", func(t *testing.T) {
		tempStore := storage.NewMemoryStorage()
		store := NewSessionStore(time.Minute, tempStore)

		ref, err := tempStore.Save("export.json", []byte("{}"), "application/json")
		require.NoError(t, err)

		first := store.Get(100)
		first.AddFile(ref)
		store.Save(first)

		second := store.Get(200)
		assert.Empty(t, second.Files)
	})
}
