package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"audience-bot/internal/domain"
)

func sampleReport(text string) *domain.Report {
	return &domain.Report{
		Format: domain.FormatPlainText,
		Text:   text,
	}
}

func TestCacheStore(t *testing.T) {
	t.Run("Создание нового хранилища кэша", func(t *testing.T) {
		cs := NewCacheStore()
		assert.NotNil(t, cs)
		assert.NotNil(t, cs.cache)
	})

	t.Run("Запись и чтение из кэша", func(t *testing.T) {
		cs := NewCacheStore()
		key := "test_key"
		report := sampleReport("Alice (alice)")
		ttl := 1 * time.Minute

		cs.Put(key, report, ttl)

		item, found := cs.Get(key)
		require.True(t, found)
		require.NotNil(t, item)
		assert.Equal(t, report, item.Report)
		assert.WithinDuration(t, time.Now().Add(ttl), item.ExpiresAt, 1*time.Second)
	})

	t.Run("Чтение несуществующего ключа", func(t *testing.T) {
		cs := NewCacheStore()
		_, found := cs.Get("non_existent_key")
		assert.False(t, found)
	})

	t.Run("Чтение просроченного ключа", func(t *testing.T) {
		cs := NewCacheStore()
		key := "expired_key"
		ttl := -1 * time.Second // Просрочено в прошлом

		cs.Put(key, sampleReport("old"), ttl)

		_, found := cs.Get(key)
		assert.False(t, found)
	})

	t.Run("Перезапись существующего ключа", func(t *testing.T) {
		cs := NewCacheStore()
		key := "key"
		cs.Put(key, sampleReport("первый"), time.Minute)
		cs.Put(key, sampleReport("второй"), time.Minute)

		item, found := cs.Get(key)
		require.True(t, found)
		assert.Equal(t, "второй", item.Report.Text)
	})

	t.Run("CleanupExpired удаляет только просроченные элементы", func(t *testing.T) {
		cs := NewCacheStore()
		cs.Put("alive", sampleReport("живой"), time.Minute)
		cs.Put("dead", sampleReport("мертвый"), -1*time.Second)

		cs.CleanupExpired()

		_, found := cs.Get("alive")
		assert.True(t, found)

		cs.mutex.RLock()
		_, exists := cs.cache["dead"]
		cs.mutex.RUnlock()
		assert.False(t, exists, "просроченный элемент должен быть удален физически")
	})

	t.Run("StartCleanupTicker очищает кэш в фоне", func(t *testing.T) {
		cs := NewCacheStore()
		cs.Put("dead", sampleReport("мертвый"), -1*time.Second)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		cs.StartCleanupTicker(ctx, 10*time.Millisecond)

		assert.Eventually(t, func() bool {
			cs.mutex.RLock()
			defer cs.mutex.RUnlock()
			_, exists := cs.cache["dead"]
			return !exists
		}, time.Second, 10*time.Millisecond)
	})
}

func TestCalculateHash(t *testing.T) {
	t.Run("Хеш детерминирован", func(t *testing.T) {
		assert.Equal(t, CalculateHash([]byte("data")), CalculateHash([]byte("data")))
	})

	t.Run("Разное содержимое дает разные хеши", func(t *testing.T) {
		assert.NotEqual(t, CalculateHash([]byte("a")), CalculateHash([]byte("b")))
	})
}

func TestCalculateBatchHash(t *testing.T) {
	t.Run("Хеш набора детерминирован", func(t *testing.T) {
		batch := [][]byte{[]byte("a"), []byte("b")}
		assert.Equal(t, CalculateBatchHash(batch), CalculateBatchHash(batch))
	})

	t.Run("Порядок файлов входит в ключ", func(t *testing.T) {
		forward := CalculateBatchHash([][]byte{[]byte("a"), []byte("b")})
		reversed := CalculateBatchHash([][]byte{[]byte("b"), []byte("a")})
		assert.NotEqual(t, forward, reversed)
	})

	t.Run("Хеш одного файла отличается от хеша содержимого", func(t *testing.T) {
		content := []byte("data")
		assert.NotEqual(t, CalculateHash(content), CalculateBatchHash([][]byte{content}))
	})
}
