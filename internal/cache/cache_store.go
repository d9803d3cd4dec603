package cache

import (
	"context"
	"crypto/sha256"
	"fmt"
	"sync"
	"time"

	"audience-bot/internal/domain"
)

// CacheItem представляет кэшированный отчет
type CacheItem struct {
	Report    *domain.Report
	ExpiresAt time.Time
}

// CacheStore управляет хранением и извлечением кэшированных отчетов.
// Ключ — хеш набора входных файлов: повторная загрузка того же экспорта
// не запускает пайплайн заново.
type CacheStore struct {
	cache map[string]*CacheItem
	mutex sync.RWMutex
}

// NewCacheStore создает новый экземпляр CacheStore
func NewCacheStore() *CacheStore {
	return &CacheStore{
		cache: make(map[string]*CacheItem),
	}
}

// Get извлекает кэшированный элемент по его ключу (хешу)
func (cs *CacheStore) Get(key string) (*CacheItem, bool) {
	cs.mutex.RLock()
	defer cs.mutex.RUnlock()

	item, exists := cs.cache[key]
	if !exists || time.Now().After(item.ExpiresAt) {
		// Элемент не существует или срок его действия истек
		return nil, false
	}

	return item, true
}

// Put сохраняет отчет в кэш с указанным сроком действия
func (cs *CacheStore) Put(key string, report *domain.Report, ttl time.Duration) {
	cs.mutex.Lock()
	defer cs.mutex.Unlock()

	cs.cache[key] = &CacheItem{
		Report:    report,
		ExpiresAt: time.Now().Add(ttl),
	}
}

// CleanupExpired удаляет просроченные элементы из кэша
func (cs *CacheStore) CleanupExpired() {
	cs.mutex.Lock()
	defer cs.mutex.Unlock()

	now := time.Now()
	for key, item := range cs.cache {
		if now.After(item.ExpiresAt) {
			delete(cs.cache, key)
		}
	}
}

// StartCleanupTicker запускает таймер для периодической очистки просроченных элементов
func (cs *CacheStore) StartCleanupTicker(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				cs.CleanupExpired()
			}
		}
	}()
}

// CalculateHash вычисляет хеш SHA256 содержимого одного файла
func CalculateHash(content []byte) string {
	return fmt.Sprintf("%x", sha256.Sum256(content))
}

// CalculateBatchHash вычисляет единый хеш для упорядоченного набора
// файлов. Порядок входит в ключ: от него зависит порядок сообщений,
// а значит и содержимое итогового отчета.
func CalculateBatchHash(contents [][]byte) string {
	hasher := sha256.New()
	for _, content := range contents {
		hasher.Write([]byte(CalculateHash(content)))
	}
	return fmt.Sprintf("%x", hasher.Sum(nil))
}
