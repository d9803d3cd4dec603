package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrRefNotFound возвращается при чтении или удалении по неизвестной ссылке.
var ErrRefNotFound = errors.New("temp file reference not found")

// FileRef — непрозрачная ссылка на сохраненный блоб.
type FileRef struct {
	ID        string
	Filename  string
	SizeBytes int
	MimeType  string
	CreatedAt time.Time
}

// TempStorage определяет интерфейс временного хранилища блобов:
// сохранение, чтение и удаление по непрозрачной ссылке.
type TempStorage interface {
	Save(filename string, content []byte, mimeType string) (FileRef, error)
	Read(ref FileRef) ([]byte, error)
	Delete(ref FileRef) error
}

// DiskStorage хранит блобы во временном каталоге на диске.
type DiskStorage struct {
	baseDir string
}

// NewDiskStorage создает хранилище в указанном каталоге.
// Пустой путь означает новый каталог внутри os.TempDir().
func NewDiskStorage(baseDir string) (*DiskStorage, error) {
	if baseDir == "" {
		dir, err := os.MkdirTemp("", "audience_bot_")
		if err != nil {
			return nil, fmt.Errorf("failed to create temp dir: %w", err)
		}
		baseDir = dir
	} else if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage dir %s: %w", baseDir, err)
	}
	return &DiskStorage{baseDir: baseDir}, nil
}

// Save записывает содержимое на диск и возвращает ссылку.
func (s *DiskStorage) Save(filename string, content []byte, mimeType string) (FileRef, error) {
	ref := newRef(filename, len(content), mimeType)
	if err := os.WriteFile(s.path(ref), content, 0o600); err != nil {
		return FileRef{}, fmt.Errorf("failed to save temp file: %w", err)
	}
	return ref, nil
}

// Read возвращает содержимое по ссылке.
func (s *DiskStorage) Read(ref FileRef) ([]byte, error) {
	content, err := os.ReadFile(s.path(ref))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrRefNotFound
		}
		return nil, fmt.Errorf("failed to read temp file: %w", err)
	}
	return content, nil
}

// Delete удаляет блоб. Удаление отсутствующего файла не является ошибкой.
func (s *DiskStorage) Delete(ref FileRef) error {
	if err := os.Remove(s.path(ref)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete temp file: %w", err)
	}
	return nil
}

// Cleanup удаляет блобы старше maxAge и возвращает их количество.
func (s *DiskStorage) Cleanup(maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return 0, fmt.Errorf("failed to list storage dir: %w", err)
	}
	threshold := time.Now().Add(-maxAge)
	removed := 0
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(threshold) {
			if err := os.Remove(filepath.Join(s.baseDir, entry.Name())); err == nil {
				removed++
			}
		}
	}
	return removed, nil
}

func (s *DiskStorage) path(ref FileRef) string {
	return filepath.Join(s.baseDir, ref.ID)
}

// MemoryStorage хранит блобы в памяти, без записи на диск.
// Потокобезопасно.
type MemoryStorage struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewMemoryStorage создает новый экземпляр MemoryStorage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{blobs: make(map[string][]byte)}
}

// Save сохраняет содержимое в памяти и возвращает ссылку.
func (s *MemoryStorage) Save(filename string, content []byte, mimeType string) (FileRef, error) {
	ref := newRef(filename, len(content), mimeType)
	blob := make([]byte, len(content))
	copy(blob, content)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[ref.ID] = blob
	return ref, nil
}

// Read возвращает содержимое по ссылке.
func (s *MemoryStorage) Read(ref FileRef) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	blob, ok := s.blobs[ref.ID]
	if !ok {
		return nil, ErrRefNotFound
	}
	return blob, nil
}

// Delete удаляет блоб; отсутствующая ссылка не является ошибкой.
func (s *MemoryStorage) Delete(ref FileRef) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blobs, ref.ID)
	return nil
}

func newRef(filename string, size int, mimeType string) FileRef {
	return FileRef{
		ID:        uuid.NewString(),
		Filename:  filename,
		SizeBytes: size,
		MimeType:  mimeType,
		CreatedAt: time.Now().UTC(),
	}
}
