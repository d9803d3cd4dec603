package source

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCliSource(t *testing.T) {
	t.Run("NewCliSource создает корректный экземпляр", func(t *testing.T) {
		source := NewCliSource("export.json")
		if source == nil {
			t.Error("Ожидался экземпляр CliSource, получен nil")
		}
	})

	t.Run("Fetch возвращает ошибку для пустого пути", func(t *testing.T) {
		source := &CliSource{filePath: ""}

		data, err := source.Fetch()
		if err == nil {
			t.Error("Ожидалась ошибка для пустого пути к файлу, получено nil")
		}
		if data != nil {
			t.Error("Ожидались nil данные для пустого пути к файлу")
		}
	})

	t.Run("Fetch возвращает ошибку для несуществующего файла", func(t *testing.T) {
		source := &CliSource{filePath: "no_such_export.json"}

		data, err := source.Fetch()
		if err == nil {
			t.Error("Ожидалась ошибка для несуществующего файла, получено nil")
		}
		if data != nil {
			t.Error("Ожидались nil данные для несуществующего файла")
		}
	})

	t.Run("Fetch возвращает содержимое существующего файла", func(t *testing.T) {
		content := []byte(`{"name": "Test Chat", "messages": []}`)
		path := filepath.Join(t.TempDir(), "export.json")
		if err := os.WriteFile(path, content, 0o600); err != nil {
			t.Fatalf("Не удалось записать временный файл: %v", err)
		}

		source := NewCliSource(path)

		data, err := source.Fetch()
		if err != nil {
			t.Errorf("Неожиданная ошибка: %v", err)
		}
		if string(data) != string(content) {
			t.Errorf("Ожидались данные '%s', получено '%s'", content, data)
		}
	})
}
