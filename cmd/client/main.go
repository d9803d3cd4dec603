package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"audience-bot/internal/adapters/exporter"
	"audience-bot/internal/adapters/parser"
	"audience-bot/internal/adapters/source"
	"audience-bot/internal/core/services"
)

type TaskStatusResponse struct {
	TaskID       string `json:"task_id"`
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message,omitempty"`
}

func main() {
	var serverAddr string
	var local bool
	flag.StringVar(&serverAddr, "server", "http://localhost:8080", "Server address")
	flag.BoolVar(&local, "local", false, "Process files locally without a server")
	flag.Parse()

	filePaths := flag.Args()
	if len(filePaths) == 0 {
		log.Fatal("At least one file path is required. Usage: client [flags] <file1> <file2> ...")
	}

	if local {
		if err := runLocal(filePaths); err != nil {
			log.Fatalf("Локальная обработка не удалась: %v", err)
		}
		return
	}

	runRemote(serverAddr, filePaths)
}

// runLocal прогоняет файлы через пайплайн без сервера и печатает список в консоль.
func runLocal(filePaths []string) error {
	files := make([]parser.File, 0, len(filePaths))
	for _, path := range filePaths {
		ds := source.NewCliSource(path)
		data, err := ds.Fetch()
		if err != nil {
			return err
		}
		files = append(files, parser.File{Filename: filepath.Base(path), Content: data})
	}

	p := parser.NewMultiFormatParser()
	messages, err := p.Parse(files)
	if err != nil {
		return fmt.Errorf("не удалось разобрать файлы: %w", err)
	}

	extractor := services.NewExtractionService()
	result, err := extractor.Extract(messages)
	if err != nil {
		return fmt.Errorf("не удалось извлечь аудиторию: %w", err)
	}

	return exporter.NewConsoleExporter().Export(result)
}

// runRemote отправляет файлы на сервер и ждет готовый отчет.
func runRemote(serverAddr string, filePaths []string) {
	// Создание многочастной формы для загрузки файлов
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	for _, path := range filePaths {
		file, err := os.Open(path)
		if err != nil {
			log.Fatalf("Не удалось открыть файл %s: %v", path, err)
		}

		part, err := writer.CreateFormFile("files", filepath.Base(path))
		if err != nil {
			_ = file.Close()
			log.Fatalf("Не удалось создать файл формы для %s: %v", path, err)
		}

		_, err = io.Copy(part, file)
		if err != nil {
			_ = file.Close()
			log.Fatalf("Не удалось записать данные файла %s: %v", path, err)
		}
		if err := file.Close(); err != nil {
			log.Printf("Warning: failed to close file %s: %v", path, err)
		}
	}

	// Важно закрыть writer, чтобы записать завершающую границу
	if err := writer.Close(); err != nil {
		log.Fatalf("Не удалось закрыть multipart writer: %v", err)
	}

	resp, err := http.Post(serverAddr+"/api/v1/process", writer.FormDataContentType(), &body)
	if err != nil {
		log.Fatalf("Не удалось отправить запрос: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		log.Fatalf("Сервер вернул статус: %d", resp.StatusCode)
	}

	var taskResp map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&taskResp); err != nil {
		log.Fatalf("Не удалось декодировать ответ: %v", err)
	}
	taskID := taskResp["task_id"]
	if taskID == "" {
		log.Fatal("Идентификатор задачи не найден в ответе")
	}

	fmt.Printf("Задача создана с идентификатором: %s\n", taskID)

	// Опрос статуса задачи
	for {
		time.Sleep(5 * time.Second)

		resp, err := http.Get(fmt.Sprintf("%s/api/v1/tasks/%s", serverAddr, taskID))
		if err != nil {
			log.Fatalf("Не удалось опросить статус задачи: %v", err)
		}

		var statusResp TaskStatusResponse
		err = json.NewDecoder(resp.Body).Decode(&statusResp)
		resp.Body.Close()
		if err != nil {
			log.Fatalf("Не удалось декодировать ответ статуса: %v", err)
		}

		fmt.Printf("Статус задачи: %s\n", statusResp.Status)

		switch statusResp.Status {
		case "completed":
			fmt.Println("Задача выполнена успешно.")
			fetchReport(serverAddr, taskID)
			return
		case "failed":
			fmt.Printf("Задача не выполнена: %s\n", statusResp.ErrorMessage)
			os.Exit(1)
		case "pending", "processing":
			continue
		default:
			log.Fatalf("Неизвестный статус задачи: %s", statusResp.Status)
		}
	}
}

// fetchReport получает отчет: текст печатается в консоль,
// xlsx сохраняется в файл рядом с клиентом.
func fetchReport(serverAddr, taskID string) {
	resp, err := http.Get(fmt.Sprintf("%s/api/v1/tasks/%s/report", serverAddr, taskID))
	if err != nil {
		log.Fatalf("Не удалось получить отчет: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Fatalf("Сервер вернул статус для отчета: %d", resp.StatusCode)
	}

	if strings.Contains(resp.Header.Get("Content-Type"), "spreadsheetml") {
		fileName := fmt.Sprintf("audience-report_%s.xlsx", time.Now().Format("2006-01-02_15-04-05"))
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			log.Fatalf("Не удалось прочитать отчет: %v", err)
		}
		if err := os.WriteFile(fileName, data, 0o644); err != nil {
			log.Fatalf("Не удалось сохранить отчет: %v", err)
		}
		fmt.Printf("Отчет сохранен: %s\n", fileName)
		return
	}

	var report struct {
		Text             string `json:"text"`
		ParticipantCount int    `json:"participant_count"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		log.Fatalf("Не удалось декодировать отчет: %v", err)
	}

	fmt.Printf("Найдено участников: %d\n", report.ParticipantCount)
	fmt.Println(report.Text)
}
