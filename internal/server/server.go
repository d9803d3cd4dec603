package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"audience-bot/internal/adapters/parser"
	"audience-bot/internal/cache"
	"audience-bot/internal/domain"
	"audience-bot/internal/pkg/config"
	"audience-bot/internal/server/usecase"
	"audience-bot/internal/storage"
)

// ChatProcessor определяет интерфейс варианта использования, который обрабатывает экспорты.
type ChatProcessor interface {
	Process(ctx context.Context, files []parser.File) (*usecase.ReportResult, error)
}

// Server представляет HTTP-сервер
type Server struct {
	HTTPServer *http.Server
	cfg        *config.Config
	taskStore  *TaskStore
	cacheStore *cache.CacheStore
	tempStore  storage.TempStorage
	processor  ChatProcessor
	cancel     context.CancelFunc
}

// New создает новый экземпляр Server
func New(cfg *config.Config, processor ChatProcessor, taskStore *TaskStore, cacheStore *cache.CacheStore, tempStore storage.TempStorage) (*Server, error) {
	chiRouter := chi.NewRouter()

	chiRouter.Use(middleware.Logger)
	chiRouter.Use(middleware.Recoverer)

	s := &Server{
		cfg:        cfg,
		taskStore:  taskStore,
		cacheStore: cacheStore,
		tempStore:  tempStore,
		processor:  processor,
	}

	// Конечная точка для проверки работоспособности
	chiRouter.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{
			"status": "ok",
		})
	})

	chiRouter.Route("/api/v1", func(r chi.Router) {
		r.Post("/process", s.handleProcess)
		r.Post("/process-by-hash", s.handleProcessByHash)
		r.Get("/tasks/{taskID}", s.handleTaskStatus)
		r.Get("/tasks/{taskID}/report", s.handleTaskReport)
	})

	httpServer := &http.Server{
		Addr:         cfg.Address(),
		Handler:      chiRouter,
		ReadTimeout:  config.DefaultReadTimeout,
		WriteTimeout: config.DefaultWriteTimeout,
		IdleTimeout:  config.DefaultIdleTimeout,
	}
	s.HTTPServer = httpServer

	// Фоновая очистка просроченных задач и элементов кэша.
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.taskStore.StartCleanupTicker(ctx, config.DefaultCleanupInterval)
	s.cacheStore.StartCleanupTicker(ctx, config.DefaultCleanupInterval)

	return s, nil
}

// handleProcess принимает набор файлов экспорта и запускает асинхронную задачу.
func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	maxUpload := int64(s.cfg.Server.MaxUploadSizeMB) << 20
	r.Body = http.MaxBytesReader(w, r.Body, maxUpload)

	if err := r.ParseMultipartForm(maxUpload); err != nil {
		http.Error(w, "Не удалось разобрать форму", http.StatusBadRequest)
		return
	}

	fileHeaders := r.MultipartForm.File["files"]
	if len(fileHeaders) == 0 {
		http.Error(w, "Форма не содержит файлов в поле 'files'", http.StatusBadRequest)
		return
	}

	// Содержимое сохраняется во временное хранилище: обработка идет
	// в фоне, и держать все загрузки в памяти запроса нельзя.
	refs := make([]storage.FileRef, 0, len(fileHeaders))
	for _, fh := range fileHeaders {
		file, err := fh.Open()
		if err != nil {
			http.Error(w, "Не удалось получить файл из формы", http.StatusBadRequest)
			return
		}
		content, err := io.ReadAll(file)
		file.Close()
		if err != nil {
			http.Error(w, "Не удалось прочитать загруженный файл", http.StatusInternalServerError)
			return
		}

		ref, err := s.tempStore.Save(fh.Filename, content, fh.Header.Get("Content-Type"))
		if err != nil {
			slog.Error("Не удалось сохранить загруженный файл", "filename", fh.Filename, "error", err)
			http.Error(w, "Не удалось сохранить загруженный файл", http.StatusInternalServerError)
			return
		}
		refs = append(refs, ref)
	}

	taskID := uuid.NewString()
	s.taskStore.CreateTask(taskID, 24*time.Hour) // TTL для записи о задаче

	go s.runTask(taskID, refs)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{"task_id": taskID})
}

// runTask выполняет пайплайн обработки в фоне и фиксирует результат в хранилище задач.
func (s *Server) runTask(taskID string, refs []storage.FileRef) {
	s.taskStore.UpdateTaskStatus(taskID, TaskStatusProcessing)

	// Блобы удаляются независимо от исхода задачи.
	defer func() {
		for _, ref := range refs {
			if err := s.tempStore.Delete(ref); err != nil {
				slog.Warn("Не удалось удалить временный файл", "ref_id", ref.ID, "error", err)
			}
		}
	}()

	taskCtx := context.Background()
	if timeout := s.cfg.TaskTimeout(); timeout > 0 {
		var cancel context.CancelFunc
		taskCtx, cancel = context.WithTimeout(taskCtx, timeout)
		defer cancel()
	}

	files := make([]parser.File, 0, len(refs))
	for _, ref := range refs {
		content, err := s.tempStore.Read(ref)
		if err != nil {
			s.taskStore.UpdateTaskError(taskID, fmt.Sprintf("не удалось прочитать временный файл: %v", err))
			return
		}
		files = append(files, parser.File{Filename: ref.Filename, Content: content})
	}

	result, err := s.processor.Process(taskCtx, files)
	if err != nil {
		s.taskStore.UpdateTaskError(taskID, err.Error())
		return
	}

	s.taskStore.UpdateTaskReport(taskID, result.Report)
}

// handleProcessByHash создает задачу по хешу ранее обработанного набора файлов.
// Результат берется только из кэша: промах завершает задачу ошибкой.
func (s *Server) handleProcessByHash(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Hash string `json:"hash"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Не удалось декодировать тело запроса", http.StatusBadRequest)
		return
	}

	if req.Hash == "" {
		http.Error(w, "Требуется хеш", http.StatusBadRequest)
		return
	}

	taskID := uuid.NewString()
	s.taskStore.CreateTask(taskID, 24*time.Hour)

	go func() {
		s.taskStore.UpdateTaskStatus(taskID, TaskStatusProcessing)

		if cachedItem, found := s.cacheStore.Get(req.Hash); found {
			s.taskStore.UpdateTaskReport(taskID, cachedItem.Report)
			slog.Info("Попадание в кэш для хеша", "hash", req.Hash, "task_id", taskID)
			return
		}

		s.taskStore.UpdateTaskError(taskID, "Результат не найден в кэше для данного хеша")
		slog.Info("Промах кэша для хеша", "hash", req.Hash, "task_id", taskID)
	}()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{"task_id": taskID})
}

// handleTaskStatus возвращает текущий статус задачи.
func (s *Server) handleTaskStatus(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")

	task, err := s.taskStore.GetTask(taskID)
	if err != nil {
		http.Error(w, "Задача не найдена", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"task_id":       task.ID,
		"status":        task.Status,
		"error_message": task.ErrorMessage,
	})
}

// handleTaskReport отдает готовый отчет завершенной задачи.
// Текстовый отчет возвращается как JSON, табличный — как бинарный xlsx.
func (s *Server) handleTaskReport(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")

	task, err := s.taskStore.GetTask(taskID)
	if err != nil {
		http.Error(w, "Задача не найдена", http.StatusNotFound)
		return
	}

	if task.Status != TaskStatusCompleted || task.Report == nil {
		http.Error(w, "Задача не завершена", http.StatusBadRequest)
		return
	}

	report := task.Report
	if report.Format == domain.FormatExcel {
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", `attachment; filename="audience.xlsx"`)
		w.WriteHeader(http.StatusOK)
		w.Write(report.ExcelBytes)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"format":            report.Format,
		"chat_name":         report.Metadata.ChatName,
		"participant_count": report.Metadata.ParticipantCount,
		"text":              report.Text,
	})
}

// ListenAndServe запускает HTTP-сервер
func (s *Server) ListenAndServe() error {
	return s.HTTPServer.ListenAndServe()
}

// Shutdown корректно завершает работу HTTP-сервера и фоновую очистку.
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("Завершение работы HTTP-сервера")
	s.cancel()
	return s.HTTPServer.Shutdown(ctx)
}
