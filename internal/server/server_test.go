package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"audience-bot/internal/adapters/parser"
	"audience-bot/internal/cache"
	"audience-bot/internal/domain"
	"audience-bot/internal/pkg/config"
	"audience-bot/internal/server/usecase"
	"audience-bot/internal/storage"
)

// stubProcessor подменяет пайплайн обработки в HTTP-тестах.
type stubProcessor struct {
	result *usecase.ReportResult
	err    error
	files  []parser.File
}

func (p *stubProcessor) Process(ctx context.Context, files []parser.File) (*usecase.ReportResult, error) {
	p.files = files
	if p.err != nil {
		return nil, p.err
	}
	return p.result, nil
}

func newTestServer(t *testing.T, processor ChatProcessor) *Server {
	t.Helper()
	cfg := &config.Config{}
	cfg.Server.Port = 8080
	cfg.Server.MaxUploadSizeMB = 10
	cfg.Processing.CacheTTLMinutes = 10
	cfg.Processing.MaxMessages = 1000
	cfg.Processing.MaxTotalBytesMB = 10
	cfg.Report.TextThreshold = 20

	srv, err := New(cfg, processor, NewTaskStore(), cache.NewCacheStore(), storage.NewMemoryStorage())
	require.NoError(t, err)
	t.Cleanup(func() { srv.cancel() })
	return srv
}

func multipartBody(t *testing.T, files map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for name, content := range files {
		part, err := writer.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return &buf, writer.FormDataContentType()
}

func awaitTask(t *testing.T, srv *Server, taskID string) *Task {
	t.Helper()
	var task *Task
	require.Eventually(t, func() bool {
		got, err := srv.taskStore.GetTask(taskID)
		if err != nil {
			return false
		}
		if got.Status != TaskStatusCompleted && got.Status != TaskStatusFailed {
			return false
		}
		task = got
		return true
	}, 2*time.Second, 10*time.Millisecond)
	return task
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t, &stubProcessor{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.HTTPServer.Handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestProcessEndpoint(t *testing.T) {
	t.Run("accepts files and returns task id", func(t *testing.T) {
		report := &domain.Report{Format: domain.FormatPlainText, Text: "Alice (alice)"}
		processor := &stubProcessor{result: &usecase.ReportResult{Report: report, Hash: "hash"}}
		srv := newTestServer(t, processor)

		body, contentType := multipartBody(t, map[string]string{"export.json": `{"messages": []}`})
		req := httptest.NewRequest(http.MethodPost, "/api/v1/process", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()
		srv.HTTPServer.Handler.ServeHTTP(rec, req)

		require.Equal(t, http.StatusAccepted, rec.Code)

		var resp map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.NotEmpty(t, resp["task_id"])

		task := awaitTask(t, srv, resp["task_id"])
		assert.Equal(t, TaskStatusCompleted, task.Status)
		assert.Equal(t, report, task.Report)

		require.Len(t, processor.files, 1)
		assert.Equal(t, "export.json", processor.files[0].Filename)
		assert.Equal(t, []byte(`{"messages": []}`), processor.files[0].Content)
	})

	t.Run("processing error marks task as failed", func(t *testing.T) {
		processor := &stubProcessor{err: errors.New("разбор не удался")}
		srv := newTestServer(t, processor)

		body, contentType := multipartBody(t, map[string]string{"broken.json": "{"})
		req := httptest.NewRequest(http.MethodPost, "/api/v1/process", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()
		srv.HTTPServer.Handler.ServeHTTP(rec, req)

		require.Equal(t, http.StatusAccepted, rec.Code)
		var resp map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

		task := awaitTask(t, srv, resp["task_id"])
		assert.Equal(t, TaskStatusFailed, task.Status)
		assert.Equal(t, "разбор не удался", task.ErrorMessage)
	})

	t.Run("request without files is rejected", func(t *testing.T) {
		srv := newTestServer(t, &stubProcessor{})

		body, contentType := multipartBody(t, nil)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/process", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()
		srv.HTTPServer.Handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("non-multipart body is rejected", func(t *testing.T) {
		srv := newTestServer(t, &stubProcessor{})

		req := httptest.NewRequest(http.MethodPost, "/api/v1/process", bytes.NewBufferString("plain"))
		rec := httptest.NewRecorder()
		srv.HTTPServer.Handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestProcessByHashEndpoint(t *testing.T) {
	t.Run("cache hit completes the task", func(t *testing.T) {
		srv := newTestServer(t, &stubProcessor{})

		report := &domain.Report{Format: domain.FormatPlainText, Text: "Alice"}
		srv.cacheStore.Put("known-hash", report, time.Minute)

		body := bytes.NewBufferString(`{"hash": "known-hash"}`)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/process-by-hash", body)
		rec := httptest.NewRecorder()
		srv.HTTPServer.Handler.ServeHTTP(rec, req)

		require.Equal(t, http.StatusAccepted, rec.Code)
		var resp map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

		task := awaitTask(t, srv, resp["task_id"])
		assert.Equal(t, TaskStatusCompleted, task.Status)
		assert.Equal(t, report, task.Report)
	})

	t.Run("cache miss fails the task", func(t *testing.T) {
		srv := newTestServer(t, &stubProcessor{})

		body := bytes.NewBufferString(`{"hash": "unknown-hash"}`)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/process-by-hash", body)
		rec := httptest.NewRecorder()
		srv.HTTPServer.Handler.ServeHTTP(rec, req)

		require.Equal(t, http.StatusAccepted, rec.Code)
		var resp map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

		task := awaitTask(t, srv, resp["task_id"])
		assert.Equal(t, TaskStatusFailed, task.Status)
	})

	t.Run("empty hash is rejected", func(t *testing.T) {
		srv := newTestServer(t, &stubProcessor{})

		body := bytes.NewBufferString(`{"hash": ""}`)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/process-by-hash", body)
		rec := httptest.NewRecorder()
		srv.HTTPServer.Handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestTaskStatusEndpoint(t *testing.T) {
	t.Run("returns current status", func(t *testing.T) {
		srv := newTestServer(t, &stubProcessor{})
		srv.taskStore.CreateTask("task-1", time.Minute)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/tasks/task-1", nil)
		rec := httptest.NewRecorder()
		srv.HTTPServer.Handler.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		var resp map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "task-1", resp["task_id"])
		assert.Equal(t, string(TaskStatusPending), resp["status"])
	})

	t.Run("unknown task gives 404", func(t *testing.T) {
		srv := newTestServer(t, &stubProcessor{})

		req := httptest.NewRequest(http.MethodGet, "/api/v1/tasks/missing", nil)
		rec := httptest.NewRecorder()
		srv.HTTPServer.Handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestTaskReportEndpoint(t *testing.T) {
	t.Run("text report is delivered as json", func(t *testing.T) {
		srv := newTestServer(t, &stubProcessor{})
		srv.taskStore.CreateTask("task-1", time.Minute)
		report := &domain.Report{
			Format: domain.FormatPlainText,
			Metadata: domain.ReportMetadata{
				ChatName:         "family_chat",
				ParticipantCount: 2,
			},
			Text: "Alice (alice)\nBob (bob)",
		}
		require.NoError(t, srv.taskStore.UpdateTaskReport("task-1", report))

		req := httptest.NewRequest(http.MethodGet, "/api/v1/tasks/task-1/report", nil)
		rec := httptest.NewRecorder()
		srv.HTTPServer.Handler.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")

		var resp map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, string(domain.FormatPlainText), resp["format"])
		assert.Equal(t, "family_chat", resp["chat_name"])
		assert.Equal(t, float64(2), resp["participant_count"])
		assert.Equal(t, "Alice (alice)\nBob (bob)", resp["text"])
	})

	t.Run("excel report is delivered as attachment", func(t *testing.T) {
		srv := newTestServer(t, &stubProcessor{})
		srv.taskStore.CreateTask("task-1", time.Minute)
		report := &domain.Report{
			Format:     domain.FormatExcel,
			ExcelBytes: []byte("xlsx-bytes"),
		}
		require.NoError(t, srv.taskStore.UpdateTaskReport("task-1", report))

		req := httptest.NewRequest(http.MethodGet, "/api/v1/tasks/task-1/report", nil)
		rec := httptest.NewRecorder()
		srv.HTTPServer.Handler.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Header().Get("Content-Type"), "spreadsheetml")
		assert.Contains(t, rec.Header().Get("Content-Disposition"), "audience.xlsx")
		assert.Equal(t, []byte("xlsx-bytes"), rec.Body.Bytes())
	})

	t.Run("pending task gives 400", func(t *testing.T) {
		srv := newTestServer(t, &stubProcessor{})
		srv.taskStore.CreateTask("task-1", time.Minute)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/tasks/task-1/report", nil)
		rec := httptest.NewRecorder()
		srv.HTTPServer.Handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown task gives 404", func(t *testing.T) {
		srv := newTestServer(t, &stubProcessor{})

		req := httptest.NewRequest(http.MethodGet, "/api/v1/tasks/missing/report", nil)
		rec := httptest.NewRecorder()
		srv.HTTPServer.Handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
