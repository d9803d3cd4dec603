package bot

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServerClient_StartTask(t *testing.T) {
	t.Run("отправляет файлы и возвращает идентификатор задачи", func(t *testing.T) {
		var gotFiles []string
		backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, http.MethodPost, r.Method)
			require.Equal(t, "/api/v1/process", r.URL.Path)
			require.NoError(t, r.ParseMultipartForm(10<<20))
			for _, fh := range r.MultipartForm.File["files"] {
				gotFiles = append(gotFiles, fh.Filename)
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusAccepted)
			json.NewEncoder(w).Encode(map[string]string{"task_id": "task-42"})
		}))
		defer backend.Close()

		client := NewServerClient(backend.URL, 5*time.Second)
		resp, err := client.StartTask(context.Background(), []DocumentFile{
			{Name: "export.json", Content: strings.NewReader(`{"messages": []}`)},
			{Name: "part2.json", Content: strings.NewReader(`{"messages": []}`)},
		})

		require.NoError(t, err)
		assert.Equal(t, "task-42", resp.TaskID)
		assert.Equal(t, []string{"export.json", "part2.json"}, gotFiles)
	})

	t.Run("неожиданный статус дает ошибку", func(t *testing.T) {
		backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "bad request", http.StatusBadRequest)
		}))
		defer backend.Close()

		client := NewServerClient(backend.URL, 5*time.Second)
		_, err := client.StartTask(context.Background(), nil)
		assert.Error(t, err)
	})
}

func TestServerClient_GetTaskStatus(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/tasks/task-42", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"task_id":       "task-42",
			"status":        "processing",
			"error_message": "",
		})
	}))
	defer backend.Close()

	client := NewServerClient(backend.URL, 5*time.Second)
	resp, err := client.GetTaskStatus(context.Background(), "task-42")

	require.NoError(t, err)
	assert.Equal(t, "task-42", resp.TaskID)
	assert.Equal(t, "processing", resp.Status)
}

func TestServerClient_GetReport(t *testing.T) {
	t.Run("текстовый отчет декодируется из JSON", func(t *testing.T) {
		backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/api/v1/tasks/task-42/report", r.URL.Path)
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]any{
				"format":            "plain_text",
				"chat_name":         "family_chat",
				"participant_count": 2,
				"text":              "Alice (alice)\nBob (bob)",
			})
		}))
		defer backend.Close()

		client := NewServerClient(backend.URL, 5*time.Second)
		report, err := client.GetReport(context.Background(), "task-42")

		require.NoError(t, err)
		assert.Equal(t, "plain_text", report.Format)
		assert.Equal(t, "family_chat", report.ChatName)
		assert.Equal(t, 2, report.ParticipantCount)
		assert.Equal(t, "Alice (alice)\nBob (bob)", report.Text)
		assert.Empty(t, report.ExcelBytes)
	})

	t.Run("табличный отчет читается как байты", func(t *testing.T) {
		backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
			w.Write([]byte("xlsx-bytes"))
		}))
		defer backend.Close()

		client := NewServerClient(backend.URL, 5*time.Second)
		report, err := client.GetReport(context.Background(), "task-42")

		require.NoError(t, err)
		assert.Equal(t, "excel", report.Format)
		assert.Equal(t, []byte("xlsx-bytes"), report.ExcelBytes)
	})

	t.Run("незавершенная задача дает ошибку", func(t *testing.T) {
		backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "Задача не завершена", http.StatusBadRequest)
		}))
		defer backend.Close()

		client := NewServerClient(backend.URL, 5*time.Second)
		_, err := client.GetReport(context.Background(), "task-42")
		assert.Error(t, err)
	})
}
