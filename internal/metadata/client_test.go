package metadata

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/mentorpal/mentor-upload-service/internal/apperror"
	"github.com/mentorpal/mentor-upload-service/internal/domain/repository"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(DefaultClientConfig(srv.URL, "test-secret")), srv
}

func TestClient_FetchQuestionName_SendsBearerAndDecodesData(t *testing.T) {
	var gotAuth string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{"question": map[string]any{"name": repository.QuestionNameIdle}},
		})
	})

	name, err := client.FetchQuestionName(context.Background(), "q-1")
	if err != nil {
		t.Fatalf("FetchQuestionName failed: %v", err)
	}
	if name != repository.QuestionNameIdle {
		t.Errorf("name = %q, want %q", name, repository.QuestionNameIdle)
	}
	if gotAuth != "bearer test-secret" {
		t.Errorf("Authorization = %q, want %q", gotAuth, "bearer test-secret")
	}
}

func TestClient_ErrorsFieldBecomesMetadataError(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"errors": []map[string]any{{"message": "mentor not found"}},
		})
	})

	_, err := client.FetchQuestionName(context.Background(), "q-1")
	if err == nil {
		t.Fatal("expected an error for a response with an errors field")
	}
	if apperror.KindOf(err) != apperror.KindMetadata {
		t.Errorf("kind = %v, want MetadataError", apperror.KindOf(err))
	}
}

func TestClient_RetriesTransientServerErrors(t *testing.T) {
	var attempts atomic.Int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) == 1 {
			http.Error(w, "temporarily unavailable", http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{"question": map[string]any{"name": "hello"}},
		})
	})

	name, err := client.FetchQuestionName(context.Background(), "q-1")
	if err != nil {
		t.Fatalf("expected the retry to succeed, got %v", err)
	}
	if name != "hello" {
		t.Errorf("name = %q, want %q", name, "hello")
	}
	if attempts.Load() != 2 {
		t.Errorf("attempts = %d, want 2", attempts.Load())
	}
}

func TestClient_ClientErrorIsNotRetried(t *testing.T) {
	var attempts atomic.Int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		http.Error(w, "bad request", http.StatusBadRequest)
	})

	_, err := client.FetchQuestionName(context.Background(), "q-1")
	if err == nil {
		t.Fatal("expected an error for a 4xx response")
	}
	if attempts.Load() != 1 {
		t.Errorf("attempts = %d, want 1 (4xx must not be retried)", attempts.Load())
	}
}

func TestClient_FetchTask_AbsentTaskReportsNotFound(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{"uploadTask": nil},
		})
	})

	task, err := client.FetchTask(context.Background(), "mentor1", "question1")
	if err != nil {
		t.Fatalf("FetchTask failed: %v", err)
	}
	if task.Found {
		t.Fatal("expected Found=false for an absent UploadTask")
	}

	inProgress, err := client.IsUploadInProgress(context.Background(), "mentor1", "question1")
	if err != nil {
		t.Fatalf("IsUploadInProgress failed: %v", err)
	}
	if inProgress {
		t.Fatal("expected is_upload_in_progress to be false when no task document exists")
	}
}

func TestClient_IsUploadInProgress_TrueWhenTaskDocumentExists(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{"uploadTask": map[string]any{
				"mentorId":   "mentor1",
				"questionId": "question1",
				"tasks": []map[string]any{
					{"taskName": "transcoding-web", "taskId": "t-1", "status": "DONE"},
				},
			}},
		})
	})

	inProgress, err := client.IsUploadInProgress(context.Background(), "mentor1", "question1")
	if err != nil {
		t.Fatalf("IsUploadInProgress failed: %v", err)
	}
	if !inProgress {
		t.Fatal("expected is_upload_in_progress to be true while the task document exists")
	}
}
