package metadata

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/mentorpal/mentor-upload-service/internal/domain/repository"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis, func()) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	cleanup := func() {
		client.Close()
		mr.Close()
	}

	return client, mr, cleanup
}

// stubDelegate satisfies only FetchQuestionName; the embedded nil interface
// makes any other call an immediate test failure.
type stubDelegate struct {
	repository.MetadataClient
	calls int
	name  string
	err   error
}

func (s *stubDelegate) FetchQuestionName(ctx context.Context, questionID string) (string, error) {
	s.calls++
	return s.name, s.err
}

func TestCachedClient_FetchQuestionName_CacheMissDelegatesAndPopulates(t *testing.T) {
	client, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	delegate := &stubDelegate{name: "what is your name"}
	cached := NewCachedClient(delegate, client, time.Hour)

	got, err := cached.FetchQuestionName(context.Background(), "q-123")
	if err != nil {
		t.Fatalf("FetchQuestionName failed: %v", err)
	}
	if got != "what is your name" {
		t.Errorf("name = %q, want %q", got, "what is your name")
	}
	if delegate.calls != 1 {
		t.Errorf("delegate calls = %d, want 1", delegate.calls)
	}

	stored, err := mr.Get(questionNameKeyPrefix + "q-123")
	if err != nil {
		t.Fatalf("expected the name to be cached: %v", err)
	}
	if stored != "what is your name" {
		t.Errorf("cached value = %q, want %q", stored, "what is your name")
	}
}

func TestCachedClient_FetchQuestionName_CacheHitSkipsDelegate(t *testing.T) {
	client, _, cleanup := setupTestRedis(t)
	defer cleanup()

	delegate := &stubDelegate{name: repository.QuestionNameIdle}
	cached := NewCachedClient(delegate, client, time.Hour)
	ctx := context.Background()

	if _, err := cached.FetchQuestionName(ctx, "q-idle"); err != nil {
		t.Fatalf("first fetch failed: %v", err)
	}
	got, err := cached.FetchQuestionName(ctx, "q-idle")
	if err != nil {
		t.Fatalf("second fetch failed: %v", err)
	}
	if got != repository.QuestionNameIdle {
		t.Errorf("name = %q, want %q", got, repository.QuestionNameIdle)
	}
	if delegate.calls != 1 {
		t.Errorf("delegate calls = %d, want 1 (second fetch must be served from cache)", delegate.calls)
	}
}

func TestCachedClient_FetchQuestionName_FallsBackWhenRedisUnavailable(t *testing.T) {
	client, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	mr.SetError("connection refused")

	delegate := &stubDelegate{name: "tell me about your work"}
	cached := NewCachedClient(delegate, client, time.Hour)

	got, err := cached.FetchQuestionName(context.Background(), "q-456")
	if err != nil {
		t.Fatalf("expected a fallback to the delegate, got error: %v", err)
	}
	if got != "tell me about your work" {
		t.Errorf("name = %q, want %q", got, "tell me about your work")
	}
	if delegate.calls != 1 {
		t.Errorf("delegate calls = %d, want 1", delegate.calls)
	}
}

func TestCachedClient_FetchQuestionName_DelegateErrorPropagates(t *testing.T) {
	client, _, cleanup := setupTestRedis(t)
	defer cleanup()

	delegate := &stubDelegate{err: errors.New("metadata service down")}
	cached := NewCachedClient(delegate, client, time.Hour)

	if _, err := cached.FetchQuestionName(context.Background(), "q-789"); err == nil {
		t.Fatal("expected the delegate error to propagate")
	}
}
