package usecase

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/mentorpal/mentor-upload-service/internal/apperror"
	"github.com/mentorpal/mentor-upload-service/internal/objectkey"
)

func scratchVideo(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "incoming.mp4")
	if err := os.WriteFile(path, []byte("video bytes"), 0o644); err != nil {
		t.Fatalf("write scratch video: %v", err)
	}
	return path
}

func TestDispatch_RejectsWhenUploadAlreadyInProgress(t *testing.T) {
	metadata := &fakeMetadata{
		isUploadInProgressFunc: func(ctx context.Context, mentorID, questionID string) (bool, error) {
			return true, nil
		},
	}
	storage := newFakeStorage()
	bus := &fakeBus{}
	toolkit := &fakeToolkit{duration: 3}
	svc := NewDispatchService(metadata, storage, bus, toolkit, "https://static.example.com")

	videoPath := scratchVideo(t, t.TempDir())
	_, err := svc.Dispatch(context.Background(), UploadAnswerRequest{
		MentorID:   "m1",
		QuestionID: "q1",
		VideoPath:  videoPath,
	})

	if err == nil {
		t.Fatal("expected an error, got nil")
	}
	if apperror.KindOf(err) != apperror.KindConflict {
		t.Fatalf("expected ConflictError, got %v", apperror.KindOf(err))
	}
	if len(bus.jobs) != 0 {
		t.Fatal("must not publish a job when rejecting")
	}
	if len(storage.objects) != 0 {
		t.Fatal("must not mutate storage when rejecting")
	}
}

func TestDispatch_RejectsShortVideo(t *testing.T) {
	metadata := &fakeMetadata{}
	storage := newFakeStorage()
	bus := &fakeBus{}
	toolkit := &fakeToolkit{duration: 0.5} // 500ms < 1000ms floor
	svc := NewDispatchService(metadata, storage, bus, toolkit, "https://static.example.com")

	videoPath := scratchVideo(t, t.TempDir())
	_, err := svc.Dispatch(context.Background(), UploadAnswerRequest{
		MentorID:   "m1",
		QuestionID: "q1",
		VideoPath:  videoPath,
	})

	if apperror.KindOf(err) != apperror.KindValidation {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestDispatch_HappyPathMintsAllFourTasksAndPublishesOneJob(t *testing.T) {
	metadata := &fakeMetadata{}
	storage := newFakeStorage()
	bus := &fakeBus{}
	toolkit := &fakeToolkit{duration: 3}
	svc := NewDispatchService(metadata, storage, bus, toolkit, "https://static.example.com")

	videoPath := scratchVideo(t, t.TempDir())
	result, err := svc.Dispatch(context.Background(), UploadAnswerRequest{
		MentorID:   "m1",
		QuestionID: "q1",
		VideoPath:  videoPath,
		Trim:       &Trim{StartS: 1, EndS: 2.5},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.TranscribeTask == nil {
		t.Fatal("expected a transcribe task when hasEditedTranscript is false")
	}
	if result.TrimUploadTask == nil {
		t.Fatal("expected a trim-upload task when trim is requested")
	}
	if len(bus.jobs) != 1 {
		t.Fatalf("expected exactly one published job, got %d", len(bus.jobs))
	}
	job := bus.jobs[0]
	if job.TranscodeWebTask == nil || job.TranscodeMobileTask == nil || job.TranscribeTask == nil {
		t.Fatal("published job must address web, mobile, and transcribe stages")
	}
	if job.TrimUploadTask != nil {
		t.Fatal("ingestion-time trim is performed synchronously, not fanned out to trim-upload stage")
	}

	originalKey := objectkey.Original("m1", "q1")
	if _, ok := storage.objects[originalKey]; !ok {
		t.Fatalf("expected %s to be stored", originalKey)
	}
	if len(toolkit.trimCalls) != 1 {
		t.Fatalf("expected exactly one trim call, got %d", len(toolkit.trimCalls))
	}

	if _, err := os.Stat(videoPath); !os.IsNotExist(err) {
		t.Fatal("dispatch must remove its scratch video on completion")
	}
}

func TestDispatch_SkipsTranscribeTaskWhenTranscriptAlreadyEdited(t *testing.T) {
	metadata := &fakeMetadata{}
	storage := newFakeStorage()
	bus := &fakeBus{}
	toolkit := &fakeToolkit{duration: 3}
	svc := NewDispatchService(metadata, storage, bus, toolkit, "https://static.example.com")

	videoPath := scratchVideo(t, t.TempDir())
	result, err := svc.Dispatch(context.Background(), UploadAnswerRequest{
		MentorID:            "m1",
		QuestionID:          "q1",
		VideoPath:           videoPath,
		HasEditedTranscript: true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.TranscribeTask != nil {
		t.Fatal("must not mint a transcribe task when hasEditedTranscript is true")
	}
	if result.TrimUploadTask != nil {
		t.Fatal("must not mint a trim-upload task when no trim was requested")
	}
}

func TestDispatch_AtomicReplaceClearsStaleArtifactsBeforeWritingOriginal(t *testing.T) {
	storage := newFakeStorage()
	// Pre-seed a prior job's artifacts at the same prefix.
	storage.objects[objectkey.Web("m1", "q1")] = []byte("stale web")
	storage.objects[objectkey.Mobile("m1", "q1")] = []byte("stale mobile")
	storage.objects[objectkey.VTT("m1", "q1")] = []byte("stale vtt")

	metadata := &fakeMetadata{}
	bus := &fakeBus{}
	toolkit := &fakeToolkit{duration: 3}
	svc := NewDispatchService(metadata, storage, bus, toolkit, "https://static.example.com")

	videoPath := scratchVideo(t, t.TempDir())
	if _, err := svc.Dispatch(context.Background(), UploadAnswerRequest{
		MentorID:   "m1",
		QuestionID: "q1",
		VideoPath:  videoPath,
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, key := range []string{objectkey.Web("m1", "q1"), objectkey.Mobile("m1", "q1"), objectkey.VTT("m1", "q1")} {
		if _, ok := storage.objects[key]; ok {
			t.Fatalf("stale artifact %s must be removed by the atomic replace", key)
		}
	}
	if _, ok := storage.objects[objectkey.Original("m1", "q1")]; !ok {
		t.Fatal("expected original.mp4 to be present after replace")
	}
}
