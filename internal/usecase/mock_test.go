package usecase

import (
	"bytes"
	"context"
	"io"
	"os"

	"github.com/mentorpal/mentor-upload-service/internal/domain/repository"
	"github.com/mentorpal/mentor-upload-service/internal/transcoder"
	"github.com/mentorpal/mentor-upload-service/internal/transcribe"
)

// writePlaceholder stands in for a real ffmpeg/ffprobe invocation in tests:
// it writes a small recognizable payload so callers can assert a file was
// produced without shelling out to a transcoder.
func writePlaceholder(path string) error {
	return os.WriteFile(path, []byte("placeholder:"+path), 0o644)
}

// fakeMetadata implements repository.MetadataClient entirely with func
// fields, following the teacher's hand-rolled mock-struct pattern
// (internal/infrastructure/storage/s3_test.go's mockS3Client).
type fakeMetadata struct {
	uploadTaskStatusUpdateFunc     func(ctx context.Context, mentorID, questionID, taskID string, patch repository.TaskPatch) error
	uploadAnswerAndTaskUpdateFunc  func(ctx context.Context, mentorID, questionID string, answer repository.AnswerPatch, tasks []repository.TaskEntryView) error
	fetchTaskFunc                  func(ctx context.Context, mentorID, questionID string) (repository.FetchedTask, error)
	isUploadInProgressFunc         func(ctx context.Context, mentorID, questionID string) (bool, error)
	fetchAnswerFunc                func(ctx context.Context, mentorID, questionID string) (repository.FetchedAnswer, error)
	mediaUpdateFunc                func(ctx context.Context, mentorID, questionID string, web, mobile, vtt *repository.AnswerMediaPatch) error
	fetchQuestionNameFunc          func(ctx context.Context, questionID string) (string, error)
	importTaskCreateFunc           func(ctx context.Context, mentorID string) error
	importTaskUpdateFunc           func(ctx context.Context, mentorID string, graphQLUpdate, s3VideoMigration *string, answer *repository.ImportMediaStatusPatch) error
	mentorImportFunc               func(ctx context.Context, mentorID, exportJSON, replacedChanges string) (repository.MentorImportResult, error)
}

func (f *fakeMetadata) UploadTaskStatusUpdate(ctx context.Context, mentorID, questionID, taskID string, patch repository.TaskPatch) error {
	if f.uploadTaskStatusUpdateFunc != nil {
		return f.uploadTaskStatusUpdateFunc(ctx, mentorID, questionID, taskID, patch)
	}
	return nil
}

func (f *fakeMetadata) UploadAnswerAndTaskUpdate(ctx context.Context, mentorID, questionID string, answer repository.AnswerPatch, tasks []repository.TaskEntryView) error {
	if f.uploadAnswerAndTaskUpdateFunc != nil {
		return f.uploadAnswerAndTaskUpdateFunc(ctx, mentorID, questionID, answer, tasks)
	}
	return nil
}

func (f *fakeMetadata) FetchTask(ctx context.Context, mentorID, questionID string) (repository.FetchedTask, error) {
	if f.fetchTaskFunc != nil {
		return f.fetchTaskFunc(ctx, mentorID, questionID)
	}
	return repository.FetchedTask{}, nil
}

func (f *fakeMetadata) IsUploadInProgress(ctx context.Context, mentorID, questionID string) (bool, error) {
	if f.isUploadInProgressFunc != nil {
		return f.isUploadInProgressFunc(ctx, mentorID, questionID)
	}
	return false, nil
}

func (f *fakeMetadata) FetchAnswerTranscriptAndMedia(ctx context.Context, mentorID, questionID string) (repository.FetchedAnswer, error) {
	if f.fetchAnswerFunc != nil {
		return f.fetchAnswerFunc(ctx, mentorID, questionID)
	}
	return repository.FetchedAnswer{}, nil
}

func (f *fakeMetadata) MediaUpdate(ctx context.Context, mentorID, questionID string, web, mobile, vtt *repository.AnswerMediaPatch) error {
	if f.mediaUpdateFunc != nil {
		return f.mediaUpdateFunc(ctx, mentorID, questionID, web, mobile, vtt)
	}
	return nil
}

func (f *fakeMetadata) FetchQuestionName(ctx context.Context, questionID string) (string, error) {
	if f.fetchQuestionNameFunc != nil {
		return f.fetchQuestionNameFunc(ctx, questionID)
	}
	return "", nil
}

func (f *fakeMetadata) ImportTaskCreate(ctx context.Context, mentorID string) error {
	if f.importTaskCreateFunc != nil {
		return f.importTaskCreateFunc(ctx, mentorID)
	}
	return nil
}

func (f *fakeMetadata) ImportTaskUpdate(ctx context.Context, mentorID string, graphQLUpdate, s3VideoMigration *string, answer *repository.ImportMediaStatusPatch) error {
	if f.importTaskUpdateFunc != nil {
		return f.importTaskUpdateFunc(ctx, mentorID, graphQLUpdate, s3VideoMigration, answer)
	}
	return nil
}

func (f *fakeMetadata) MentorImport(ctx context.Context, mentorID, exportJSON, replacedChanges string) (repository.MentorImportResult, error) {
	if f.mentorImportFunc != nil {
		return f.mentorImportFunc(ctx, mentorID, exportJSON, replacedChanges)
	}
	return repository.MentorImportResult{}, nil
}

var _ repository.MetadataClient = (*fakeMetadata)(nil)

// fakeStorage implements repository.ObjectStorage over an in-memory map.
type fakeStorage struct {
	objects       map[string][]byte
	putFunc       func(ctx context.Context, key string, r io.Reader, contentType string) error
	deleteManyErr error
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{objects: make(map[string][]byte)}
}

func (f *fakeStorage) Put(ctx context.Context, key string, r io.Reader, contentType string) error {
	if f.putFunc != nil {
		return f.putFunc(ctx, key, r, contentType)
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	f.objects[key] = b
	return nil
}

func (f *fakeStorage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	b, ok := f.objects[key]
	if !ok {
		return nil, repository.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (f *fakeStorage) DeleteMany(ctx context.Context, keys []string) error {
	if f.deleteManyErr != nil {
		return f.deleteManyErr
	}
	for _, k := range keys {
		delete(f.objects, k)
	}
	return nil
}

func (f *fakeStorage) List(ctx context.Context, prefix string) ([]repository.ObjectInfo, error) {
	return nil, nil
}

func (f *fakeStorage) Exists(ctx context.Context, key string) (bool, error) {
	_, ok := f.objects[key]
	return ok, nil
}

func (f *fakeStorage) Ping(ctx context.Context) error { return nil }

var _ repository.ObjectStorage = (*fakeStorage)(nil)

// fakeBus implements repository.MessageBus, recording published messages.
type fakeBus struct {
	jobs         []repository.Job
	transferJobs []repository.TransferJob
	trimJobs     []repository.TrimJob
	publishErr   error
}

func (f *fakeBus) PublishJob(ctx context.Context, job repository.Job) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.jobs = append(f.jobs, job)
	return nil
}

func (f *fakeBus) PublishTransferJob(ctx context.Context, job repository.TransferJob) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.transferJobs = append(f.transferJobs, job)
	return nil
}

func (f *fakeBus) PublishTrimJob(ctx context.Context, job repository.TrimJob) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.trimJobs = append(f.trimJobs, job)
	return nil
}

func (f *fakeBus) ConsumeJobs(ctx context.Context, stage repository.StageName, handler func(repository.Job) error) error {
	return nil
}

func (f *fakeBus) ConsumeTransferJobs(ctx context.Context, handler func(repository.TransferJob) error) error {
	return nil
}

func (f *fakeBus) ConsumeTrimJobs(ctx context.Context, handler func(repository.TrimJob) error) error {
	return nil
}

func (f *fakeBus) Close() error { return nil }

var _ repository.MessageBus = (*fakeBus)(nil)

// fakeToolkit implements transcoder.Toolkit, recording calls and returning
// canned results.
type fakeToolkit struct {
	duration     float64
	probeErr     error
	trimErr      error
	encodeWebErr error
	encodeMobErr error
	extractErr   error
	trimCalls    []struct{ src, dst string; startS, endS float64 }
}

func (f *fakeToolkit) Trim(ctx context.Context, src, dst string, startS, endS float64) error {
	f.trimCalls = append(f.trimCalls, struct {
		src, dst       string
		startS, endS float64
	}{src, dst, startS, endS})
	if f.trimErr != nil {
		return f.trimErr
	}
	return writePlaceholder(dst)
}

func (f *fakeToolkit) EncodeWeb(ctx context.Context, src, dst string) error {
	if f.encodeWebErr != nil {
		return f.encodeWebErr
	}
	return writePlaceholder(dst)
}

func (f *fakeToolkit) EncodeMobile(ctx context.Context, src, dst string) error {
	if f.encodeMobErr != nil {
		return f.encodeMobErr
	}
	return writePlaceholder(dst)
}

func (f *fakeToolkit) ExtractAudio(ctx context.Context, src, dst string) (string, error) {
	if f.extractErr != nil {
		return "", f.extractErr
	}
	if dst == "" {
		dst = src + ".mp3"
	}
	return dst, writePlaceholder(dst)
}

func (f *fakeToolkit) ProbeDuration(ctx context.Context, path string) (float64, error) {
	if f.probeErr != nil {
		return -1, f.probeErr
	}
	return f.duration, nil
}

func (f *fakeToolkit) ProbeDims(ctx context.Context, path string) (int, int, error) {
	return 1280, 720, nil
}

func (f *fakeToolkit) TranscriptToVTT(ctx context.Context, srcMedia, vttDst, transcript string) error {
	return writePlaceholder(vttDst)
}

var _ transcoder.Toolkit = (*fakeToolkit)(nil)

// fakeTranscription implements TranscriptionService.
type fakeTranscription struct {
	result transcribe.Result
	err    error
}

func (f *fakeTranscription) Transcribe(ctx context.Context, req transcribe.Request) (transcribe.Result, error) {
	if f.err != nil {
		return transcribe.Result{}, f.err
	}
	return f.result, nil
}

var _ TranscriptionService = (*fakeTranscription)(nil)
