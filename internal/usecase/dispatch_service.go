package usecase

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/mentorpal/mentor-upload-service/internal/apperror"
	"github.com/mentorpal/mentor-upload-service/internal/domain/model"
	"github.com/mentorpal/mentor-upload-service/internal/domain/repository"
	"github.com/mentorpal/mentor-upload-service/internal/objectkey"
	"github.com/mentorpal/mentor-upload-service/internal/transcoder"
)

// Trim is the optional ingestion-time trim window on an UploadAnswerRequest.
type Trim struct {
	StartS float64
	EndS   float64
}

// UploadAnswerRequest is C4's input (spec.md §4.4, §6).
type UploadAnswerRequest struct {
	MentorID            string
	QuestionID          string
	Trim                *Trim
	HasEditedTranscript bool
	VideoPath           string // scratch path the HTTP handler already persisted
}

// UploadAnswerResult is what the dispatcher reports back to the caller. The
// HTTP layer derives the statusUrl from the request root, so it is not part
// of this result.
type UploadAnswerResult struct {
	TranscodeWebTask    repository.TaskRef
	TranscodeMobileTask repository.TaskRef
	TranscribeTask      *repository.TaskRef
	TrimUploadTask      *repository.TaskRef
}

// DispatchService implements C4 (spec.md §4.4): the ingestion entry point
// that validates, atomically replaces an answer's stored artifacts, mints
// task identifiers, and fans a single job out to the stage workers.
type DispatchService struct {
	metadata repository.MetadataClient
	storage  repository.ObjectStorage
	bus      repository.MessageBus
	toolkit  transcoder.Toolkit
	urlBase  string
}

func NewDispatchService(metadata repository.MetadataClient, storage repository.ObjectStorage, bus repository.MessageBus, toolkit transcoder.Toolkit, urlBase string) *DispatchService {
	return &DispatchService{metadata: metadata, storage: storage, bus: bus, toolkit: toolkit, urlBase: urlBase}
}

// Dispatch runs the 9-step ingestion flow of spec.md §4.4. It takes
// ownership of req.VideoPath and removes it once the atomic replace (or a
// rejection) has been resolved.
func (s *DispatchService) Dispatch(ctx context.Context, req UploadAnswerRequest) (UploadAnswerResult, error) {
	defer os.Remove(req.VideoPath)

	inProgress, err := s.metadata.IsUploadInProgress(ctx, req.MentorID, req.QuestionID)
	if err != nil {
		return UploadAnswerResult{}, fmt.Errorf("check upload in progress: %w", err)
	}
	if inProgress {
		return UploadAnswerResult{}, apperror.Conflict("upload already in progress for this answer")
	}

	duration, err := s.toolkit.ProbeDuration(ctx, req.VideoPath)
	if err != nil {
		return UploadAnswerResult{}, fmt.Errorf("probe duration: %w", err)
	}
	if duration*1000 < 1000 {
		return UploadAnswerResult{}, apperror.Validation("video duration must be at least 1000ms")
	}

	finalPath := req.VideoPath
	if req.Trim != nil {
		trimmedPath := req.VideoPath + ".trimmed.mp4"
		if err := s.toolkit.Trim(ctx, req.VideoPath, trimmedPath, req.Trim.StartS, req.Trim.EndS); err != nil {
			return UploadAnswerResult{}, fmt.Errorf("trim upload: %w", err)
		}
		defer os.Remove(trimmedPath)
		finalPath = trimmedPath
	}

	if err := s.storage.DeleteMany(ctx, objectkey.AllKeys(req.MentorID, req.QuestionID)); err != nil {
		return UploadAnswerResult{}, fmt.Errorf("clear existing artifacts: %w", err)
	}

	originalKey := objectkey.Original(req.MentorID, req.QuestionID)
	file, err := os.Open(finalPath)
	if err != nil {
		return UploadAnswerResult{}, fmt.Errorf("open final video: %w", err)
	}
	defer file.Close()
	if err := s.storage.Put(ctx, originalKey, file, "video/mp4"); err != nil {
		return UploadAnswerResult{}, fmt.Errorf("upload original: %w", err)
	}

	webTask := newTaskRef(model.TaskNameTranscodingWeb)
	mobileTask := newTaskRef(model.TaskNameTranscodingMob)

	var transcribeTask *repository.TaskRef
	if !req.HasEditedTranscript {
		t := newTaskRef(model.TaskNameTranscribing)
		transcribeTask = &t
	}

	var trimTask *repository.TaskRef
	if req.Trim != nil {
		t := newTaskRef(model.TaskNameTrimUpload)
		t.Status = model.StatusDone.String() // dispatcher already performed the ingestion trim synchronously above
		trimTask = &t
	}

	tasks := []repository.TaskEntryView{
		{TaskName: webTask.TaskName, TaskID: webTask.TaskID, Status: webTask.Status},
		{TaskName: mobileTask.TaskName, TaskID: mobileTask.TaskID, Status: mobileTask.Status},
	}
	if transcribeTask != nil {
		tasks = append(tasks, repository.TaskEntryView{TaskName: transcribeTask.TaskName, TaskID: transcribeTask.TaskID, Status: transcribeTask.Status})
	}
	if trimTask != nil {
		tasks = append(tasks, repository.TaskEntryView{TaskName: trimTask.TaskName, TaskID: trimTask.TaskID, Status: trimTask.Status})
	}

	emptyTranscript := ""
	answerPatch := repository.AnswerPatch{
		Transcript: &emptyTranscript,
		Media: []repository.AnswerMediaPatch{
			{Type: string(model.MediaTypeVideo), Tag: string(model.MediaTagOriginal), URL: objectkey.URL(s.urlBase, originalKey)},
		},
	}
	if err := s.metadata.UploadAnswerAndTaskUpdate(ctx, req.MentorID, req.QuestionID, answerPatch, tasks); err != nil {
		return UploadAnswerResult{}, fmt.Errorf("install tasks: %w", err)
	}

	job := repository.Job{
		MentorID:            req.MentorID,
		QuestionID:          req.QuestionID,
		VideoKey:            originalKey,
		TranscodeWebTask:    &webTask,
		TranscodeMobileTask: &mobileTask,
		TranscribeTask:      transcribeTask,
	}
	if err := s.bus.PublishJob(ctx, job); err != nil {
		return UploadAnswerResult{}, fmt.Errorf("publish job: %w", err)
	}

	return UploadAnswerResult{
		TranscodeWebTask:    webTask,
		TranscodeMobileTask: mobileTask,
		TranscribeTask:      transcribeTask,
		TrimUploadTask:      trimTask,
	}, nil
}

// ScratchPath builds the process-local scratch path the HTTP handler saves
// the incoming video to before calling Dispatch (spec.md §4.4 step 2).
func ScratchPath(uploadRoot, mentorID, questionID, ext string) string {
	return filepath.Join(uploadRoot, fmt.Sprintf("%s-%s-%s%s", uuid.NewString(), mentorID, questionID, ext))
}

func newTaskRef(name model.TaskName) repository.TaskRef {
	return repository.TaskRef{TaskID: uuid.NewString(), TaskName: string(name), Status: model.StatusQueued.String()}
}
