package usecase

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/mentorpal/mentor-upload-service/internal/apperror"
	"github.com/mentorpal/mentor-upload-service/internal/domain/model"
	"github.com/mentorpal/mentor-upload-service/internal/domain/repository"
	"github.com/mentorpal/mentor-upload-service/internal/objectkey"
	"github.com/mentorpal/mentor-upload-service/internal/transcoder"
)

// CoordinatorService implements C6 (spec.md §4.6): cancellation, the
// existing-answer trim request, and subtitle regeneration. All three are
// thin orchestrators over C2/C3/the message bus; none perform media work
// themselves except regen_vtt's direct, synchronous VTT synthesis.
type CoordinatorService struct {
	metadata    repository.MetadataClient
	storage     repository.ObjectStorage
	bus         repository.MessageBus
	toolkit     transcoder.Toolkit
	urlBase     string
	workDirRoot string
}

func NewCoordinatorService(metadata repository.MetadataClient, storage repository.ObjectStorage, bus repository.MessageBus, toolkit transcoder.Toolkit, urlBase, workDirRoot string) *CoordinatorService {
	return &CoordinatorService{metadata: metadata, storage: storage, bus: bus, toolkit: toolkit, urlBase: urlBase, workDirRoot: workDirRoot}
}

// IsUploadInProgress exposes C3's coarse admission predicate directly.
func (s *CoordinatorService) IsUploadInProgress(ctx context.Context, mentorID, questionID string) (bool, error) {
	return s.metadata.IsUploadInProgress(ctx, mentorID, questionID)
}

// Cancel flips every listed, non-terminal TaskEntry to CANCELLING (spec.md
// §4.6) and returns the task IDs it actually flipped; the worker that owns
// each entry observes the new status at its next read and the coordinator
// does not otherwise intervene.
func (s *CoordinatorService) Cancel(ctx context.Context, mentorID, questionID string, taskIDsToCancel []string) ([]string, error) {
	task, err := s.metadata.FetchTask(ctx, mentorID, questionID)
	if err != nil {
		return nil, fmt.Errorf("fetch task: %w", err)
	}
	if !task.Found {
		return nil, apperror.Validation("no in-progress upload for this answer")
	}

	cancelled := []string{}
	for _, taskID := range taskIDsToCancel {
		entry, ok := findTaskEntry(task.Tasks, taskID)
		if !ok {
			continue
		}
		status := model.TaskStatus(entry.Status)
		if status.IsTerminal() || status == model.StatusCancelling {
			continue
		}
		if err := s.metadata.UploadTaskStatusUpdate(ctx, mentorID, questionID, taskID, repository.TaskPatch{
			Status: model.StatusCancelling.String(),
		}); err != nil {
			return cancelled, fmt.Errorf("cancel task %s: %w", taskID, err)
		}
		cancelled = append(cancelled, taskID)
	}
	return cancelled, nil
}

// TrimExistingUpload mints a trim-upload TaskEntry and publishes a TrimJob
// for it (spec.md §4.6's trim_existing_upload, distinct from ingestion-time
// trim handled synchronously by DispatchService).
func (s *CoordinatorService) TrimExistingUpload(ctx context.Context, mentorID, questionID string, trim Trim) (repository.TaskRef, error) {
	taskRef := newTaskRef(model.TaskNameTrimUpload)

	tasks := []repository.TaskEntryView{
		{TaskName: taskRef.TaskName, TaskID: taskRef.TaskID, Status: taskRef.Status},
	}
	if err := s.metadata.UploadAnswerAndTaskUpdate(ctx, mentorID, questionID, repository.AnswerPatch{}, tasks); err != nil {
		return repository.TaskRef{}, fmt.Errorf("install trim-upload task: %w", err)
	}

	job := repository.TrimJob{
		MentorID:   mentorID,
		QuestionID: questionID,
		TaskID:     taskRef.TaskID,
		StartS:     trim.StartS,
		EndS:       trim.EndS,
	}
	if err := s.bus.PublishTrimJob(ctx, job); err != nil {
		return repository.TaskRef{}, fmt.Errorf("publish trim job: %w", err)
	}
	return taskRef, nil
}

// RegenVTT re-synthesizes en.vtt from the Answer's current transcript and
// web.mp4 duration (spec.md §6's regen_vtt route), replacing any existing
// subtitle media in place. Returns false without writing anything when
// the transcript is empty.
func (s *CoordinatorService) RegenVTT(ctx context.Context, mentorID, questionID string) (bool, error) {
	answer, err := s.metadata.FetchAnswerTranscriptAndMedia(ctx, mentorID, questionID)
	if err != nil {
		return false, fmt.Errorf("fetch answer: %w", err)
	}
	if answer.Transcript == "" {
		return false, nil
	}

	workDir := filepath.Join(s.workDirRoot, "regen-vtt", mentorID+"-"+questionID)
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return false, fmt.Errorf("create work dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	webPath := filepath.Join(workDir, "web.mp4")
	if err := s.download(ctx, objectkey.Web(mentorID, questionID), webPath); err != nil {
		return false, fmt.Errorf("download web.mp4: %w", err)
	}

	vttPath := filepath.Join(workDir, "en.vtt")
	if err := s.toolkit.TranscriptToVTT(ctx, webPath, vttPath, answer.Transcript); err != nil {
		return false, fmt.Errorf("synthesize vtt: %w", err)
	}

	file, err := os.Open(vttPath)
	if err != nil {
		return false, fmt.Errorf("open synthesized vtt: %w", err)
	}
	defer file.Close()

	key := objectkey.VTT(mentorID, questionID)
	if err := s.storage.Put(ctx, key, file, "text/vtt"); err != nil {
		return false, fmt.Errorf("upload vtt: %w", err)
	}

	vttPatch := repository.AnswerMediaPatch{Type: string(model.MediaTypeSubtitles), Tag: string(model.MediaTagEnglish), URL: objectkey.URL(s.urlBase, key)}
	if err := s.metadata.MediaUpdate(ctx, mentorID, questionID, nil, nil, &vttPatch); err != nil {
		return false, fmt.Errorf("update answer media: %w", err)
	}
	return true, nil
}

func (s *CoordinatorService) download(ctx context.Context, key, dst string) error {
	reader, err := s.storage.Get(ctx, key)
	if err != nil {
		return err
	}
	defer reader.Close()

	file, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer file.Close()

	if _, err := io.Copy(file, reader); err != nil {
		return err
	}
	return nil
}

func findTaskEntry(tasks []repository.TaskEntryView, taskID string) (repository.TaskEntryView, bool) {
	for _, t := range tasks {
		if t.TaskID == taskID {
			return t, true
		}
	}
	return repository.TaskEntryView{}, false
}
