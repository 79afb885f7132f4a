// Package usecase hosts the business logic of C4-C7: the job dispatcher,
// C5's stage worker shell with its three concrete handlers plus the separate
// trim-upload runner, the task/answer coordinator, and the transfer/import
// orchestrator.
package usecase

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/mentorpal/mentor-upload-service/internal/domain/model"
	"github.com/mentorpal/mentor-upload-service/internal/domain/repository"
	"github.com/mentorpal/mentor-upload-service/internal/infrastructure/metrics"
)

// StagePatch is what a StageHandler reports back to the metadata service on
// success: the fields spec.md §4.5 lets each stage set on the shared
// Answer row (transcript and/or its own media role(s) only).
type StagePatch struct {
	Transcript          *string
	HasEditedTranscript *bool
	Media               []repository.AnswerMediaPatch
}

// StageHandler is the two-method seam every StageRunner worker body plugs into the
// common shell below (spec.md §4.5's per-worker specifics).
type StageHandler interface {
	// Stage identifies which TaskRef/TaskEntry this handler owns.
	Stage() repository.StageName

	// Do performs the stage's work against the downloaded original video
	// in workDir, returning the patch to report on success.
	Do(ctx context.Context, workDir string, job repository.Job) (StagePatch, error)
}

// StageRunnerConfig configures the shared worker shell.
type StageRunnerConfig struct {
	// WorkDirRoot is TRANSCODE_WORK_DIR (spec.md §6); each job gets a
	// scoped subdirectory under it.
	WorkDirRoot string
}

// StageRunner is the common shell every C5 stage worker runs (spec.md
// §4.5), grounded on the teacher's transcodeService.ProcessTask: status
// check -> IN_PROGRESS -> scoped temp dir -> work -> terminal status ->
// deferred cleanup. Generalized over StageHandler so the same shell serves
// the transcode-web, transcode-mobile and transcribe stages instead of the
// teacher's one hard-coded ABR body; trim-upload runs on TrimRunner.
type StageRunner struct {
	metadata repository.MetadataClient
	storage  repository.ObjectStorage
	cfg      StageRunnerConfig
}

func NewStageRunner(metadata repository.MetadataClient, storage repository.ObjectStorage, cfg StageRunnerConfig) *StageRunner {
	return &StageRunner{metadata: metadata, storage: storage, cfg: cfg}
}

// Handle processes one Job for the given handler's stage: it looks up this
// stage's TaskRef on the job, checks for cooperative cancellation, and runs
// the shell around handler.Do. A job not addressed to this stage is a no-op
// (the caller should ack without retry).
func (r *StageRunner) Handle(ctx context.Context, handler StageHandler, job repository.Job) error {
	stage := handler.Stage()
	taskRef, addressed := job.TaskFor(stage)
	if !addressed {
		return nil
	}

	task, err := r.metadata.FetchTask(ctx, job.MentorID, job.QuestionID)
	if err != nil {
		return fmt.Errorf("fetch task: %w", err)
	}
	if task.Found {
		if entry, ok := findEntry(task.Tasks, taskRef.TaskID); ok && model.TaskStatus(entry.Status).IsCancelling() {
			slog.Info("stage observed cancellation before starting", "stage", stage, "task_id", taskRef.TaskID)
			if model.TaskStatus(entry.Status) == model.StatusCancelling {
				if err := r.statusUpdate(ctx, job, taskRef.TaskID, model.StatusCancelled, StagePatch{}); err != nil {
					slog.Error("failed to record CANCELLED status", "stage", stage, "task_id", taskRef.TaskID, "error", err)
				}
			}
			metrics.StageTasksTotal.WithLabelValues(string(stage), metrics.StageResultCancelled).Inc()
			return nil
		}
	}

	if err := r.statusUpdate(ctx, job, taskRef.TaskID, model.StatusInProgress, StagePatch{}); err != nil {
		return fmt.Errorf("mark in progress: %w", err)
	}

	workDir, err := r.scopedWorkDir(job, stage)
	if err != nil {
		_ = r.statusUpdate(ctx, job, taskRef.TaskID, model.StatusFailed, StagePatch{})
		metrics.StageTasksTotal.WithLabelValues(string(stage), metrics.StageResultFailed).Inc()
		return fmt.Errorf("create work dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	if err := r.downloadOriginal(ctx, job, workDir); err != nil {
		_ = r.statusUpdate(ctx, job, taskRef.TaskID, model.StatusFailed, StagePatch{})
		metrics.StageTasksTotal.WithLabelValues(string(stage), metrics.StageResultFailed).Inc()
		return fmt.Errorf("download original: %w", err)
	}

	patch, err := handler.Do(ctx, workDir, job)
	if err != nil {
		if statusErr := r.statusUpdate(ctx, job, taskRef.TaskID, model.StatusFailed, StagePatch{}); statusErr != nil {
			slog.Error("failed to record FAILED status", "stage", stage, "task_id", taskRef.TaskID, "error", statusErr)
		}
		metrics.StageTasksTotal.WithLabelValues(string(stage), metrics.StageResultFailed).Inc()
		return fmt.Errorf("stage %s failed: %w", stage, err)
	}

	if err := r.statusUpdate(ctx, job, taskRef.TaskID, model.StatusDone, patch); err != nil {
		return fmt.Errorf("mark done: %w", err)
	}
	metrics.StageTasksTotal.WithLabelValues(string(stage), metrics.StageResultDone).Inc()
	return nil
}

func (r *StageRunner) statusUpdate(ctx context.Context, job repository.Job, taskID string, status model.TaskStatus, patch StagePatch) error {
	return r.metadata.UploadTaskStatusUpdate(ctx, job.MentorID, job.QuestionID, taskID, repository.TaskPatch{
		Status:              status.String(),
		Transcript:          patch.Transcript,
		HasEditedTranscript: patch.HasEditedTranscript,
		Media:               patch.Media,
	})
}

func (r *StageRunner) scopedWorkDir(job repository.Job, stage repository.StageName) (string, error) {
	dir := filepath.Join(r.cfg.WorkDirRoot, string(stage), job.MentorID+"-"+job.QuestionID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

func (r *StageRunner) downloadOriginal(ctx context.Context, job repository.Job, workDir string) error {
	reader, err := r.storage.Get(ctx, job.VideoKey)
	if err != nil {
		return err
	}
	defer reader.Close()

	dst := filepath.Join(workDir, "original.mp4")
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

func findEntry(tasks []repository.TaskEntryView, taskID string) (repository.TaskEntryView, bool) {
	for _, t := range tasks {
		if t.TaskID == taskID {
			return t, true
		}
	}
	return repository.TaskEntryView{}, false
}

