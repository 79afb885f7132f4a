package usecase

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mentorpal/mentor-upload-service/internal/domain/model"
	"github.com/mentorpal/mentor-upload-service/internal/domain/repository"
	"github.com/mentorpal/mentor-upload-service/internal/objectkey"
	"github.com/mentorpal/mentor-upload-service/internal/transcoder"
)

// mobileHandler implements the "transcode-mobile" stage (spec.md §4.5): crop
// the original video to a centered 480x480 square and store it.
type mobileHandler struct {
	toolkit       transcoder.Toolkit
	storage       repository.ObjectStorage
	staticURLBase string
}

func NewMobileHandler(toolkit transcoder.Toolkit, storage repository.ObjectStorage, staticURLBase string) StageHandler {
	return &mobileHandler{toolkit: toolkit, storage: storage, staticURLBase: staticURLBase}
}

func (h *mobileHandler) Stage() repository.StageName { return repository.StageTranscodeMobile }

func (h *mobileHandler) Do(ctx context.Context, workDir string, job repository.Job) (StagePatch, error) {
	src := filepath.Join(workDir, "original.mp4")
	dst := filepath.Join(workDir, "mobile.mp4")

	if err := h.toolkit.EncodeMobile(ctx, src, dst); err != nil {
		return StagePatch{}, fmt.Errorf("encode mobile: %w", err)
	}

	file, err := os.Open(dst)
	if err != nil {
		return StagePatch{}, fmt.Errorf("open encoded mobile file: %w", err)
	}
	defer file.Close()

	key := objectkey.Mobile(job.MentorID, job.QuestionID)
	if err := h.storage.Put(ctx, key, file, "video/mp4"); err != nil {
		return StagePatch{}, fmt.Errorf("upload mobile.mp4: %w", err)
	}

	return StagePatch{
		Media: []repository.AnswerMediaPatch{
			{Type: string(model.MediaTypeVideo), Tag: string(model.MediaTagMobile), URL: objectkey.URL(h.staticURLBase, key)},
		},
	}, nil
}
