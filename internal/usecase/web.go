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

// webHandler implements the "transcode-web" stage (spec.md §4.5): encode
// the original video to a 16:9 web rendition at most 720px wide and store it.
type webHandler struct {
	toolkit       transcoder.Toolkit
	storage       repository.ObjectStorage
	staticURLBase string
}

func NewWebHandler(toolkit transcoder.Toolkit, storage repository.ObjectStorage, staticURLBase string) StageHandler {
	return &webHandler{toolkit: toolkit, storage: storage, staticURLBase: staticURLBase}
}

func (h *webHandler) Stage() repository.StageName { return repository.StageTranscodeWeb }

func (h *webHandler) Do(ctx context.Context, workDir string, job repository.Job) (StagePatch, error) {
	src := filepath.Join(workDir, "original.mp4")
	dst := filepath.Join(workDir, "web.mp4")

	if err := h.toolkit.EncodeWeb(ctx, src, dst); err != nil {
		return StagePatch{}, fmt.Errorf("encode web: %w", err)
	}

	file, err := os.Open(dst)
	if err != nil {
		return StagePatch{}, fmt.Errorf("open encoded web file: %w", err)
	}
	defer file.Close()

	key := objectkey.Web(job.MentorID, job.QuestionID)
	if err := h.storage.Put(ctx, key, file, "video/mp4"); err != nil {
		return StagePatch{}, fmt.Errorf("upload web.mp4: %w", err)
	}

	return StagePatch{
		Media: []repository.AnswerMediaPatch{
			{Type: string(model.MediaTypeVideo), Tag: string(model.MediaTagWeb), URL: objectkey.URL(h.staticURLBase, key)},
		},
	}, nil
}
