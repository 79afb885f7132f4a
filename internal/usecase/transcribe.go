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
	"github.com/mentorpal/mentor-upload-service/internal/transcribe"
)

// TranscriptionService is the seam transcribeHandler calls out to for
// speech-to-text, satisfied by transcribe.Client in production.
type TranscriptionService interface {
	Transcribe(ctx context.Context, req transcribe.Request) (transcribe.Result, error)
}

// transcribeHandler implements the "transcribe" stage (spec.md §4.5): skip
// entirely for idle questions, otherwise extract audio, submit it for
// transcription, and upload the returned subtitles as en.vtt.
type transcribeHandler struct {
	toolkit       transcoder.Toolkit
	storage       repository.ObjectStorage
	metadata      repository.MetadataClient
	transcription TranscriptionService
	staticURLBase string
	bucket        string
}

func NewTranscribeHandler(toolkit transcoder.Toolkit, storage repository.ObjectStorage, metadata repository.MetadataClient, transcription TranscriptionService, staticURLBase, bucket string) StageHandler {
	return &transcribeHandler{
		toolkit:       toolkit,
		storage:       storage,
		metadata:      metadata,
		transcription: transcription,
		staticURLBase: staticURLBase,
		bucket:        bucket,
	}
}

func (h *transcribeHandler) Stage() repository.StageName { return repository.StageTranscribe }

func (h *transcribeHandler) Do(ctx context.Context, workDir string, job repository.Job) (StagePatch, error) {
	name, err := h.metadata.FetchQuestionName(ctx, job.QuestionID)
	if err != nil {
		return StagePatch{}, fmt.Errorf("fetch question name: %w", err)
	}
	if name == repository.QuestionNameIdle {
		empty := ""
		return StagePatch{Transcript: &empty}, nil
	}

	falseVal := false

	src := filepath.Join(workDir, "original.mp4")
	audioPath, err := h.toolkit.ExtractAudio(ctx, src, "")
	if err != nil {
		return StagePatch{}, fmt.Errorf("extract audio: %w", err)
	}

	audioKey := filepath.ToSlash(filepath.Join(objectkey.Prefix(job.MentorID, job.QuestionID), filepath.Base(audioPath)))
	audioFile, err := os.Open(audioPath)
	if err != nil {
		return StagePatch{}, fmt.Errorf("open extracted audio: %w", err)
	}
	defer audioFile.Close()
	if err := h.storage.Put(ctx, audioKey, audioFile, "audio/mpeg"); err != nil {
		return StagePatch{}, fmt.Errorf("upload extracted audio: %w", err)
	}

	result, err := h.transcription.Transcribe(ctx, transcribe.Request{
		AudioBucket:       h.bucket,
		AudioKey:          audioKey,
		GenerateSubtitles: true,
	})
	if err != nil {
		return StagePatch{}, fmt.Errorf("transcribe audio: %w", err)
	}

	patch := StagePatch{Transcript: &result.Transcript, HasEditedTranscript: &falseVal}
	if result.Subtitles != "" {
		vttPath := filepath.Join(workDir, "en.vtt")
		if err := os.WriteFile(vttPath, []byte(result.Subtitles), 0o644); err != nil {
			return StagePatch{}, fmt.Errorf("write subtitles: %w", err)
		}
		vttFile, err := os.Open(vttPath)
		if err != nil {
			return StagePatch{}, fmt.Errorf("open subtitles: %w", err)
		}
		defer vttFile.Close()

		key := objectkey.VTT(job.MentorID, job.QuestionID)
		if err := h.storage.Put(ctx, key, vttFile, "text/vtt"); err != nil {
			return StagePatch{}, fmt.Errorf("upload subtitles: %w", err)
		}
		patch.Media = []repository.AnswerMediaPatch{
			{Type: string(model.MediaTypeSubtitles), Tag: string(model.MediaTagEnglish), URL: objectkey.URL(h.staticURLBase, key)},
		}
	}
	return patch, nil
}
