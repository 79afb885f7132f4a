package usecase

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"path"

	"github.com/mentorpal/mentor-upload-service/internal/domain/model"
	"github.com/mentorpal/mentor-upload-service/internal/domain/repository"
	"github.com/mentorpal/mentor-upload-service/internal/objectkey"
)

// TransferJobKinds, mirroring repository.TransferJob.Kind.
const (
	TransferKindAnswer = "answer"
	TransferKindMentor = "mentor"
)

// TransferService implements C7 (spec.md §4.7): transferring externally
// hosted answer media into owned storage, and orchestrating a bulk mentor
// import's two independent sub-statuses.
type TransferService struct {
	metadata   repository.MetadataClient
	storage    repository.ObjectStorage
	httpClient *http.Client
	urlBase    string
}

func NewTransferService(metadata repository.MetadataClient, storage repository.ObjectStorage, urlBase string) *TransferService {
	return &TransferService{metadata: metadata, storage: storage, httpClient: http.DefaultClient, urlBase: urlBase}
}

// Handle dispatches one TransferJob to TransferAnswer or ImportMentor by kind.
func (s *TransferService) Handle(ctx context.Context, job repository.TransferJob) error {
	switch job.Kind {
	case TransferKindAnswer:
		return s.runAnswerTransfer(ctx, job)
	case TransferKindMentor:
		return s.ImportMentor(ctx, job.MentorID, job.MentorExportJSON, job.ReplacedMentorDataChanges)
	default:
		return fmt.Errorf("unrecognized transfer job kind %q", job.Kind)
	}
}

// runAnswerTransfer drives the finalization TaskEntry the HTTP layer
// installed through IN_PROGRESS to DONE/FAILED around the transfer itself,
// the same bookkeeping the C5 shell performs for its stages. Mentor imports
// are tracked through their own ImportTask instead.
func (s *TransferService) runAnswerTransfer(ctx context.Context, job repository.TransferJob) error {
	if err := s.taskStatus(ctx, job, model.StatusInProgress); err != nil {
		return fmt.Errorf("mark in progress: %w", err)
	}
	if err := s.TransferAnswer(ctx, job.MentorID, job.QuestionID); err != nil {
		_ = s.taskStatus(ctx, job, model.StatusFailed)
		return err
	}
	return s.taskStatus(ctx, job, model.StatusDone)
}

func (s *TransferService) taskStatus(ctx context.Context, job repository.TransferJob, status model.TaskStatus) error {
	if job.TaskID == "" {
		return nil
	}
	return s.metadata.UploadTaskStatusUpdate(ctx, job.MentorID, job.QuestionID, job.TaskID, repository.TaskPatch{
		Status: status.String(),
	})
}

// TransferAnswer downloads every media entry of (mentor, question) still
// marked needs_transfer, re-uploads it under the owned videos/ layout, and
// clears needs_transfer per entry (spec.md §4.7 "answer transfer").
func (s *TransferService) TransferAnswer(ctx context.Context, mentorID, questionID string) error {
	answer, err := s.metadata.FetchAnswerTranscriptAndMedia(ctx, mentorID, questionID)
	if err != nil {
		return fmt.Errorf("fetch answer: %w", err)
	}

	var web, mobile, vtt *repository.AnswerMediaPatch
	for _, media := range answer.Media {
		if !media.NeedsTransfer {
			continue
		}
		patch, err := s.transferOne(ctx, mentorID, questionID, media)
		if err != nil {
			return fmt.Errorf("transfer media %s/%s: %w", media.Type, media.Tag, err)
		}
		switch patch.Tag {
		case string(model.MediaTagWeb):
			web = &patch
		case string(model.MediaTagMobile):
			mobile = &patch
		case string(model.MediaTagEnglish):
			vtt = &patch
		}
	}
	if web == nil && mobile == nil && vtt == nil {
		return nil
	}
	return s.metadata.MediaUpdate(ctx, mentorID, questionID, web, mobile, vtt)
}

func (s *TransferService) transferOne(ctx context.Context, mentorID, questionID string, media repository.AnswerMediaPatch) (repository.AnswerMediaPatch, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, media.URL, nil)
	if err != nil {
		return repository.AnswerMediaPatch{}, err
	}
	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return repository.AnswerMediaPatch{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return repository.AnswerMediaPatch{}, fmt.Errorf("unexpected status %d fetching %s", resp.StatusCode, media.URL)
	}

	ext := extensionFor(media)
	key := path.Join(objectkey.Prefix(mentorID, questionID), media.Tag+ext)
	contentType := contentTypeFor(media)
	if err := s.storage.Put(ctx, key, resp.Body, contentType); err != nil {
		return repository.AnswerMediaPatch{}, err
	}

	return repository.AnswerMediaPatch{
		Type:          media.Type,
		Tag:           media.Tag,
		URL:           objectkey.URL(s.urlBase, key),
		NeedsTransfer: false,
	}, nil
}

func extensionFor(media repository.AnswerMediaPatch) string {
	if media.Type == string(model.MediaTypeSubtitles) {
		return ".vtt"
	}
	if ext := path.Ext(urlPath(media.URL)); ext != "" {
		return ext
	}
	return ".mp4"
}

func contentTypeFor(media repository.AnswerMediaPatch) string {
	if media.Type == string(model.MediaTypeSubtitles) {
		return "text/vtt"
	}
	return "video/mp4"
}

func urlPath(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	return u.Path
}

// ImportMentor runs the two-phase mentor import of spec.md §4.7: a
// graphql_update phase that replays the mentor's exported data, followed
// by a per-answer s3_video_migration phase. Individual answer failures do
// not abort the outer loop; they are recorded per-question.
func (s *TransferService) ImportMentor(ctx context.Context, mentorID, exportJSON, replacedChanges string) error {
	if err := s.metadata.ImportTaskCreate(ctx, mentorID); err != nil {
		return fmt.Errorf("create import task: %w", err)
	}

	inProgress := model.StatusInProgress.String()
	if err := s.metadata.ImportTaskUpdate(ctx, mentorID, &inProgress, nil, nil); err != nil {
		return fmt.Errorf("mark graphql_update in progress: %w", err)
	}

	result, err := s.metadata.MentorImport(ctx, mentorID, exportJSON, replacedChanges)
	if err != nil {
		failed := model.StatusFailed.String()
		_ = s.metadata.ImportTaskUpdate(ctx, mentorID, &failed, nil, nil)
		return fmt.Errorf("mentor import: %w", err)
	}

	done := model.StatusDone.String()
	migrationInProgress := model.StatusInProgress.String()
	if err := s.metadata.ImportTaskUpdate(ctx, mentorID, &done, &migrationInProgress, nil); err != nil {
		return fmt.Errorf("mark graphql_update done: %w", err)
	}

	for _, ref := range result.NeedsTransfer {
		if err := s.TransferAnswer(ctx, mentorID, ref.QuestionID); err != nil {
			status := repository.ImportMediaStatusPatch{
				QuestionID:   ref.QuestionID,
				Status:       model.StatusFailed.String(),
				ErrorMessage: err.Error(),
			}
			_ = s.metadata.ImportTaskUpdate(ctx, mentorID, nil, nil, &status)
			continue
		}
		status := repository.ImportMediaStatusPatch{
			QuestionID: ref.QuestionID,
			Status:     model.StatusDone.String(),
		}
		if err := s.metadata.ImportTaskUpdate(ctx, mentorID, nil, nil, &status); err != nil {
			return fmt.Errorf("record answer %s transfer status: %w", ref.QuestionID, err)
		}
	}

	migrationDone := model.StatusDone.String()
	return s.metadata.ImportTaskUpdate(ctx, mentorID, nil, &migrationDone, nil)
}
