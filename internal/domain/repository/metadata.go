package repository

import "context"

// TaskPatch carries only the fields a caller means to set on one
// TaskEntry (spec.md §9 "dynamic status dicts" replaced by a sum of
// concrete patch variants). Undefined fields are omitted on the wire.
type TaskPatch struct {
	Status              string             `json:"status"`
	Transcript          *string            `json:",omitempty"`
	HasEditedTranscript *bool              `json:",omitempty"`
	Media               []AnswerMediaPatch `json:",omitempty"`
}

// AnswerMediaPatch is the wire shape of one AnswerMedia patch entry.
type AnswerMediaPatch struct {
	Type          string `json:"type"`
	Tag           string `json:"tag"`
	URL           string `json:"url"`
	NeedsTransfer bool   `json:"needsTransfer"`
}

// AnswerPatch carries only the Answer fields a caller means to set.
type AnswerPatch struct {
	Transcript          *string            `json:",omitempty"`
	HasEditedTranscript *bool              `json:",omitempty"`
	Media               []AnswerMediaPatch `json:",omitempty"`
}

// FetchedAnswer is the result of fetch_answer_transcript_and_media.
type FetchedAnswer struct {
	Transcript          string
	Media               []AnswerMediaPatch
	HasEditedTranscript bool
}

// FetchedTask is the result of fetch_task: the current UploadTask, or
// Found == false if none exists.
type FetchedTask struct {
	Found      bool
	MentorID   string
	QuestionID string
	Tasks      []TaskEntryView
	Transcript string
	Media      []AnswerMediaPatch
}

// TaskEntryView mirrors model.TaskEntry for the wire.
type TaskEntryView struct {
	TaskName string
	TaskID   string
	Status   string
}

// MentorImportResult is the result of mentor_import: the set of answer
// media entries that now need transfer into owned storage.
type MentorImportResult struct {
	NeedsTransfer []ImportMediaRef
}

// ImportMediaRef identifies one answer's media needing transfer.
type ImportMediaRef struct {
	QuestionID string
	Media      []AnswerMediaPatch
}

// MetadataClient is C3's typed operation set against the external
// metadata service (spec.md §4.3).
type MetadataClient interface {
	UploadTaskStatusUpdate(ctx context.Context, mentorID, questionID, taskID string, patch TaskPatch) error
	UploadAnswerAndTaskUpdate(ctx context.Context, mentorID, questionID string, answer AnswerPatch, tasks []TaskEntryView) error
	FetchTask(ctx context.Context, mentorID, questionID string) (FetchedTask, error)
	IsUploadInProgress(ctx context.Context, mentorID, questionID string) (bool, error)
	FetchAnswerTranscriptAndMedia(ctx context.Context, mentorID, questionID string) (FetchedAnswer, error)
	MediaUpdate(ctx context.Context, mentorID, questionID string, web, mobile, vtt *AnswerMediaPatch) error
	FetchQuestionName(ctx context.Context, questionID string) (string, error)

	ImportTaskCreate(ctx context.Context, mentorID string) error
	ImportTaskUpdate(ctx context.Context, mentorID string, graphQLUpdate, s3VideoMigration *string, answer *ImportMediaStatusPatch) error
	MentorImport(ctx context.Context, mentorID, exportJSON, replacedChanges string) (MentorImportResult, error)
}

// ImportMediaStatusPatch patches one answer's sub-status within an
// ImportTask's s3_video_migration list.
type ImportMediaStatusPatch struct {
	QuestionID   string
	Status       string
	ErrorMessage string
}

// QuestionNameIdle is the recognized question name denoting an idle
// question (spec.md GLOSSARY); transcription is skipped for it.
const QuestionNameIdle = "_IDLE_"
