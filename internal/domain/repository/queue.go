package repository

import "context"

// StageName identifies a fanout queue binding. It doubles as the routing
// label a worker process is launched with (STAGE_NAME env var).
type StageName string

const (
	StageTranscodeWeb    StageName = "transcode-web"
	StageTranscodeMobile StageName = "transcode-mobile"
	StageTranscribe      StageName = "transcribe"
	StageTrimUpload      StageName = "trim-upload"
	StageFinalization    StageName = "finalization"
)

// TaskRef is one stage's identity within a published Job, mirroring one
// TaskEntry at QUEUED time (spec.md §6 message bus payload).
type TaskRef struct {
	TaskID   string `json:"task_id"`
	TaskName string `json:"task_name"`
	Status   string `json:"status"`
}

// Job is the single fan-out message published by the dispatcher (spec.md §4.4
// step 8, §6). Every stage worker receives an identical copy and filters by
// the presence of its own TaskRef.
type Job struct {
	MentorID   string `json:"mentor"`
	QuestionID string `json:"question"`
	VideoKey   string `json:"video"`

	TranscodeWebTask    *TaskRef `json:"transcodeWebTask,omitempty"`
	TranscodeMobileTask *TaskRef `json:"transcodeMobileTask,omitempty"`
	TranscribeTask      *TaskRef `json:"transcribeTask,omitempty"`
	TrimUploadTask      *TaskRef `json:"trimUploadTask,omitempty"`
}

// TaskFor returns the TaskRef addressed to the given stage, if the job
// carries one. Workers use this to decide whether to ack-and-exit.
func (j Job) TaskFor(stage StageName) (TaskRef, bool) {
	switch stage {
	case StageTranscodeWeb:
		if j.TranscodeWebTask != nil {
			return *j.TranscodeWebTask, true
		}
	case StageTranscodeMobile:
		if j.TranscodeMobileTask != nil {
			return *j.TranscodeMobileTask, true
		}
	case StageTranscribe:
		if j.TranscribeTask != nil {
			return *j.TranscribeTask, true
		}
	case StageTrimUpload:
		if j.TrimUploadTask != nil {
			return *j.TrimUploadTask, true
		}
	}
	return TaskRef{}, false
}

// TrimJob is the payload for an existing-answer trim request (spec.md
// §4.6's trim_existing_upload endpoint), distinct from the ingestion-time
// trim which the dispatcher performs synchronously. Addressed to the
// "trim-upload" stage queue but never part of the ingestion fan-out Job.
type TrimJob struct {
	MentorID   string  `json:"mentor"`
	QuestionID string  `json:"question"`
	TaskID     string  `json:"task_id"`
	StartS     float64 `json:"start"`
	EndS       float64 `json:"end"`
}

// TransferJob is the fan-out payload for C7's finalization stage (answer
// transfer / mentor import), published to its own transfer exchange and
// consumed from the "finalization" stage's queue.
type TransferJob struct {
	Kind       string `json:"kind"` // "answer" or "mentor"
	MentorID   string `json:"mentor"`
	QuestionID string `json:"question,omitempty"`
	TaskID     string `json:"task_id"`

	MentorExportJSON          string `json:"mentorExportJson,omitempty"`
	ReplacedMentorDataChanges string `json:"replacedMentorDataChanges,omitempty"`
}

// MessageBus is the fan-out publish/consume seam (spec.md §5, §6). Each
// message kind (Job, TransferJob, TrimJob) has its own fanout exchange and
// each stage binds its own durable queue to the exchange it consumes, so
// one Publish delivers a copy of the message to every queue bound there.
type MessageBus interface {
	// PublishJob fans a job out to every stage queue bound to the exchange.
	PublishJob(ctx context.Context, job Job) error

	// PublishTransferJob fans a transfer/import job out the same way.
	PublishTransferJob(ctx context.Context, job TransferJob) error

	// PublishTrimJob publishes an existing-answer trim request, addressed
	// only to the trim-upload stage queue.
	PublishTrimJob(ctx context.Context, job TrimJob) error

	// ConsumeJobs binds (or reuses) stage's durable queue and delivers
	// every published Job to handler until ctx is cancelled.
	ConsumeJobs(ctx context.Context, stage StageName, handler func(Job) error) error

	// ConsumeTransferJobs is ConsumeJobs's counterpart for TransferJob.
	ConsumeTransferJobs(ctx context.Context, handler func(TransferJob) error) error

	// ConsumeTrimJobs is ConsumeJobs's counterpart for TrimJob, bound to
	// the trim-upload stage queue.
	ConsumeTrimJobs(ctx context.Context, handler func(TrimJob) error) error

	// Close gracefully closes the connection to the message bus.
	Close() error
}
