package model

import "errors"

// TaskStatus is the state of one TaskEntry in an UploadTask (spec.md §4.6):
//
//	QUEUED ──► IN_PROGRESS ──► DONE
//	   │            │
//	   ├────────────┴───► FAILED
//	   │
//	   └─► CANCELLING ──► CANCELLED
type TaskStatus string

const (
	StatusQueued     TaskStatus = "QUEUED"
	StatusInProgress TaskStatus = "IN_PROGRESS"
	StatusDone       TaskStatus = "DONE"
	StatusFailed     TaskStatus = "FAILED"
	StatusCancelling TaskStatus = "CANCELLING"
	StatusCancelled  TaskStatus = "CANCELLED"
)

// validTaskTransitions mirrors model.Status.CanTransitionTo's table in the
// teacher, generalized to the 6-state DAG above: FAILED and CANCELLING are
// reachable only from QUEUED and IN_PROGRESS, and CANCELLING leads only to
// CANCELLED.
var validTaskTransitions = map[TaskStatus][]TaskStatus{
	StatusQueued:     {StatusInProgress, StatusFailed, StatusCancelling},
	StatusInProgress: {StatusDone, StatusFailed, StatusCancelling},
	StatusDone:       {},
	StatusFailed:     {},
	StatusCancelling: {StatusCancelled},
	StatusCancelled:  {},
}

func (s TaskStatus) IsValid() bool {
	_, ok := validTaskTransitions[s]
	return ok
}

func (s TaskStatus) IsTerminal() bool {
	return s == StatusDone || s == StatusFailed || s == StatusCancelled
}

// IsCancelling reports whether a worker observing this status must treat
// the task entry as cancelled-in-flight (spec.md §4.5's "CANCEL" prefix check).
func (s TaskStatus) IsCancelling() bool {
	return s == StatusCancelling || s == StatusCancelled
}

func (s TaskStatus) CanTransitionTo(next TaskStatus) bool {
	allowed, ok := validTaskTransitions[s]
	if !ok {
		return false
	}
	for _, n := range allowed {
		if n == next {
			return true
		}
	}
	return false
}

func (s TaskStatus) String() string { return string(s) }

// TaskName identifies one stage of an UploadTask.
type TaskName string

const (
	TaskNameTrimUpload     TaskName = "trim-upload"
	TaskNameTranscodingWeb TaskName = "transcoding-web"
	TaskNameTranscodingMob TaskName = "transcoding-mobile"
	TaskNameTranscribing   TaskName = "transcribing"
	TaskNameFinalization   TaskName = "finalization"
)

// TaskEntry is one row of an UploadTask's stage list.
type TaskEntry struct {
	TaskName TaskName   `json:"task_name"`
	TaskID   string     `json:"task_id"`
	Status   TaskStatus `json:"status"`
}

// UploadTask is the progress record for one in-flight processing job on
// an Answer. At most one exists per (MentorID, QuestionID) at a time.
type UploadTask struct {
	MentorID   string        `json:"mentor"`
	QuestionID string        `json:"question"`
	Tasks      []TaskEntry   `json:"uploadTasks"`
	Transcript string        `json:"transcript"`
	Media      []AnswerMedia `json:"media"`
}

var ErrTaskNotFound = errors.New("task entry not found")

// EntryByName returns the TaskEntry for the given stage name, if present.
func (t *UploadTask) EntryByName(name TaskName) (TaskEntry, bool) {
	for _, e := range t.Tasks {
		if e.TaskName == name {
			return e, true
		}
	}
	return TaskEntry{}, false
}

// EntryByID returns the TaskEntry with the given task_id, if present.
func (t *UploadTask) EntryByID(taskID string) (TaskEntry, bool) {
	for _, e := range t.Tasks {
		if e.TaskID == taskID {
			return e, true
		}
	}
	return TaskEntry{}, false
}

// InProgress reports whether the UploadTask document exists, whatever the
// states of its entries: the dispatcher treats the mere existence of an
// UploadTask document as "in progress" (the is_upload_in_progress
// predicate of spec.md §4.6).
func (t *UploadTask) InProgress() bool {
	return t != nil
}
