package model

import "testing"

func TestTaskStatus_ForwardChainIsMonotonic(t *testing.T) {
	if !StatusQueued.CanTransitionTo(StatusInProgress) {
		t.Fatal("QUEUED must be able to advance to IN_PROGRESS")
	}
	if !StatusInProgress.CanTransitionTo(StatusDone) {
		t.Fatal("IN_PROGRESS must be able to advance to DONE")
	}
	if StatusQueued.CanTransitionTo(StatusDone) {
		t.Fatal("QUEUED must not skip directly to DONE")
	}
	if StatusDone.CanTransitionTo(StatusInProgress) {
		t.Fatal("DONE must not regress to IN_PROGRESS")
	}
}

func TestTaskStatus_FailedReachableFromAnyNonTerminalState(t *testing.T) {
	for _, s := range []TaskStatus{StatusQueued, StatusInProgress} {
		if !s.CanTransitionTo(StatusFailed) {
			t.Fatalf("%s must be able to transition to FAILED", s)
		}
	}
	for _, s := range []TaskStatus{StatusDone, StatusFailed, StatusCancelled} {
		if s.CanTransitionTo(StatusFailed) {
			t.Fatalf("terminal state %s must not transition to FAILED", s)
		}
	}
}

func TestTaskStatus_CancellingOnlyReachesCancelled(t *testing.T) {
	if !StatusCancelling.CanTransitionTo(StatusCancelled) {
		t.Fatal("CANCELLING must be able to reach CANCELLED")
	}
	if StatusCancelling.CanTransitionTo(StatusInProgress) {
		t.Fatal("CANCELLING must not revert to IN_PROGRESS")
	}
	if StatusCancelling.CanTransitionTo(StatusDone) {
		t.Fatal("CANCELLING must not jump directly to DONE")
	}
}

func TestTaskStatus_TerminalStatesHaveNoOutgoingTransitions(t *testing.T) {
	for _, s := range []TaskStatus{StatusDone, StatusFailed, StatusCancelled} {
		for _, next := range []TaskStatus{StatusQueued, StatusInProgress, StatusDone, StatusFailed, StatusCancelling, StatusCancelled} {
			if s.CanTransitionTo(next) {
				t.Fatalf("terminal state %s must have no outgoing transitions, but allowed -> %s", s, next)
			}
		}
	}
}

func TestTaskStatus_IsCancellingPrefixCheck(t *testing.T) {
	if !StatusCancelling.IsCancelling() {
		t.Fatal("CANCELLING must report IsCancelling")
	}
	if !StatusCancelled.IsCancelling() {
		t.Fatal("CANCELLED must report IsCancelling")
	}
	for _, s := range []TaskStatus{StatusQueued, StatusInProgress, StatusDone, StatusFailed} {
		if s.IsCancelling() {
			t.Fatalf("%s must not report IsCancelling", s)
		}
	}
}

func TestUploadTask_EntryLookups(t *testing.T) {
	task := &UploadTask{
		Tasks: []TaskEntry{
			{TaskName: TaskNameTranscodingWeb, TaskID: "web-1", Status: StatusQueued},
			{TaskName: TaskNameTranscribing, TaskID: "transcribe-1", Status: StatusDone},
		},
	}

	if entry, ok := task.EntryByName(TaskNameTranscodingWeb); !ok || entry.TaskID != "web-1" {
		t.Fatalf("expected to find transcoding-web entry, got %+v ok=%v", entry, ok)
	}
	if _, ok := task.EntryByName(TaskNameTrimUpload); ok {
		t.Fatal("must not find a trim-upload entry that was not installed")
	}
	if entry, ok := task.EntryByID("transcribe-1"); !ok || entry.TaskName != TaskNameTranscribing {
		t.Fatalf("expected to find entry by id, got %+v ok=%v", entry, ok)
	}
}
