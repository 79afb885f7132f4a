package repository

import "errors"

var (
	// ErrObjectNotFound is returned when an object cannot be found in storage.
	ErrObjectNotFound = errors.New("object not found")

	// ErrBucketNotFound is returned when the specified bucket does not exist.
	ErrBucketNotFound = errors.New("bucket not found")

	// ErrTaskNotFound is returned when no UploadTask exists for (mentor, question).
	ErrTaskNotFound = errors.New("upload task not found")

	// ErrAnswerNotFound is returned when no Answer exists for (mentor, question).
	ErrAnswerNotFound = errors.New("answer not found")
)
