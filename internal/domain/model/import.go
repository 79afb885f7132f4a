package model

// ImportAnswerStatus tracks one answer's media migration within an
// ImportTask's s3_video_migration sub-status (spec.md §3, §4.7).
type ImportAnswerStatus struct {
	QuestionID   string     `json:"question"`
	Status       TaskStatus `json:"status"`
	ErrorMessage string     `json:"errorMessage,omitempty"`
}

// ImportTask is the aggregate for a bulk mentor transfer. It carries two
// independent sub-statuses; s3_video_migration additionally fans out into
// one ImportAnswerStatus per answer being transferred.
type ImportTask struct {
	MentorID         string               `json:"mentor"`
	GraphQLUpdate    TaskStatus           `json:"graphQLUpdate"`
	S3VideoMigration TaskStatus           `json:"s3VideoMigration"`
	Answers          []ImportAnswerStatus `json:"answers"`
}
