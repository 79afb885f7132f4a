// Package metadata implements C3 (spec.md §4.3): a typed client for the
// external metadata service, plus a caching decorator in cache.go.
package metadata

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/mentorpal/mentor-upload-service/internal/apperror"
	"github.com/mentorpal/mentor-upload-service/internal/domain/repository"
)

// ClientConfig holds configuration for the metadata client, bound from the
// GRAPHQL_ENDPOINT / API_SECRET environment variables (spec.md §6).
type ClientConfig struct {
	Endpoint string
	APIKey   string
	Timeout  time.Duration
}

// DefaultClientConfig returns a ClientConfig with a 10s request timeout.
func DefaultClientConfig(endpoint, apiKey string) ClientConfig {
	return ClientConfig{Endpoint: endpoint, APIKey: apiKey, Timeout: 10 * time.Second}
}

// Client implements repository.MetadataClient against a GraphQL endpoint,
// structured like the teacher's HTTP-client-wrapping usecases: explicit
// timeout, typed request/response bodies, and retry around the network call.
type Client struct {
	httpClient *http.Client
	cfg        ClientConfig
}

var _ repository.MetadataClient = (*Client)(nil)

func NewClient(cfg ClientConfig) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		cfg:        cfg,
	}
}

type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphqlError struct {
	Message string `json:"message"`
}

type graphqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphqlError  `json:"errors"`
}

// do executes a GraphQL query/mutation with retry around transient network
// failures (cenkalti/backoff/v4, as in livepeer-catalyst-api's probe.go),
// and unmarshals the "data" field into out.
func (c *Client) do(ctx context.Context, query string, variables map[string]any, out any) error {
	body, err := json.Marshal(graphqlRequest{Query: query, Variables: variables})
	if err != nil {
		return apperror.Internal("marshal graphql request", err)
	}

	var respBody []byte
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "bearer "+c.cfg.APIKey)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		if resp.StatusCode >= 500 {
			return fmt.Errorf("metadata service returned %d", resp.StatusCode)
		}
		if resp.StatusCode >= 400 {
			return backoff.Permanent(fmt.Errorf("metadata service returned %d: %s", resp.StatusCode, string(b)))
		}
		respBody = b
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 2), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return apperror.Metadata("graphql request failed", err)
	}

	var parsed graphqlResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return apperror.Metadata("malformed graphql response", err)
	}
	if len(parsed.Errors) > 0 {
		return apperror.Metadata(parsed.Errors[0].Message, nil)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(parsed.Data, out); err != nil {
		return apperror.Metadata("failed to decode graphql data", err)
	}
	return nil
}

func (c *Client) UploadTaskStatusUpdate(ctx context.Context, mentorID, questionID, taskID string, patch repository.TaskPatch) error {
	const mutation = `mutation UploadTaskStatusUpdate($mentor: ID!, $question: ID!, $taskId: String!, $patch: UploadTaskTaskInfoUpdateInputType!) {
		api { uploadTaskStatusUpdate(mentorId: $mentor, questionId: $question, taskId: $taskId, taskInfo: $patch) }
	}`
	vars := map[string]any{"mentor": mentorID, "question": questionID, "taskId": taskID, "patch": patch}
	return c.do(ctx, mutation, vars, nil)
}

func (c *Client) UploadAnswerAndTaskUpdate(ctx context.Context, mentorID, questionID string, answer repository.AnswerPatch, tasks []repository.TaskEntryView) error {
	const mutation = `mutation UploadAnswerAndTaskUpdate($mentor: ID!, $question: ID!, $answer: AnswerUpdateInputType!, $tasks: [UploadTaskEntryInputType!]!) {
		api { uploadAnswerAndTaskUpdate(mentorId: $mentor, questionId: $question, answerInfo: $answer, taskList: $tasks) }
	}`
	vars := map[string]any{"mentor": mentorID, "question": questionID, "answer": answer, "tasks": tasks}
	return c.do(ctx, mutation, vars, nil)
}

func (c *Client) FetchTask(ctx context.Context, mentorID, questionID string) (repository.FetchedTask, error) {
	const query = `query FetchUploadTask($mentor: ID!, $question: ID!) {
		uploadTask(mentorId: $mentor, questionId: $question) { mentorId questionId transcript media { type tag url needsTransfer } tasks { taskName taskId status } }
	}`
	var result struct {
		UploadTask *repository.FetchedTask `json:"uploadTask"`
	}
	if err := c.do(ctx, query, map[string]any{"mentor": mentorID, "question": questionID}, &result); err != nil {
		return repository.FetchedTask{}, err
	}
	if result.UploadTask == nil {
		return repository.FetchedTask{Found: false}, nil
	}
	task := *result.UploadTask
	task.Found = true
	return task, nil
}

func (c *Client) IsUploadInProgress(ctx context.Context, mentorID, questionID string) (bool, error) {
	task, err := c.FetchTask(ctx, mentorID, questionID)
	if err != nil {
		return false, err
	}
	return task.Found, nil
}

func (c *Client) FetchAnswerTranscriptAndMedia(ctx context.Context, mentorID, questionID string) (repository.FetchedAnswer, error) {
	const query = `query FetchAnswer($mentor: ID!, $question: ID!) {
		answer(mentorId: $mentor, questionId: $question) { transcript hasEditedTranscript media { type tag url needsTransfer } }
	}`
	var result struct {
		Answer repository.FetchedAnswer `json:"answer"`
	}
	if err := c.do(ctx, query, map[string]any{"mentor": mentorID, "question": questionID}, &result); err != nil {
		return repository.FetchedAnswer{}, err
	}
	return result.Answer, nil
}

func (c *Client) MediaUpdate(ctx context.Context, mentorID, questionID string, web, mobile, vtt *repository.AnswerMediaPatch) error {
	const mutation = `mutation MediaUpdate($mentor: ID!, $question: ID!, $web: AnswerMediaInputType, $mobile: AnswerMediaInputType, $vtt: AnswerMediaInputType) {
		api { answerMediaUpdate(mentorId: $mentor, questionId: $question, web: $web, mobile: $mobile, subtitles: $vtt) }
	}`
	vars := map[string]any{"mentor": mentorID, "question": questionID, "web": web, "mobile": mobile, "vtt": vtt}
	return c.do(ctx, mutation, vars, nil)
}

func (c *Client) FetchQuestionName(ctx context.Context, questionID string) (string, error) {
	const query = `query FetchQuestionName($question: ID!) { question(id: $question) { name } }`
	var result struct {
		Question struct {
			Name string `json:"name"`
		} `json:"question"`
	}
	if err := c.do(ctx, query, map[string]any{"question": questionID}, &result); err != nil {
		return "", err
	}
	return result.Question.Name, nil
}

func (c *Client) ImportTaskCreate(ctx context.Context, mentorID string) error {
	const mutation = `mutation ImportTaskCreate($mentor: ID!) { api { importTaskCreate(mentorId: $mentor) } }`
	return c.do(ctx, mutation, map[string]any{"mentor": mentorID}, nil)
}

func (c *Client) ImportTaskUpdate(ctx context.Context, mentorID string, graphQLUpdate, s3VideoMigration *string, answer *repository.ImportMediaStatusPatch) error {
	const mutation = `mutation ImportTaskUpdate($mentor: ID!, $graphqlUpdate: String, $s3Migration: String, $answer: ImportAnswerStatusInputType) {
		api { importTaskUpdate(mentorId: $mentor, graphQLUpdate: $graphqlUpdate, s3VideoMigrationStatus: $s3Migration, answerStatus: $answer) }
	}`
	vars := map[string]any{"mentor": mentorID, "graphqlUpdate": graphQLUpdate, "s3Migration": s3VideoMigration, "answer": answer}
	return c.do(ctx, mutation, vars, nil)
}

func (c *Client) MentorImport(ctx context.Context, mentorID, exportJSON, replacedChanges string) (repository.MentorImportResult, error) {
	const mutation = `mutation MentorImport($mentor: ID!, $export: String!, $changes: String!) {
		api { mentorImport(mentorId: $mentor, mentorExportJson: $export, replacedMentorDataChanges: $changes) { needsTransfer { question media { type tag url needsTransfer } } } }
	}`
	var result struct {
		API struct {
			MentorImport repository.MentorImportResult `json:"mentorImport"`
		} `json:"api"`
	}
	vars := map[string]any{"mentor": mentorID, "export": exportJSON, "changes": replacedChanges}
	if err := c.do(ctx, mutation, vars, &result); err != nil {
		return repository.MentorImportResult{}, err
	}
	return result.API.MentorImport, nil
}
