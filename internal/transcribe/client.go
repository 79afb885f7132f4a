// Package transcribe wraps AWS Transcribe to request subtitle generation
// for the "transcribe" stage (spec.md §4.5), grounded on
// other_examples' sgtr-aws-transcribe.go use of the AWS transcription
// API and job-status polling loop.
package transcribe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/transcribe"
	"github.com/aws/aws-sdk-go-v2/service/transcribe/types"
	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/mentorpal/mentor-upload-service/internal/apperror"
)

// ClientConfig holds the transcription client's settings. It has no
// environment bindings of its own: cmd/worker fills it from the
// STATIC_AWS_* object-store configuration, so the credentials are supplied
// explicitly rather than inherited from the process's ambient AWS identity.
type ClientConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	OutputBucket    string
	PollInterval    time.Duration
	JobTimeout      time.Duration
}

// Request is one transcription job: the S3 key of an already-uploaded
// audio file, and whether WebVTT subtitles should also be produced.
type Request struct {
	AudioBucket      string
	AudioKey         string
	GenerateSubtitles bool
}

// Result is the job's output: the plain transcript text and, when
// requested and produced, the contents of a WebVTT subtitle file.
type Result struct {
	Transcript string
	Subtitles  string
}

// Client submits and polls AWS Transcribe jobs.
type Client struct {
	svc *transcribe.Client
	cfg ClientConfig
}

func NewClient(ctx context.Context, cfg ClientConfig) (*Client, error) {
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 2500 * time.Millisecond
	}
	if cfg.JobTimeout == 0 {
		cfg.JobTimeout = 15 * time.Minute
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID, cfg.SecretAccessKey, "",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return &Client{svc: transcribe.NewFromConfig(awsCfg), cfg: cfg}, nil
}

// Transcribe starts a transcription job against req.AudioKey, polls until
// it reaches a terminal state, and reads back the transcript (and
// subtitles, if requested and produced).
func (c *Client) Transcribe(ctx context.Context, req Request) (Result, error) {
	jobName := "mentor-upload-" + uuid.NewString()
	mediaURI := fmt.Sprintf("s3://%s/%s", req.AudioBucket, req.AudioKey)

	input := &transcribe.StartTranscriptionJobInput{
		TranscriptionJobName: aws.String(jobName),
		LanguageCode:         types.LanguageCodeEnUs,
		Media:                &types.Media{MediaFileUri: aws.String(mediaURI)},
		MediaFormat:          types.MediaFormatMp3,
		OutputBucketName:     aws.String(c.cfg.OutputBucket),
	}
	if req.GenerateSubtitles {
		input.Subtitles = &types.Subtitles{Formats: []types.SubtitleFormat{types.SubtitleFormatVtt}}
	}

	if _, err := c.svc.StartTranscriptionJob(ctx, input); err != nil {
		return Result{}, apperror.Transcribe("start transcription job", err)
	}

	job, err := c.pollUntilDone(ctx, jobName)
	if err != nil {
		return Result{}, err
	}
	if job.TranscriptionJobStatus == types.TranscriptionJobStatusFailed {
		reason := ""
		if job.FailureReason != nil {
			reason = *job.FailureReason
		}
		return Result{}, apperror.Transcribe("transcription job failed", fmt.Errorf("%s", reason))
	}

	var result Result
	if job.Transcript != nil && job.Transcript.TranscriptFileUri != nil {
		transcript, err := fetchTranscript(ctx, *job.Transcript.TranscriptFileUri)
		if err != nil {
			return Result{}, apperror.Transcribe("fetch transcript", err)
		}
		result.Transcript = transcript
	}
	if job.Subtitles != nil && len(job.Subtitles.SubtitleFileUris) > 0 {
		vtt, err := fetchBody(ctx, job.Subtitles.SubtitleFileUris[0])
		if err != nil {
			return Result{}, apperror.Transcribe("fetch subtitles", err)
		}
		result.Subtitles = vtt
	}
	return result, nil
}

func (c *Client) pollUntilDone(ctx context.Context, jobName string) (*types.TranscriptionJob, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.JobTimeout)
	defer cancel()

	var job *types.TranscriptionJob
	op := func() error {
		out, err := c.svc.GetTranscriptionJob(ctx, &transcribe.GetTranscriptionJobInput{
			TranscriptionJobName: aws.String(jobName),
		})
		if err != nil {
			return backoff.Permanent(fmt.Errorf("get transcription job: %w", err))
		}
		status := out.TranscriptionJob.TranscriptionJobStatus
		if status == types.TranscriptionJobStatusInProgress || status == types.TranscriptionJobStatusQueued {
			job = out.TranscriptionJob
			return fmt.Errorf("job %s still %s", jobName, status)
		}
		job = out.TranscriptionJob
		return nil
	}

	bo := backoff.NewConstantBackOff(c.cfg.PollInterval)
	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		return nil, apperror.Transcribe("poll transcription job", err)
	}
	return job, nil
}

func fetchTranscript(ctx context.Context, uri string) (string, error) {
	body, err := fetchBody(ctx, uri)
	if err != nil {
		return "", err
	}
	var payload struct {
		Results struct {
			Transcripts []struct {
				Transcript string `json:"transcript"`
			} `json:"transcripts"`
		} `json:"results"`
	}
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		return "", fmt.Errorf("decode transcript json: %w", err)
	}
	if len(payload.Results.Transcripts) == 0 {
		return "", nil
	}
	return payload.Results.Transcripts[0].Transcript, nil
}

func fetchBody(ctx context.Context, uri string) (string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return "", err
	}
	resp, err := http.DefaultClient.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d fetching %s", resp.StatusCode, uri)
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
