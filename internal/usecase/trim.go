package usecase

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/mentorpal/mentor-upload-service/internal/domain/model"
	"github.com/mentorpal/mentor-upload-service/internal/domain/repository"
	"github.com/mentorpal/mentor-upload-service/internal/objectkey"
	"github.com/mentorpal/mentor-upload-service/internal/transcoder"
)

// TrimRunner implements the "trim-upload" stage's existing-answer trim
// (spec.md §4.5, distinct from the dispatcher's ingestion-time trim): it
// consumes TrimJob messages published by the coordinator's
// trim_existing_upload endpoint, never the ingestion fan-out Job.
type TrimRunner struct {
	toolkit       transcoder.Toolkit
	storage       repository.ObjectStorage
	metadata      repository.MetadataClient
	staticURLBase string
	workDirRoot   string
}

func NewTrimRunner(toolkit transcoder.Toolkit, storage repository.ObjectStorage, metadata repository.MetadataClient, staticURLBase, workDirRoot string) *TrimRunner {
	return &TrimRunner{toolkit: toolkit, storage: storage, metadata: metadata, staticURLBase: staticURLBase, workDirRoot: workDirRoot}
}

// Handle runs one TrimJob to completion, reporting IN_PROGRESS/DONE/FAILED
// against job.TaskID the same way the common C5 shell does.
func (r *TrimRunner) Handle(ctx context.Context, job repository.TrimJob) error {
	if err := r.statusUpdate(ctx, job, model.StatusInProgress, repository.TaskPatch{}); err != nil {
		return fmt.Errorf("mark in progress: %w", err)
	}

	workDir := filepath.Join(r.workDirRoot, "trim-upload", job.MentorID+"-"+job.QuestionID)
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		_ = r.statusUpdate(ctx, job, model.StatusFailed, repository.TaskPatch{})
		return fmt.Errorf("create work dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	patch, err := r.do(ctx, workDir, job)
	if err != nil {
		_ = r.statusUpdate(ctx, job, model.StatusFailed, repository.TaskPatch{})
		return fmt.Errorf("trim-upload failed: %w", err)
	}

	return r.statusUpdate(ctx, job, model.StatusDone, patch)
}

func (r *TrimRunner) statusUpdate(ctx context.Context, job repository.TrimJob, status model.TaskStatus, patch repository.TaskPatch) error {
	patch.Status = status.String()
	return r.metadata.UploadTaskStatusUpdate(ctx, job.MentorID, job.QuestionID, job.TaskID, patch)
}

func (r *TrimRunner) do(ctx context.Context, workDir string, job repository.TrimJob) (repository.TaskPatch, error) {
	current, err := r.metadata.FetchAnswerTranscriptAndMedia(ctx, job.MentorID, job.QuestionID)
	if err != nil {
		return repository.TaskPatch{}, fmt.Errorf("fetch answer: %w", err)
	}

	webPatch, err := r.trimRendition(ctx, workDir, job, "web.mp4", model.MediaTagWeb, objectkey.Web)
	if err != nil {
		return repository.TaskPatch{}, err
	}
	mobilePatch, err := r.trimRendition(ctx, workDir, job, "mobile.mp4", model.MediaTagMobile, objectkey.Mobile)
	if err != nil {
		return repository.TaskPatch{}, err
	}
	media := []repository.AnswerMediaPatch{webPatch, mobilePatch}

	result := repository.TaskPatch{Media: media}

	if !current.HasEditedTranscript {
		vttMedia, ok := findMedia(current.Media, "subtitles", "en")
		if ok {
			trimmedVTT, transcript, err := r.trimVTT(ctx, workDir, job, vttMedia)
			if err != nil {
				return repository.TaskPatch{}, err
			}
			result.Media = append(result.Media, trimmedVTT)
			result.Transcript = &transcript
		}
	}
	return result, nil
}

func (r *TrimRunner) trimRendition(ctx context.Context, workDir string, job repository.TrimJob, fileName string, tag model.MediaTag, keyFn func(mentor, question string) string) (repository.AnswerMediaPatch, error) {
	key := keyFn(job.MentorID, job.QuestionID)
	src := filepath.Join(workDir, "src-"+fileName)
	dst := filepath.Join(workDir, "trimmed-"+fileName)

	if err := r.download(ctx, key, src); err != nil {
		return repository.AnswerMediaPatch{}, fmt.Errorf("download %s: %w", fileName, err)
	}
	if err := r.toolkit.Trim(ctx, src, dst, job.StartS, job.EndS); err != nil {
		return repository.AnswerMediaPatch{}, fmt.Errorf("trim %s: %w", fileName, err)
	}

	file, err := os.Open(dst)
	if err != nil {
		return repository.AnswerMediaPatch{}, fmt.Errorf("open trimmed %s: %w", fileName, err)
	}
	defer file.Close()
	if err := r.storage.Put(ctx, key, file, "video/mp4"); err != nil {
		return repository.AnswerMediaPatch{}, fmt.Errorf("upload trimmed %s: %w", fileName, err)
	}

	return repository.AnswerMediaPatch{Type: string(model.MediaTypeVideo), Tag: string(tag), URL: objectkey.URL(r.staticURLBase, key)}, nil
}

// trimVTT restricts cues to [start,end], shifts remaining cue timestamps by
// -start, and emits the concatenation of retained cue texts as the new
// transcript (spec.md §9's resolution of trim_vtt_and_transcript_via_timestamps).
func (r *TrimRunner) trimVTT(ctx context.Context, workDir string, job repository.TrimJob, existing repository.AnswerMediaPatch) (repository.AnswerMediaPatch, string, error) {
	src := filepath.Join(workDir, "src-en.vtt")
	if err := r.download(ctx, objectkey.VTT(job.MentorID, job.QuestionID), src); err != nil {
		return repository.AnswerMediaPatch{}, "", fmt.Errorf("download vtt: %w", err)
	}
	raw, err := os.ReadFile(src)
	if err != nil {
		return repository.AnswerMediaPatch{}, "", fmt.Errorf("read vtt: %w", err)
	}

	cues := parseVTTCues(string(raw))
	var retained []string
	var builder strings.Builder
	for _, cue := range cues {
		if cue.start < job.StartS || cue.end > job.EndS {
			continue
		}
		cue.start -= job.StartS
		cue.end -= job.StartS
		retained = append(retained, transcoder.RenderVTTCue(cue.start, cue.end, cue.text))
		if builder.Len() > 0 {
			builder.WriteByte(' ')
		}
		builder.WriteString(cue.text)
	}

	dst := filepath.Join(workDir, "trimmed-en.vtt")
	content := "WEBVTT FILE:\n\n" + strings.Join(retained, "\n\n")
	if err := os.WriteFile(dst, []byte(content), 0o644); err != nil {
		return repository.AnswerMediaPatch{}, "", fmt.Errorf("write trimmed vtt: %w", err)
	}

	file, err := os.Open(dst)
	if err != nil {
		return repository.AnswerMediaPatch{}, "", fmt.Errorf("open trimmed vtt: %w", err)
	}
	defer file.Close()

	key := objectkey.VTT(job.MentorID, job.QuestionID)
	if err := r.storage.Put(ctx, key, file, "text/vtt"); err != nil {
		return repository.AnswerMediaPatch{}, "", fmt.Errorf("upload trimmed vtt: %w", err)
	}

	return repository.AnswerMediaPatch{Type: existing.Type, Tag: existing.Tag, URL: objectkey.URL(r.staticURLBase, key)}, builder.String(), nil
}

func (r *TrimRunner) download(ctx context.Context, key, dst string) error {
	reader, err := r.storage.Get(ctx, key)
	if err != nil {
		return err
	}
	defer reader.Close()

	file, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer file.Close()

	if _, err := io.Copy(file, reader); err != nil {
		return err
	}
	return nil
}

func findMedia(media []repository.AnswerMediaPatch, mediaType, tag string) (repository.AnswerMediaPatch, bool) {
	for _, m := range media {
		if m.Type == mediaType && m.Tag == tag {
			return m, true
		}
	}
	return repository.AnswerMediaPatch{}, false
}

type vttCue struct {
	start, end float64
	text       string
}

// parseVTTCues parses the cue blocks emitted by transcoder.RenderVTT: a
// "WEBVTT FILE:" header followed by blank-line-separated
// "MM:SS.mmm --> MM:SS.mmm\ntext" blocks.
func parseVTTCues(raw string) []vttCue {
	var cues []vttCue
	scanner := bufio.NewScanner(strings.NewReader(raw))
	var cur *vttCue
	var textLines []string
	flush := func() {
		if cur != nil {
			cur.text = strings.TrimSpace(strings.Join(textLines, " "))
			cues = append(cues, *cur)
		}
		cur = nil
		textLines = nil
	}
	for scanner.Scan() {
		line := scanner.Text()
		if strings.Contains(line, "-->") {
			flush()
			start, end, ok := parseCueTiming(line)
			if !ok {
				continue
			}
			cur = &vttCue{start: start, end: end}
			continue
		}
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "WEBVTT") {
			continue
		}
		if cur != nil {
			textLines = append(textLines, line)
		}
	}
	flush()
	return cues
}

func parseCueTiming(line string) (float64, float64, bool) {
	parts := strings.SplitN(line, "-->", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	start, ok1 := parseTimestamp(strings.TrimSpace(parts[0]))
	end, ok2 := parseTimestamp(strings.TrimSpace(parts[1]))
	return start, end, ok1 && ok2
}

func parseTimestamp(ts string) (float64, bool) {
	var m, s, ms int
	if _, err := fmt.Sscanf(ts, "%d:%d.%d", &m, &s, &ms); err != nil {
		return 0, false
	}
	return float64(m*60+s) + float64(ms)/1000, true
}
