package transcoder

import (
	"context"
	"fmt"
	"math"
	"os"
	"strings"
)

const vttChunkSize = 68
const vttCueOffsetSeconds = 0.85

// TranscriptToVTT partitions transcript into chunks of at most 68 characters
// at whitespace boundaries, assigns each chunk a cue by linearly subdividing
// the media's probed duration into ceil(len(transcript)/68) equal intervals
// with a fixed +0.85s offset, and writes the result as WebVTT (spec.md §4.1).
// Writes nothing and returns nil when the probed duration is <= 0.
func (t *FFmpegToolkit) TranscriptToVTT(ctx context.Context, srcMedia, vttDst, transcript string) error {
	duration, err := t.ProbeDuration(ctx, srcMedia)
	if err != nil {
		return err
	}
	if duration <= 0 {
		return nil
	}

	chunks := chunkTranscript(transcript, vttChunkSize)
	if len(chunks) == 0 {
		return nil
	}

	intervals := int(math.Ceil(float64(len(strings.TrimSpace(transcript))) / float64(vttChunkSize)))
	body := RenderVTT(chunks, intervals, duration)
	return os.WriteFile(vttDst, []byte(body), 0o644)
}

// RenderVTT is the pure cue-generation step behind TranscriptToVTT, split
// out so it can be tested without a real media file or ffprobe binary.
// Cue timing subdivides duration into intervals equal parts — the
// ceil(len(transcript)/68) count — independent of len(chunks).
func RenderVTT(chunks []string, intervals int, duration float64) string {
	if intervals < len(chunks) {
		intervals = len(chunks)
	}
	interval := duration / float64(intervals)

	var b strings.Builder
	b.WriteString("WEBVTT FILE:\n\n")
	for i, chunk := range chunks {
		start := float64(i)*interval + vttCueOffsetSeconds
		end := float64(i+1)*interval + vttCueOffsetSeconds
		fmt.Fprintf(&b, "%s --> %s\n%s\n\n", formatCueTimestamp(start), formatCueTimestamp(end), chunk)
	}
	return b.String()
}

// RenderVTTCue renders one "start --> end\ntext" cue block, exported so
// callers trimming an existing VTT by timestamp (rather than synthesizing
// one from a transcript) can reuse the same timestamp formatting.
func RenderVTTCue(startS, endS float64, text string) string {
	return fmt.Sprintf("%s --> %s\n%s", formatCueTimestamp(startS), formatCueTimestamp(endS), text)
}

// chunkTranscript partitions transcript into ceil(len(transcript)/size)
// pieces of at most size characters, cut at whitespace boundaries where
// possible. A whitespace cut is only taken when the remainder still fits
// in the pieces left to emit, so early cuts cannot accumulate into extra
// trailing pieces; with no qualifying whitespace the cut is a hard one at
// the size limit.
func chunkTranscript(transcript string, size int) []string {
	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		return nil
	}

	total := int(math.Ceil(float64(len(transcript)) / float64(size)))
	chunks := make([]string, 0, total)
	remaining := transcript
	for left := total; left > 0 && len(remaining) > 0; left-- {
		if left == 1 || len(remaining) <= size {
			chunks = append(chunks, strings.TrimSpace(remaining))
			break
		}
		cut := size
		floor := len(remaining) - (left-1)*size
		if sp := strings.LastIndexByte(remaining[:size], ' '); sp > 0 && sp >= floor {
			cut = sp
		}
		chunks = append(chunks, strings.TrimSpace(remaining[:cut]))
		remaining = strings.TrimLeft(remaining[cut:], " ")
	}
	return chunks
}

// formatCueTimestamp renders seconds as MM:SS.mmm.
func formatCueTimestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	totalMillis := int64(math.Round(seconds * 1000))
	minutes := totalMillis / 60000
	rem := totalMillis % 60000
	secs := rem / 1000
	millis := rem % 1000
	return fmt.Sprintf("%02d:%02d.%03d", minutes, secs, millis)
}
