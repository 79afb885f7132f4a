package transcoder

import (
	"math"
	"strings"
	"testing"
)

func TestChunkTranscript_RespectsSizeLimit(t *testing.T) {
	transcript := strings.Repeat("the quick brown fox jumps over the lazy dog ", 5)
	chunks := chunkTranscript(transcript, vttChunkSize)

	for _, c := range chunks {
		if len(c) > vttChunkSize {
			t.Errorf("chunk %q exceeds %d characters (%d)", c, vttChunkSize, len(c))
		}
	}
}

func TestChunkTranscript_Empty(t *testing.T) {
	if chunks := chunkTranscript("   ", vttChunkSize); chunks != nil {
		t.Errorf("expected nil chunks for blank transcript, got %v", chunks)
	}
}

func TestChunkTranscript_CeilCountWithoutWhitespace(t *testing.T) {
	transcript := strings.Repeat("a", 200)
	chunks := chunkTranscript(transcript, vttChunkSize)
	want := int(math.Ceil(float64(len(transcript)) / float64(vttChunkSize)))

	if len(chunks) != want {
		t.Errorf("got %d chunks, want %d", len(chunks), want)
	}
}

func TestChunkTranscript_CeilCountOnWordSpacedText(t *testing.T) {
	sentence := "mentors answer recorded questions so students can hold natural conversations with them later on "
	for _, repeats := range []int{1, 2, 3, 5, 8, 13, 21, 34} {
		transcript := strings.TrimSpace(strings.Repeat(sentence, repeats))
		chunks := chunkTranscript(transcript, vttChunkSize)
		want := int(math.Ceil(float64(len(transcript)) / float64(vttChunkSize)))

		if len(chunks) != want {
			t.Errorf("%d chars: got %d chunks, want %d", len(transcript), len(chunks), want)
		}
		for _, c := range chunks {
			if len(c) > vttChunkSize {
				t.Errorf("%d chars: chunk %q exceeds %d characters", len(transcript), c, vttChunkSize)
			}
		}
	}
}

func TestRenderVTT_Idempotent(t *testing.T) {
	chunks := chunkTranscript("a short transcript about a mentor answering a question in detail", vttChunkSize)

	first := RenderVTT(chunks, len(chunks), 12.5)
	second := RenderVTT(chunks, len(chunks), 12.5)

	if first != second {
		t.Errorf("RenderVTT is not idempotent:\n%s\n---\n%s", first, second)
	}
}

func TestRenderVTT_SubdividesDurationByIntervalCount(t *testing.T) {
	body := RenderVTT([]string{"first cue", "second cue"}, 4, 8.0)

	// 8s across 4 intervals = 2s per cue, shifted by the fixed 0.85s offset.
	if !strings.Contains(body, "00:00.850 --> 00:02.850") {
		t.Errorf("first cue timing wrong:\n%s", body)
	}
	if !strings.Contains(body, "00:02.850 --> 00:04.850") {
		t.Errorf("second cue timing wrong:\n%s", body)
	}
}

func TestRenderVTT_HeaderAndCueFormat(t *testing.T) {
	body := RenderVTT([]string{"hello world"}, 1, 2.0)

	if !strings.HasPrefix(body, "WEBVTT FILE:\n\n") {
		t.Errorf("missing WebVTT header: %q", body)
	}
	if !strings.Contains(body, "-->") {
		t.Errorf("missing cue timestamp arrow: %q", body)
	}
	if !strings.Contains(body, "hello world") {
		t.Errorf("missing cue text: %q", body)
	}
}

func TestFormatCueTimestamp(t *testing.T) {
	tests := []struct {
		seconds float64
		want    string
	}{
		{0, "00:00.000"},
		{0.85, "00:00.850"},
		{65.123, "01:05.123"},
		{-1, "00:00.000"},
	}
	for _, tt := range tests {
		if got := formatCueTimestamp(tt.seconds); got != tt.want {
			t.Errorf("formatCueTimestamp(%v) = %q, want %q", tt.seconds, got, tt.want)
		}
	}
}
