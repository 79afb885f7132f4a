// Package transcoder wraps an external ffmpeg/ffprobe binary to implement
// C1's media toolkit (spec.md §4.1): trim, encode-for-web,
// encode-for-mobile, extract-audio, probe duration/dimensions, and
// WebVTT synthesis from a plain transcript.
package transcoder

import "context"

// Toolkit is the full operation set of C1. It generalizes the teacher's
// narrower Transcoder interface (which only exposed TranscodeToHLS) to the
// seven operations spec.md §4.1 requires, so C5 stage workers can mock one
// seam instead of several.
type Toolkit interface {
	// Trim re-encodes the closed-open interval [startS, endS) of src into
	// dst using H.264 CRF 30. Fails if src is missing or endS <= startS.
	Trim(ctx context.Context, src, dst string, startS, endS float64) error

	// EncodeWeb crops to 16:9, scales the longest edge to at most 720px,
	// and encodes H.264 CRF 23 / yuv420p / faststart / AAC mono.
	EncodeWeb(ctx context.Context, src, dst string) error

	// EncodeMobile crops to a centered square (25% top-bottom zoom when
	// landscape), scales to 480x480, same codec parameters as EncodeWeb.
	EncodeMobile(ctx context.Context, src, dst string) error

	// ExtractAudio produces an MP3 at source quality, returning the
	// output path (dst, or a derived default when dst is empty).
	ExtractAudio(ctx context.Context, src, dst string) (string, error)

	// ProbeDuration returns the duration of path in seconds, or -1 if no
	// video/audio track is present.
	ProbeDuration(ctx context.Context, path string) (float64, error)

	// ProbeDims returns (width, height), or (-1,-1) if absent.
	ProbeDims(ctx context.Context, path string) (int, int, error)

	// TranscriptToVTT synthesizes a WebVTT file at vttDst by partitioning
	// transcript into cues sized against the duration of srcMedia. When
	// the probed duration is <= 0, writes nothing and returns nil.
	TranscriptToVTT(ctx context.Context, srcMedia, vttDst, transcript string) error
}
