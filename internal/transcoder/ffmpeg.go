package transcoder

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
)

// FFmpegConfig holds configuration for the FFmpeg-backed toolkit.
type FFmpegConfig struct {
	// FFmpegPath is the path to the ffmpeg binary. Empty uses "ffmpeg" from PATH.
	FFmpegPath string
	// FFprobePath is the path to the ffprobe binary. Empty uses "ffprobe" from PATH.
	FFprobePath string
}

// DefaultFFmpegConfig returns sensible defaults, assuming both binaries on PATH.
func DefaultFFmpegConfig() FFmpegConfig {
	return FFmpegConfig{FFmpegPath: "ffmpeg", FFprobePath: "ffprobe"}
}

// FFmpegToolkit implements Toolkit using the ffmpeg/ffprobe CLIs, following
// the teacher's exec.CommandContext + validated-input-path pattern
// (internal/transcoder/ffmpeg.go in hszk-dev-gostream).
type FFmpegToolkit struct {
	cfg FFmpegConfig
}

var _ Toolkit = (*FFmpegToolkit)(nil)

func NewFFmpegToolkit(cfg FFmpegConfig) *FFmpegToolkit {
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = "ffmpeg"
	}
	if cfg.FFprobePath == "" {
		cfg.FFprobePath = "ffprobe"
	}
	return &FFmpegToolkit{cfg: cfg}
}

func (t *FFmpegToolkit) validateInput(src string) error {
	info, err := os.Stat(src)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("input file does not exist: %s", src)
		}
		return fmt.Errorf("failed to access input file: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("input path is a directory, expected a file: %s", src)
	}
	return nil
}

func (t *FFmpegToolkit) run(ctx context.Context, args []string) error {
	cmd := exec.CommandContext(ctx, t.cfg.FFmpegPath, args...)
	cmd.Stdout = nil
	cmd.Stderr = nil
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("ffmpeg cancelled: %w", ctx.Err())
		}
		return fmt.Errorf("ffmpeg execution failed: %w", err)
	}
	return nil
}

// Trim re-encodes [startS, endS) with H.264 CRF 30 (spec.md §4.1).
// Timestamps are formatted to millisecond resolution (three decimals).
func (t *FFmpegToolkit) Trim(ctx context.Context, src, dst string, startS, endS float64) error {
	if err := t.validateInput(src); err != nil {
		return err
	}
	if endS <= startS {
		return fmt.Errorf("trim: end (%.3f) must be greater than start (%.3f)", endS, startS)
	}
	args := []string{
		"-y",
		"-i", src,
		"-ss", formatSeconds(startS),
		"-to", formatSeconds(endS),
		"-c:v", "libx264",
		"-crf", "30",
		"-loglevel", "quiet",
		dst,
	}
	return t.run(ctx, args)
}

func formatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'f', 3, 64)
}

// cropScaleArgs builds the -filter:v crop+scale expression shared by
// EncodeWeb and EncodeMobile, grounded on media_tools.py's
// video_encode_for_web / video_encode_for_mobile crop arithmetic.
func cropScaleArgs(cropW, cropH float64, outW, outH int) []string {
	filter := fmt.Sprintf("crop=iw-%.0f:ih-%.0f,scale=%d:%d", cropW, cropH, outW, outH)
	return []string{
		"-y",
		"-filter:v", filter,
		"-c:v", "libx264",
		"-crf", "23",
		"-pix_fmt", "yuv420p",
		"-movflags", "+faststart",
		"-c:a", "aac",
		"-ac", "1",
		"-loglevel", "quiet",
	}
}

// EncodeWeb crops to 16:9 and scales the longest edge to at most 720px
// (spec.md §4.1), grounded on media_tools.py's video_encode_for_web.
func (t *FFmpegToolkit) EncodeWeb(ctx context.Context, src, dst string) error {
	if err := t.validateInput(src); err != nil {
		return err
	}
	iw, ih, err := t.ProbeDims(ctx, src)
	if err != nil {
		return err
	}
	const targetAspect = 16.0 / 9.0
	// The output is always 16:9 landscape, so its width is the longest edge;
	// capping the height at 720/(16/9) keeps that width within 720px.
	const maxLongEdge = 720
	maxHeight := int(maxLongEdge / targetAspect)

	var cropW, cropH float64
	var outH int
	iAspect := float64(iw) / float64(ih)
	if iAspect >= targetAspect {
		cropW = float64(iw) - float64(ih)*targetAspect
		outH = minInt(maxHeight, ih)
	} else {
		cropH = float64(ih) - float64(iw)*(1.0/targetAspect)
		outH = minInt(maxHeight, int(float64(iw)*(1.0/targetAspect)))
	}
	outW := int(float64(outH) * targetAspect)
	if outW%2 != 0 {
		outW++
	}
	if outH%2 != 0 {
		outH++
	}

	args := append([]string{"-i", src}, cropScaleArgs(cropW, cropH, outW, outH)...)
	args = append(args, dst)
	return t.run(ctx, args)
}

// EncodeMobile crops to a centered square, zooming in 25% top/bottom when
// the source is landscape, then scales to 480x480 (spec.md §4.1),
// grounded on media_tools.py's video_encode_for_mobile.
func (t *FFmpegToolkit) EncodeMobile(ctx context.Context, src, dst string) error {
	if err := t.validateInput(src); err != nil {
		return err
	}
	iw, ih, err := t.ProbeDims(ctx, src)
	if err != nil {
		return err
	}
	const targetSize = 480

	var cropW, cropH float64
	if iw > ih {
		cropH = float64(ih) * 0.25
		cropW = float64(iw) - (float64(ih) - cropH)
	} else if ih > iw {
		cropH = float64(ih - iw)
	}

	args := append([]string{"-i", src}, cropScaleArgs(cropW, cropH, targetSize, targetSize)...)
	args = append(args, dst)
	return t.run(ctx, args)
}

// ExtractAudio produces an MP3 at source quality (spec.md §4.1), grounded
// on media_tools.py's video_to_audio.
func (t *FFmpegToolkit) ExtractAudio(ctx context.Context, src, dst string) (string, error) {
	if err := t.validateInput(src); err != nil {
		return "", err
	}
	if dst == "" {
		dst = deriveMP3Path(src)
	}
	args := []string{"-y", "-i", src, "-loglevel", "quiet", dst}
	if err := t.run(ctx, args); err != nil {
		return "", err
	}
	return dst, nil
}

func deriveMP3Path(src string) string {
	for i := len(src) - 1; i >= 0 && src[i] != '/'; i-- {
		if src[i] == '.' {
			return src[:i] + ".mp3"
		}
	}
	return src + ".mp3"
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
