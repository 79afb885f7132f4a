package transcoder

import (
	"context"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	ffprobe "gopkg.in/vansante/go-ffprobe.v2"
)

// ProbeDuration returns the duration of path in seconds, or -1 if no
// video/audio stream reports one (spec.md §4.1). Retries transient ffprobe
// failures with exponential backoff, grounded on livepeer-catalyst-api's
// video/probe.go Probe.runProbe.
func (t *FFmpegToolkit) ProbeDuration(ctx context.Context, path string) (float64, error) {
	data, err := t.probe(ctx, path)
	if err != nil {
		return -1, err
	}
	if data.Format != nil && data.Format.DurationSeconds > 0 {
		return data.Format.DurationSeconds, nil
	}
	for _, s := range data.Streams {
		if s.Duration == "" {
			continue
		}
		if d, perr := strconv.ParseFloat(s.Duration, 64); perr == nil && d > 0 {
			return d, nil
		}
	}
	return -1, nil
}

// ProbeDims returns (width, height) of the first video stream, or (-1, -1)
// if none is present (spec.md §4.1).
func (t *FFmpegToolkit) ProbeDims(ctx context.Context, path string) (int, int, error) {
	data, err := t.probe(ctx, path)
	if err != nil {
		return -1, -1, err
	}
	stream := data.FirstVideoStream()
	if stream == nil || stream.Width == 0 || stream.Height == 0 {
		return -1, -1, nil
	}
	return stream.Width, stream.Height, nil
}

func (t *FFmpegToolkit) probe(ctx context.Context, path string) (*ffprobe.ProbeData, error) {
	if err := t.validateInput(path); err != nil {
		return nil, err
	}

	opts := []string{"-loglevel", "error"}
	if t.cfg.FFprobePath != "" && t.cfg.FFprobePath != "ffprobe" {
		ffprobe.SetFFProbeBinPath(t.cfg.FFprobePath)
	}

	var data *ffprobe.ProbeData
	var err error
	operation := func() error {
		probeCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		data, err = ffprobe.ProbeURL(probeCtx, path, opts...)
		return err
	}

	backOff := backoff.NewExponentialBackOff()
	backOff.InitialInterval = 500 * time.Millisecond
	backOff.MaxInterval = 2 * time.Second
	if retryErr := backoff.Retry(operation, backoff.WithMaxRetries(backOff, 3)); retryErr != nil {
		return nil, retryErr
	}
	return data, nil
}
