package media

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// ProbeResult is the part of ffprobe's report the pipeline uses.
type ProbeResult struct {
	HasVideo        bool
	DurationSeconds float64
	Width           int
	Height          int
}

// VideoTool inspects and converts video files.
type VideoTool interface {
	Probe(ctx context.Context, path string) (ProbeResult, error)
	// Frame writes a single JPEG frame taken at offset, scaled into a
	// box×box bounding box.
	Frame(ctx context.Context, src, dst string, offset time.Duration, box int) error
	// Transcode writes an H.264/AAC MP4 copy of src.
	Transcode(ctx context.Context, src, dst string) error
}

// FFmpeg runs the ffprobe and ffmpeg binaries. Every invocation is bounded
// by Timeout and the process is killed when it expires.
type FFmpeg struct {
	FFmpegPath  string
	FFprobePath string
	Timeout     time.Duration
}

func NewFFmpeg(ffmpegPath, ffprobePath string, timeout time.Duration) *FFmpeg {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &FFmpeg{FFmpegPath: ffmpegPath, FFprobePath: ffprobePath, Timeout: timeout}
}

type probeOutput struct {
	Streams []struct {
		CodecType string `json:"codec_type"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

func (f *FFmpeg) Probe(ctx context.Context, path string) (ProbeResult, error) {
	out, err := f.run(ctx, f.FFprobePath,
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)
	if err != nil {
		return ProbeResult{}, err
	}

	var parsed probeOutput
	if err := json.Unmarshal(out, &parsed); err != nil {
		return ProbeResult{}, fmt.Errorf("parse ffprobe output: %w", err)
	}

	var res ProbeResult
	for _, s := range parsed.Streams {
		if s.CodecType == "video" {
			res.HasVideo = true
			res.Width, res.Height = s.Width, s.Height
			break
		}
	}
	if parsed.Format.Duration != "" {
		if d, err := strconv.ParseFloat(parsed.Format.Duration, 64); err == nil {
			res.DurationSeconds = d
		}
	}
	return res, nil
}

func (f *FFmpeg) Frame(ctx context.Context, src, dst string, offset time.Duration, box int) error {
	_, err := f.run(ctx, f.FFmpegPath,
		"-y",
		"-ss", strconv.FormatFloat(offset.Seconds(), 'f', 3, 64),
		"-i", src,
		"-frames:v", "1",
		"-vf", fmt.Sprintf("scale=w=%d:h=%d:force_original_aspect_ratio=decrease", box, box),
		dst,
	)
	return err
}

func (f *FFmpeg) Transcode(ctx context.Context, src, dst string) error {
	_, err := f.run(ctx, f.FFmpegPath,
		"-y",
		"-i", src,
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-crf", "23",
		"-c:a", "aac",
		"-movflags", "+faststart",
		dst,
	)
	return err
}

const maxToolStderr = 2048

func (f *FFmpeg) run(ctx context.Context, bin string, args ...string) ([]byte, error) {
	execCtx, cancel := context.WithTimeout(ctx, f.Timeout)
	defer cancel()

	cmd := exec.CommandContext(execCtx, bin, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return stdout.Bytes(), nil
	}
	if errors.Is(execCtx.Err(), context.DeadlineExceeded) {
		return nil, fmt.Errorf("%s killed after %s: %w", bin, f.Timeout, ErrToolTimeout)
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	msg := strings.TrimSpace(stderr.String())
	if len(msg) > maxToolStderr {
		msg = msg[len(msg)-maxToolStderr:]
	}
	if msg != "" {
		return nil, fmt.Errorf("%s: %w: %s", bin, err, msg)
	}
	return nil, fmt.Errorf("%s: %w", bin, err)
}
