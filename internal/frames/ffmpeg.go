package frames

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"stepwise/internal/media/ffprobe"
)

// FFmpegConfig names the binaries FFmpegVideo shells out to.
type FFmpegConfig struct {
	FFmpegBinary  string
	FFprobeBinary string
	// Runner replaces os/exec, mainly in tests.
	Runner ffprobe.Runner
}

// FFmpegVideo is a Video backed by a local media file. Seeks complete
// synchronously; frames are decoded by ffmpeg at the current position.
type FFmpegVideo struct {
	path     string
	ffmpeg   string
	run      ffprobe.Runner
	duration float64
	width    int
	height   int

	mu       sync.Mutex
	position float64
	detached bool
}

// OpenFFmpegVideo probes path and returns a ready handle.
func OpenFFmpegVideo(ctx context.Context, path string, cfg FFmpegConfig) (*FFmpegVideo, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("open video: %w", ErrSourceUnavailable)
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("open video: %w: %w", ErrSourceUnavailable, err)
	}
	probeRun, frameRun := cfg.Runner, cfg.Runner
	if probeRun == nil {
		probeRun, frameRun = ffprobe.ExecRunner, stdoutRunner
	}
	probe, err := ffprobe.InspectWith(ctx, probeRun, cfg.FFprobeBinary, path)
	if err != nil {
		return nil, fmt.Errorf("open video: %w", err)
	}
	if _, ok := probe.VideoStream(); !ok {
		return nil, fmt.Errorf("open video: %s has no video stream", path)
	}
	width, height := probe.Dimensions()
	ffmpeg := strings.TrimSpace(cfg.FFmpegBinary)
	if ffmpeg == "" {
		ffmpeg = "ffmpeg"
	}
	return &FFmpegVideo{
		path:     path,
		ffmpeg:   ffmpeg,
		run:      frameRun,
		duration: probe.DurationSeconds(),
		width:    width,
		height:   height,
	}, nil
}

// Path returns the source file.
func (v *FFmpegVideo) Path() string { return v.path }

// DurationSeconds returns the probed length.
func (v *FFmpegVideo) DurationSeconds() float64 { return v.duration }

// Size returns the probed frame dimensions.
func (v *FFmpegVideo) Size() (int, int) { return v.width, v.height }

// Ready reports whether the handle is attached and the file still exists.
func (v *FFmpegVideo) Ready() bool {
	v.mu.Lock()
	detached := v.detached
	v.mu.Unlock()
	if detached {
		return false
	}
	_, err := os.Stat(v.path)
	return err == nil
}

// Detach simulates losing the handle; Ready reports false afterwards.
func (v *FFmpegVideo) Detach() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.detached = true
}

// CurrentTime returns the playback position in seconds.
func (v *FFmpegVideo) CurrentTime() float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.position
}

// stdoutRunner keeps stderr out of the image stream.
func stdoutRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return out, nil
}

var closedSeek = func() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

// endMargin keeps seeks short of the end; ffmpeg writes no frame when -ss
// lands exactly on the duration.
const endMargin = 0.1

// Seek moves the position, clamped into the file. It completes immediately.
func (v *FFmpegVideo) Seek(target float64) (<-chan struct{}, func()) {
	if v.duration > 0 && target > v.duration-endMargin {
		target = v.duration - endMargin
	}
	if target < 0 {
		target = 0
	}
	v.mu.Lock()
	v.position = target
	v.mu.Unlock()
	return closedSeek, func() {}
}

// Frame decodes the frame at the current position.
func (v *FFmpegVideo) Frame(ctx context.Context) (image.Image, error) {
	if !v.Ready() {
		return nil, ErrSourceUnavailable
	}
	position := v.CurrentTime()
	output, err := v.run(ctx, v.ffmpeg,
		"-v", "error",
		"-ss", strconv.FormatFloat(position, 'f', 3, 64),
		"-i", v.path,
		"-frames:v", "1",
		"-f", "image2pipe",
		"-c:v", "png",
		"-",
	)
	if err != nil {
		return nil, fmt.Errorf("ffmpeg frame: %w", err)
	}
	if len(output) == 0 {
		return nil, errors.New("ffmpeg frame: no image data")
	}
	img, err := png.Decode(bytes.NewReader(output))
	if err != nil {
		return nil, fmt.Errorf("ffmpeg frame: decode png: %w", err)
	}
	return img, nil
}

var _ Video = (*FFmpegVideo)(nil)
