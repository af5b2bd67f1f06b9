package frames

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"math"
	"sync"
	"time"

	"stepwise/internal/logging"
)

var (
	// ErrSourceUnavailable aborts a run when the video handle is missing or
	// not ready. Tasks not yet captured keep an empty screenshot.
	ErrSourceUnavailable = errors.New("video source unavailable")
	// ErrAlreadyRunning is returned when the sink refuses a second run.
	ErrAlreadyRunning = errors.New("frame extraction already running")
)

// Video is the playback handle the extractor drives.
type Video interface {
	Ready() bool
	CurrentTime() float64
	// Seek moves the playback position. The returned channel is closed once
	// the seek completes; cancel unregisters interest in it.
	Seek(target float64) (seeked <-chan struct{}, cancel func())
	Frame(ctx context.Context) (image.Image, error)
}

// Target is one task waiting for a screenshot.
type Target struct {
	TaskID           string
	TimestampSeconds float64
}

// Sink receives screenshots. It owns the busy flag and decides which tasks
// are still pending.
type Sink interface {
	BeginExtraction() bool
	PendingScreenshots() []Target
	SetScreenshot(taskID, data string)
	EndExtraction()
}

// Options tunes seeking and encoding.
type Options struct {
	SeekOffset    float64
	SeekTolerance float64
	SeekTimeout   time.Duration
	MaxWidth      int
	Quality       int
	Logger        *slog.Logger
	// After arms the safety timer. Tests replace it to fire on demand.
	After func(d time.Duration) (<-chan time.Time, func())
}

// DefaultOptions mirrors the shipped configuration.
func DefaultOptions() Options {
	return Options{
		SeekOffset:    0.5,
		SeekTolerance: 0.1,
		SeekTimeout:   2 * time.Second,
		MaxWidth:      DefaultMaxWidth,
		Quality:       DefaultQuality,
	}
}

// Result summarises a run.
type Result struct {
	Queued    int
	Captured  int
	Failed    int
	TimedOut  int
	Remaining int
}

// Extractor captures screenshots sequentially from the attached Video.
type Extractor struct {
	opts   Options
	logger *slog.Logger

	mu    sync.Mutex
	video Video
}

// NewExtractor builds an extractor with no video attached.
func NewExtractor(opts Options) *Extractor {
	defaults := DefaultOptions()
	if opts.SeekOffset == 0 {
		opts.SeekOffset = defaults.SeekOffset
	}
	if opts.SeekTolerance <= 0 {
		opts.SeekTolerance = defaults.SeekTolerance
	}
	if opts.SeekTimeout <= 0 {
		opts.SeekTimeout = defaults.SeekTimeout
	}
	if opts.MaxWidth <= 0 {
		opts.MaxWidth = defaults.MaxWidth
	}
	if opts.Quality <= 0 {
		opts.Quality = defaults.Quality
	}
	if opts.After == nil {
		opts.After = func(d time.Duration) (<-chan time.Time, func()) {
			timer := time.NewTimer(d)
			return timer.C, func() { timer.Stop() }
		}
	}
	return &Extractor{
		opts:   opts,
		logger: logging.NewComponentLogger(opts.Logger, "frames"),
	}
}

// Attach sets the video the next item will be captured from.
func (e *Extractor) Attach(video Video) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.video = video
}

// Detach drops the current video handle.
func (e *Extractor) Detach() {
	e.Attach(nil)
}

func (e *Extractor) current() Video {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.video
}

// Run captures every pending screenshot in queue order. The handle is
// checked before each item; losing it aborts the rest of the queue with
// ErrSourceUnavailable. A frame that fails to decode or encode is skipped
// and stays pending for the next run.
func (e *Extractor) Run(ctx context.Context, sink Sink) (Result, error) {
	if !sink.BeginExtraction() {
		return Result{}, ErrAlreadyRunning
	}
	defer sink.EndExtraction()

	queue := sink.PendingScreenshots()
	result := Result{Queued: len(queue)}
	if len(queue) == 0 {
		return result, nil
	}
	e.logger.Info("frame extraction started", logging.Int("queued", len(queue)))

	for i, target := range queue {
		result.Remaining = len(queue) - i
		if err := ctx.Err(); err != nil {
			return result, err
		}
		video := e.current()
		if video == nil || !video.Ready() {
			logging.WarnWithContext(e.logger, "video source lost; extraction aborted", "frames_source_unavailable",
				logging.String(logging.FieldTaskID, target.TaskID),
				logging.Int("remaining", result.Remaining),
				logging.String(logging.FieldErrorHint, "re-select the source video and resume"),
				logging.String(logging.FieldImpact, "remaining tasks keep an empty screenshot"),
			)
			return result, ErrSourceUnavailable
		}

		data, timedOut, err := e.capture(ctx, video, target)
		if timedOut {
			result.TimedOut++
		}
		if err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			result.Failed++
			e.logger.Warn("frame capture failed",
				logging.String(logging.FieldTaskID, target.TaskID),
				logging.Float64("timestamp_seconds", target.TimestampSeconds),
				logging.Error(err),
			)
			continue
		}
		sink.SetScreenshot(target.TaskID, data)
		result.Captured++
	}
	result.Remaining = 0

	e.logger.Info("frame extraction finished",
		logging.Int("captured", result.Captured),
		logging.Int("failed", result.Failed),
		logging.Int("seek_timeouts", result.TimedOut),
	)
	return result, nil
}

func (e *Extractor) capture(ctx context.Context, video Video, target Target) (string, bool, error) {
	position := target.TimestampSeconds + e.opts.SeekOffset
	timedOut := false
	if math.Abs(video.CurrentTime()-position) > e.opts.SeekTolerance {
		var err error
		timedOut, err = e.seek(ctx, video, position)
		if err != nil {
			return "", timedOut, err
		}
	}
	img, err := video.Frame(ctx)
	if err != nil {
		return "", timedOut, fmt.Errorf("grab frame at %.2fs: %w", position, err)
	}
	data, err := Encode(img, e.opts.MaxWidth, e.opts.Quality)
	if err != nil {
		return "", timedOut, err
	}
	return data, timedOut, nil
}

// seek waits for the seek-completed signal or the safety timer, whichever
// comes first. Both are released before returning.
func (e *Extractor) seek(ctx context.Context, video Video, position float64) (bool, error) {
	seeked, cancelSeek := video.Seek(position)
	defer cancelSeek()
	fired, stopTimer := e.opts.After(e.opts.SeekTimeout)
	defer stopTimer()

	select {
	case <-seeked:
		return false, nil
	case <-fired:
		e.logger.Debug("seek event missed; capturing current frame",
			logging.Float64("position", position),
			logging.Duration("timeout", e.opts.SeekTimeout),
		)
		return true, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}
