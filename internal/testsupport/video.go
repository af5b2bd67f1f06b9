package testsupport

import (
	"context"
	"errors"
	"image"
	"image/color"
	"sync"
)

// FakeVideo is an in-memory video handle. Seeks either complete at once or,
// when stalled, never signal so the caller's safety timer has to fire.
type FakeVideo struct {
	mu       sync.Mutex
	ready    bool
	stall    bool
	position float64
	width    int
	height   int
	seeks    []float64
	cancels  int
	frames   int
	frameErr error
	onFrame  func(n int)
}

// NewFakeVideo returns a ready 1280x720 video at position 0.
func NewFakeVideo() *FakeVideo {
	return &FakeVideo{ready: true, width: 1280, height: 720}
}

// SetReady toggles whether the handle is usable.
func (v *FakeVideo) SetReady(ready bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.ready = ready
}

// StallSeeks makes future seeks never signal completion.
func (v *FakeVideo) StallSeeks(stall bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.stall = stall
}

// FailFrames makes Frame return err.
func (v *FakeVideo) FailFrames(err error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.frameErr = err
}

// OnFrame runs fn after the n-th frame is grabbed (1-based).
func (v *FakeVideo) OnFrame(fn func(n int)) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.onFrame = fn
}

// Ready implements frames.Video.
func (v *FakeVideo) Ready() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.ready
}

// CurrentTime implements frames.Video.
func (v *FakeVideo) CurrentTime() float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.position
}

// Seek implements frames.Video.
func (v *FakeVideo) Seek(target float64) (<-chan struct{}, func()) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.seeks = append(v.seeks, target)
	v.position = target
	ch := make(chan struct{})
	if !v.stall {
		close(ch)
	}
	return ch, func() {
		v.mu.Lock()
		v.cancels++
		v.mu.Unlock()
	}
}

// Frame implements frames.Video. The image is tinted by the position so
// captures at different timestamps differ.
func (v *FakeVideo) Frame(context.Context) (image.Image, error) {
	v.mu.Lock()
	if !v.ready {
		v.mu.Unlock()
		return nil, errors.New("fake video: not ready")
	}
	if v.frameErr != nil {
		err := v.frameErr
		v.mu.Unlock()
		return nil, err
	}
	v.frames++
	n := v.frames
	hook := v.onFrame
	shade := uint8(int(v.position*10) % 256)
	img := image.NewRGBA(image.Rect(0, 0, v.width, v.height))
	v.mu.Unlock()

	for y := 0; y < img.Bounds().Dy(); y += 8 {
		for x := 0; x < img.Bounds().Dx(); x += 8 {
			img.Set(x, y, color.RGBA{R: shade, G: 128, B: 64, A: 255})
		}
	}
	if hook != nil {
		hook(n)
	}
	return img, nil
}

// Seeks returns every seek target in order.
func (v *FakeVideo) Seeks() []float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]float64(nil), v.seeks...)
}

// Frames returns how many frames were grabbed.
func (v *FakeVideo) Frames() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.frames
}

// Cancels returns how many seek handlers were released.
func (v *FakeVideo) Cancels() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.cancels
}
