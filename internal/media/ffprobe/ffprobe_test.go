package ffprobe

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestResultHelpers(t *testing.T) {
	result := Result{
		Streams: []Stream{
			{CodecType: "audio"},
			{CodecType: "video", Width: 1920, Height: 1080, Duration: "99.5"},
		},
		Format: Format{Duration: "123.45"},
	}
	if result.DurationSeconds() != 123.45 {
		t.Fatalf("unexpected duration: %v", result.DurationSeconds())
	}
	w, h := result.Dimensions()
	if w != 1920 || h != 1080 {
		t.Fatalf("unexpected dimensions: %dx%d", w, h)
	}
}

func TestDurationFallsBackToStream(t *testing.T) {
	result := Result{
		Streams: []Stream{{CodecType: "video", Duration: "42"}},
		Format:  Format{Duration: "N/A"},
	}
	if result.DurationSeconds() != 42 {
		t.Fatalf("unexpected duration: %v", result.DurationSeconds())
	}
}

func TestResultHelpersHandleMissingVideo(t *testing.T) {
	result := Result{Format: Format{Duration: "bad"}}
	if result.DurationSeconds() != 0 {
		t.Fatalf("expected duration 0, got %v", result.DurationSeconds())
	}
	if w, h := result.Dimensions(); w != 0 || h != 0 {
		t.Fatalf("expected no dimensions, got %dx%d", w, h)
	}
}

func TestInspectWithRunner(t *testing.T) {
	var gotArgs []string
	run := func(_ context.Context, name string, args ...string) ([]byte, error) {
		if name != "ffprobe" {
			t.Fatalf("unexpected binary %q", name)
		}
		gotArgs = args
		return []byte(`{"streams":[{"codec_type":"video","width":640,"height":360}],"format":{"duration":"10.0"}}`), nil
	}
	result, err := InspectWith(context.Background(), run, "", "/tmp/clip.mp4")
	if err != nil {
		t.Fatalf("InspectWith: %v", err)
	}
	if gotArgs[len(gotArgs)-1] != "/tmp/clip.mp4" || gotArgs[len(gotArgs)-2] != "--" {
		t.Fatalf("path must follow --: %v", gotArgs)
	}
	if result.DurationSeconds() != 10 {
		t.Fatalf("duration = %v", result.DurationSeconds())
	}
}

func TestInspectWithErrors(t *testing.T) {
	if _, err := InspectWith(context.Background(), ExecRunner, "", " "); err == nil {
		t.Fatal("expected empty path error")
	}
	failing := func(context.Context, string, ...string) ([]byte, error) {
		return []byte("No such file"), errors.New("exit status 1")
	}
	_, err := InspectWith(context.Background(), failing, "ffprobe", "missing.mp4")
	if err == nil || !strings.Contains(err.Error(), "No such file") {
		t.Fatalf("expected tool output in error, got %v", err)
	}
	garbage := func(context.Context, string, ...string) ([]byte, error) { return []byte("not json"), nil }
	if _, err := InspectWith(context.Background(), garbage, "ffprobe", "clip.mp4"); err == nil {
		t.Fatal("expected parse error")
	}
}
