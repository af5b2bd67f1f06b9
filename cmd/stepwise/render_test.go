package main

import (
	"bytes"
	"strings"
	"testing"

	"stepwise/internal/recipe"
)

func TestFormatTimestamp(t *testing.T) {
	cases := map[float64]string{
		0:      "0:00",
		5.9:    "0:05",
		65:     "1:05",
		3723.4: "1:02:03",
		-3:     "0:00",
	}
	for in, want := range cases {
		if got := formatTimestamp(in); got != want {
			t.Errorf("formatTimestamp(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestParseSeconds(t *testing.T) {
	cases := map[string]float64{
		"42":      42,
		"1:30":    90,
		"1:02:03": 3723,
		" 7.5 ":   7.5,
	}
	for in, want := range cases {
		got, err := parseSeconds(in)
		if err != nil || got != want {
			t.Errorf("parseSeconds(%q) = %v, %v", in, got, err)
		}
	}
	for _, bad := range []string{"", "-1", "abc", "1:xx"} {
		if _, err := parseSeconds(bad); err == nil {
			t.Errorf("parseSeconds(%q) should fail", bad)
		}
	}
}

func TestResolveStep(t *testing.T) {
	tasks := []recipe.Task{
		{ID: "t1", TaskName: "one", SubSteps: []recipe.Step{
			{ID: "s1", Text: "a", SubSteps: []recipe.Step{{ID: "s1a", Text: "a1"}}},
		}},
	}
	task, step, err := resolveStep(tasks, "1.1.1")
	if err != nil || task.ID != "t1" || step.ID != "s1a" {
		t.Fatalf("path: %v %v %v", task.ID, step.ID, err)
	}
	if _, step, err = resolveStep(tasks, "s1"); err != nil || step.Text != "a" {
		t.Fatalf("id: %v %v", step, err)
	}
	for _, bad := range []string{"1", "2.1", "1.2", "nope"} {
		if _, _, err := resolveStep(tasks, bad); err == nil {
			t.Errorf("resolveStep(%q) should fail", bad)
		}
	}
	if got, err := resolveTask(tasks, "t1"); err != nil || got.TaskName != "one" {
		t.Fatalf("resolveTask by id: %v", err)
	}
}

func TestMaskSecret(t *testing.T) {
	if got := maskSecret("abcdefghijkl"); got != "********ijkl" {
		t.Fatalf("mask = %q", got)
	}
	if got := maskSecret("short"); got != "*****" {
		t.Fatalf("mask short = %q", got)
	}
}

func TestRenderProjectTabsMarksActive(t *testing.T) {
	var buf bytes.Buffer
	projects := []recipe.TodoProject{
		{ID: "a", Name: "Home", Color: "#6366f1"},
		{ID: "b", Name: "Work", Color: "#f59e0b"},
	}
	out := renderProjectTabs(&buf, projects, "b")
	if !strings.Contains(out, "[Work]") || strings.Contains(out, "[Home]") {
		t.Fatalf("tabs = %q", out)
	}
	if strings.Contains(out, "\x1b[") {
		t.Fatal("no colour codes expected off a terminal")
	}
}

func TestRenderStatusLine(t *testing.T) {
	line := renderStatusLine("FFmpeg", statusOK, "ffmpeg 6.1", false)
	if !strings.Contains(line, "[OK] ffmpeg 6.1") || strings.Contains(line, ansiReset) {
		t.Fatalf("line = %q", line)
	}
	if colored := renderStatusLine("x", statusError, "", true); !strings.HasPrefix(colored, ansiRed) {
		t.Fatalf("colored = %q", colored)
	}
}
