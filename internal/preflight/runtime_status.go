package preflight

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// ToolVersion reports what a media tool says about itself.
type ToolVersion struct {
	Detected bool
	Binary   string
	Version  string
}

// ProbeToolVersion runs `<binary> -version` and keeps the version token
// from the first line, e.g. "6.1.1" from "ffmpeg version 6.1.1 Copyright".
func ProbeToolVersion(ctx context.Context, binary string) ToolVersion {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return ToolVersion{}
	}
	if _, err := exec.LookPath(binary); err != nil {
		return ToolVersion{Binary: binary}
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	output, err := exec.CommandContext(ctx, binary, "-version").Output()
	if err != nil {
		return ToolVersion{Binary: binary}
	}
	return ToolVersion{Detected: true, Binary: binary, Version: parseVersionLine(string(output))}
}

func parseVersionLine(output string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(output), "\n")
	fields := strings.Fields(line)
	for i, field := range fields {
		if field == "version" && i+1 < len(fields) {
			return fields[i+1]
		}
	}
	return "unknown"
}

// Detail renders a display-friendly summary for status output.
func (v ToolVersion) Detail() string {
	if !v.Detected {
		if v.Binary == "" {
			return "not configured"
		}
		return fmt.Sprintf("%s not runnable", v.Binary)
	}
	return fmt.Sprintf("%s %s", v.Binary, v.Version)
}
