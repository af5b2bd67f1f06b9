package main

import (
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"stepwise/internal/schema"
)

// parseSeconds accepts plain seconds ("95.5") or a clock ("1:35", "1:02:03").
func parseSeconds(value string) (float64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, fmt.Errorf("time is empty")
	}
	if secs, ok := schema.ClockSeconds(value); ok {
		return secs, nil
	}
	secs, err := strconv.ParseFloat(value, 64)
	if err != nil || secs < 0 || math.IsNaN(secs) || math.IsInf(secs, 0) {
		return 0, fmt.Errorf("invalid time %q (use seconds or M:SS)", value)
	}
	return secs, nil
}

// readInput reads a file, or stdin when path is "-".
func readInput(stdin io.Reader, path string) ([]byte, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("no input file given")
	}
	if path == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(path)
}

// parseIndex converts a 1-based position from the command line.
func parseIndex(value string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid position %q (use 1 or higher)", value)
	}
	return n - 1, nil
}
