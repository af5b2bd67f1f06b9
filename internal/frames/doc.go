// Package frames captures one downscaled screenshot per recipe task from a
// video source.
//
// The Extractor drives a single Video through the queue of tasks that still
// lack a screenshot. Captures are strictly sequential: each item seeks to the
// task timestamp plus a short offset, waits for the seek to complete or for a
// safety timer to fire (whichever happens first), grabs the frame, and hands
// the encoded image to the Sink before moving on. The queue is recomputed on
// every run, so re-running after an interruption only touches tasks that are
// still missing imagery.
//
// FFmpegVideo is the concrete Video used by the CLI. It probes the file with
// ffprobe and extracts frames with ffmpeg.
package frames
