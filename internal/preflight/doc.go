// Package preflight provides readiness checks for the directories, tools and
// AI credential stepwise depends on.
//
// The CLI "stepwise doctor" command runs RunAll and renders each Result.
// Video commands also call CheckSystemDeps before opening a file so a missing
// ffmpeg is reported up front instead of as a failed frame grab.
package preflight
