package ai

import (
	"fmt"
	"strings"

	"stepwise/internal/recipe"
)

const analysisPrompt = `You turn source material into a practical, hierarchical action plan.

Return ONLY a JSON array. Each element must be an object with:
  "task_name": short imperative title,
  "timestamp_seconds": number of seconds into the source where the task starts (0 for text),
  "description": one or two sentences explaining the task,
  "sub_steps": array of 3 to 8 short imperative strings.

Order tasks chronologically. Do not wrap the array in prose or code fences.`

const subStepPrompt = `Break the following item into between 3 and 8 smaller, concrete actions.
Return ONLY a JSON array of strings.`

const searchPrompt = `Suggest search queries that would find high quality tutorials on the topic below.
Return ONLY a JSON array of 3 to 6 query strings.`

func buildAnalysisPrompt(req AnalysisRequest) string {
	var b strings.Builder
	b.WriteString(analysisPrompt)
	b.WriteString("\n\n")
	if title := strings.TrimSpace(req.Title); title != "" {
		fmt.Fprintf(&b, "Title: %s\n", title)
	}
	switch req.ProjectType {
	case recipe.ProjectVideo:
		b.WriteString("Source: video transcript with timing.\n")
		if req.DurationSeconds > 0 {
			fmt.Fprintf(&b, "Video length: %.0f seconds. No timestamp may exceed it.\n", req.DurationSeconds)
		}
	default:
		b.WriteString("Source: plain text. Use 0 for every timestamp_seconds.\n")
	}
	b.WriteString("\n---\n")
	b.WriteString(req.Transcript)
	return b.String()
}

func buildSubStepPrompt(req SubStepRequest) string {
	var b strings.Builder
	b.WriteString(subStepPrompt)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Task: %s\n", strings.TrimSpace(req.TaskName))
	if desc := strings.TrimSpace(req.Description); desc != "" {
		fmt.Fprintf(&b, "Context: %s\n", desc)
	}
	if step := strings.TrimSpace(req.StepText); step != "" {
		fmt.Fprintf(&b, "Break down this step: %s\n", step)
	}
	return b.String()
}

func buildSearchPrompt(req SearchRequest) string {
	var b strings.Builder
	b.WriteString(searchPrompt)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Topic: %s\n", strings.TrimSpace(req.Topic))
	if platform := strings.TrimSpace(req.Platform); platform != "" {
		fmt.Fprintf(&b, "Platform: %s\n", platform)
	}
	return b.String()
}
