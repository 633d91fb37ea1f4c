package llm

import (
	"context"
	"fmt"
	"strings"
)

const (
	pathLabel    = "File path: "
	projectLabel = "Project: "

	// MaxDescriptionChars is the length the model is asked to stay under.
	MaxDescriptionChars = 1000
	// PingPrompt is sent by connectivity checks.
	PingPrompt = "Reply 'OK'"
)

// BuildDescribePrompt assembles the request for one file description.
func BuildDescribePrompt(project, path, text string) string {
	var sb strings.Builder
	sb.WriteString("You are writing an onboarding manual for a developer who is new to this codebase.\n")
	fmt.Fprintf(&sb, "Describe in at most %d characters what the file below is for and how it relates to the rest of the project. ", MaxDescriptionChars)
	sb.WriteString("Answer with plain prose only, no markdown headings or code.\n\n")
	sb.WriteString(projectLabel + project + "\n")
	sb.WriteString(pathLabel + path + "\n")
	sb.WriteString("Content (may be truncated):\n")
	sb.WriteString(text)
	return sb.String()
}

// Describer adapts a Client to the description cache's generator contract.
type Describer struct {
	Client  Client
	Project string
}

// Describe asks the model for a short, newcomer-oriented description of path.
func (d *Describer) Describe(ctx context.Context, text, path string) (string, error) {
	out, err := d.Client.Complete(ctx, BuildDescribePrompt(d.Project, path, text))
	if err != nil {
		return "", err
	}
	return truncateRunes(out, MaxDescriptionChars), nil
}

// Ping performs a minimal round-trip to verify credentials and connectivity.
func Ping(ctx context.Context, c Client) (string, error) {
	return c.Complete(ctx, PingPrompt)
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
