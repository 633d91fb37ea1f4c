package llm

import (
	"context"
	"fmt"
	"strings"
)

// FakeClient returns deterministic text for offline runs and tests.
type FakeClient struct{}

func NewFakeClient() *FakeClient { return &FakeClient{} }

func (f *FakeClient) Name() string { return "FakeLLM" }
func (f *FakeClient) Close() error { return nil }

func (f *FakeClient) Complete(_ context.Context, prompt string) (string, error) {
	if path := promptField(prompt, pathLabel); path != "" {
		return fmt.Sprintf("Placeholder description for %s.", path), nil
	}
	return "OK", nil
}

func promptField(prompt, label string) string {
	for _, line := range strings.Split(prompt, "\n") {
		if v, ok := strings.CutPrefix(line, label); ok {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
