// Package ai is the content generator adapter: it renders structured prompt
// specifications, sends them to one of a closed set of backends and reports
// every failure as a classified GenerationError.
package ai

import (
	"context"
	"fmt"
	"strings"
)

// TaskType identifies what a generation request is for.
type TaskType int

const (
	TaskPlan TaskType = iota
	TaskInsight
)

func (t TaskType) String() string {
	switch t {
	case TaskPlan:
		return "plan"
	case TaskInsight:
		return "insight"
	default:
		return "unknown"
	}
}

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest is the input to a provider call.
type CompletionRequest struct {
	Messages    []Message `json:"messages"`
	Model       string    `json:"model,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature,omitempty"`
	Task        TaskType  `json:"task,omitempty"`
	// JSON asks the provider for a JSON-only response where the API supports it.
	JSON bool `json:"json,omitempty"`
	// Hints carries the structured parameters behind the prompt for providers
	// that answer from rules instead of reading prose.
	Hints map[string]string `json:"hints,omitempty"`
}

// CompletionResponse is the output from a provider call.
type CompletionResponse struct {
	Content      string `json:"content"`
	Model        string `json:"model"`
	InputTokens  int    `json:"input_tokens"`
	OutputTokens int    `json:"output_tokens"`
}

// TotalTokens returns the sum of input and output tokens.
func (r CompletionResponse) TotalTokens() int {
	return r.InputTokens + r.OutputTokens
}

// Provider produces text for a prompt. Networked providers, static responders
// and test doubles all implement it.
type Provider interface {
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error)
}

// PromptSpec is a structured request for generated content.
type PromptSpec struct {
	Task         TaskType
	Subject      string
	Instructions string
	Constraints  []string
	// SchemaHint is an example of the JSON document the caller expects back.
	SchemaHint string
	Hints      map[string]string
	MaxTokens  int
}

const systemPrompt = `You are a study-planning assistant. Answer with a single JSON document and nothing else: no prose, no markdown fences.`

// Render returns the user prompt text for the spec.
func (s PromptSpec) Render() string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(s.Instructions))
	if len(s.Constraints) > 0 {
		b.WriteString("\n\nConstraints:\n")
		for _, c := range s.Constraints {
			fmt.Fprintf(&b, "- %s\n", c)
		}
	}
	if s.SchemaHint != "" {
		b.WriteString("\nReturn JSON in exactly this shape:\n")
		b.WriteString(strings.TrimSpace(s.SchemaHint))
	}
	return b.String()
}

// Request converts the spec into a provider request.
func (s PromptSpec) Request() CompletionRequest {
	hints := make(map[string]string, len(s.Hints)+1)
	for k, v := range s.Hints {
		hints[k] = v
	}
	if s.Subject != "" {
		hints["subject"] = s.Subject
	}
	return CompletionRequest{
		Messages: []Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: s.Render()},
		},
		MaxTokens: s.MaxTokens,
		Task:      s.Task,
		JSON:      true,
		Hints:     hints,
	}
}

// RawContent is the unparsed text produced by a backend.
type RawContent struct {
	Text     string
	Backend  Backend
	Provider string
	Model    string
}
