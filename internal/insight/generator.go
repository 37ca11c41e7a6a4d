package insight

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	"github.com/p-n-ai/pai-planner/internal/ai"
	"github.com/p-n-ai/pai-planner/internal/audit"
	"github.com/p-n-ai/pai-planner/internal/plan"
)

// Annotation block delimiters.
const (
	BlockStart = "[AI Insight]"
	BlockEnd   = "[/AI Insight]"
)

// Insight is the generated tagging of a document.
type Insight struct {
	Topics   []string `json:"topics"`
	Keywords []string `json:"keywords"`
	Level    string   `json:"level"`
	Summary  string   `json:"summary"`
}

const insightSchema = `{
  "type": "object",
  "required": ["topics", "keywords", "level", "summary"],
  "properties": {
    "topics":   {"type": "array", "items": {"type": "string"}},
    "keywords": {"type": "array", "items": {"type": "string"}},
    "level":    {"type": "string"},
    "summary":  {"type": "string"}
  }
}`

var compiledSchema = sync.OnceValues(func() (*gojsonschema.Schema, error) {
	return gojsonschema.NewSchema(gojsonschema.NewStringLoader(insightSchema))
})

// ParseInsight reads generator output as an Insight.
func ParseInsight(raw string) (Insight, error) {
	doc, ok := plan.ExtractJSON(raw)
	if !ok {
		return Insight{}, fmt.Errorf("no JSON document found")
	}
	schema, err := compiledSchema()
	if err != nil {
		return Insight{}, fmt.Errorf("compile insight schema: %w", err)
	}
	result, err := schema.Validate(gojsonschema.NewStringLoader(doc))
	if err != nil {
		return Insight{}, err
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return Insight{}, fmt.Errorf("insight schema: %s", strings.Join(msgs, "; "))
	}
	var ins Insight
	if err := json.Unmarshal([]byte(doc), &ins); err != nil {
		return Insight{}, err
	}
	return ins, nil
}

// Block renders an insight as a delimited annotation.
func Block(ins Insight) string {
	var b strings.Builder
	b.WriteString(BlockStart + "\n")
	if len(ins.Topics) > 0 {
		fmt.Fprintf(&b, "Topics: %s\n", strings.Join(ins.Topics, ", "))
	}
	if len(ins.Keywords) > 0 {
		fmt.Fprintf(&b, "Keywords: %s\n", strings.Join(ins.Keywords, ", "))
	}
	if ins.Level != "" {
		fmt.Fprintf(&b, "Level: %s\n", ins.Level)
	}
	if ins.Summary != "" {
		fmt.Fprintf(&b, "Summary: %s\n", strings.TrimSpace(ins.Summary))
	}
	b.WriteString(BlockEnd)
	return b.String()
}

// PlaceholderBlock is written when no insight could be generated.
func PlaceholderBlock(d Document) string {
	subject := strings.TrimSpace(d.Subject)
	if subject == "" {
		subject = "general"
	}
	return fmt.Sprintf("%s\nAutomatic analysis is not available yet. Subject: %s.\n%s", BlockStart, subject, BlockEnd)
}

// Merge replaces any earlier annotation block in description with block and
// keeps the human-written text around it. Only a complete start/end pair is
// treated as a block; a lone marker is part of the human text.
func Merge(description, block string) string {
	human := description
	for from := 0; from < len(human); {
		end := strings.Index(human[from:], BlockEnd)
		if end < 0 {
			break
		}
		end += from
		start := strings.LastIndex(human[from:end], BlockStart)
		if start < 0 {
			from = end + len(BlockEnd)
			continue
		}
		start += from
		before := strings.TrimRight(human[:start], separator)
		after := strings.TrimLeft(human[end+len(BlockEnd):], separator)
		switch {
		case before == "":
			human = after
		case after == "":
			human = before
		default:
			human = before + "\n\n" + after
		}
		from = len(before)
	}
	if strings.TrimSpace(human) == "" {
		return block
	}
	return human + "\n\n" + block
}

const separator = " \t\r\n"

// Generator annotates documents through the content generator.
type Generator struct {
	gen     plan.Generator
	docs    Store
	backend ai.Backend
	events  audit.Logger
}

// GeneratorOption configures a Generator.
type GeneratorOption func(*Generator)

// WithBackend selects the backend used for annotation.
func WithBackend(b ai.Backend) GeneratorOption {
	return func(g *Generator) { g.backend = b }
}

// WithAuditLogger records a document_annotated event per annotation.
func WithAuditLogger(l audit.Logger) GeneratorOption {
	return func(g *Generator) { g.events = l }
}

func NewGenerator(gen plan.Generator, docs Store, opts ...GeneratorOption) *Generator {
	g := &Generator{gen: gen, docs: docs, backend: ai.BackendPrimary, events: audit.Nop{}}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Annotate tags the document and stores the merged description. Generation
// and parse failures write the placeholder block instead of an error.
func (g *Generator) Annotate(ctx context.Context, documentID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	doc, err := g.docs.Get(ctx, documentID)
	if err != nil {
		return "", err
	}

	block, generated := g.block(ctx, doc)
	if err := ctx.Err(); err != nil {
		return "", err
	}

	desc := Merge(doc.Description, block)
	err = plan.Retry(ctx, "annotate document", 0, func() error {
		return g.docs.SetDescription(ctx, doc.ID, desc)
	})
	if err != nil {
		return "", err
	}

	audit.Record(ctx, g.events, audit.Event{
		UserID: doc.UserID,
		Type:   audit.DocumentAnnotated,
		Data:   map[string]any{"document_id": doc.ID, "generated": generated},
	})
	return desc, nil
}

func (g *Generator) block(ctx context.Context, doc Document) (string, bool) {
	raw, err := g.gen.Generate(ctx, PromptFor(doc), g.backend)
	if err != nil {
		kind, _ := ai.KindOf(err)
		slog.Warn("document insight generation failed", "document_id", doc.ID, "kind", kind.String(), "error", err)
		return PlaceholderBlock(doc), false
	}
	ins, err := ParseInsight(raw.Text)
	if err != nil {
		slog.Warn("unreadable document insight", "document_id", doc.ID, "error", err)
		return PlaceholderBlock(doc), false
	}
	return Block(ins), true
}

// PromptFor builds the insight request from the document's metadata.
func PromptFor(d Document) ai.PromptSpec {
	desc := strings.TrimSpace(Merge(d.Description, ""))
	return ai.PromptSpec{
		Task:    ai.TaskInsight,
		Subject: d.Subject,
		Instructions: fmt.Sprintf(
			"Analyse this study document. Title: %q. Subject: %q. Description: %q. Identify the main topics, keywords, difficulty level and a short summary.",
			d.Title, d.Subject, desc,
		),
		Constraints: []string{
			"level is one of beginner, intermediate, advanced",
			"summary is at most three sentences",
		},
		SchemaHint: `{"topics": ["..."], "keywords": ["..."], "level": "intermediate", "summary": "..."}`,
		MaxTokens:  1024,
	}
}
