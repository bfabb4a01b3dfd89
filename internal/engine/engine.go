// Package engine talks to the Gemini narrative generator.
package engine

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"strings"
	"text/template"

	"github.com/google/generative-ai-go/genai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"google.golang.org/api/option"

	"github.com/tatianab/text-engine/internal/models"
)

//go:embed prompts/generate_world.txt
var generateWorldPrompt string

//go:embed prompts/narrate.txt
var narratePrompt string

//go:embed prompts/summarize_history.txt
var summarizeHistoryPrompt string

var (
	generateWorldTmpl    = template.Must(template.New("generate_world").Parse(generateWorldPrompt))
	narrateTmpl          = template.Must(template.New("narrate").Parse(narratePrompt))
	summarizeHistoryTmpl = template.Must(template.New("summarize_history").Parse(summarizeHistoryPrompt))
)

// DefaultModel is the Gemini model used when none is configured.
const DefaultModel = "gemini-2.5-flash"

var tracer = otel.Tracer("github.com/tatianab/text-engine/internal/engine")

type Engine struct {
	client *genai.Client
	model  *genai.GenerativeModel
	prose  *genai.GenerativeModel
	log    *slog.Logger
}

// Option configures an Engine.
type Option func(*engineOptions)

type engineOptions struct {
	model string
	log   *slog.Logger
}

// WithModel selects the Gemini model.
func WithModel(name string) Option {
	return func(o *engineOptions) { o.model = name }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *engineOptions) { o.log = l }
}

func NewEngine(ctx context.Context, apiKey string, opts ...Option) (*Engine, error) {
	o := engineOptions{model: DefaultModel, log: slog.Default()}
	for _, fn := range opts {
		fn(&o)
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}

	model := client.GenerativeModel(o.model)
	model.ResponseMIMEType = "application/json"
	return &Engine{
		client: client,
		model:  model,
		prose:  client.GenerativeModel(o.model),
		log:    o.log,
	}, nil
}

func (e *Engine) Close() {
	e.client.Close()
}

// Generate renders req into a prompt and parses the JSON answer.
func (e *Engine) Generate(ctx context.Context, req *Request) (*Response, error) {
	ctx, span := tracer.Start(ctx, "engine.Generate")
	defer span.End()
	span.SetAttributes(attribute.String("story", req.StoryID), attribute.String("kind", string(req.Kind)))

	prompt, err := render(narrateTmpl, newPromptData(req))
	if err != nil {
		return nil, err
	}
	text, err := e.generateText(ctx, e.model, prompt)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	resp, err := ParseResponse(text)
	if err != nil {
		e.log.Warn("generator output rejected", "kind", req.Kind, "err", err, "output", text)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return resp, nil
}

// GenerateSeed asks the generator for a whole new world in seed format.
func (e *Engine) GenerateSeed(ctx context.Context, hint string) (*models.WorldSeed, error) {
	ctx, span := tracer.Start(ctx, "engine.GenerateSeed")
	defer span.End()

	prompt, err := render(generateWorldTmpl, struct{ Hint string }{Hint: hint})
	if err != nil {
		return nil, err
	}
	text, err := e.generateText(ctx, e.prose, prompt)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	cleanYAML := strings.TrimSpace(text)
	cleanYAML = strings.TrimPrefix(cleanYAML, "```yaml")
	cleanYAML = strings.TrimPrefix(cleanYAML, "```")
	cleanYAML = strings.TrimSuffix(cleanYAML, "```")

	seed, err := models.ParseSeed([]byte(cleanYAML))
	if err != nil {
		return nil, fmt.Errorf("failed to parse world YAML: %w\nOutput was: %s", err, cleanYAML)
	}
	return seed, nil
}

// Summarize folds lines into summary, returning the new summary.
func (e *Engine) Summarize(ctx context.Context, summary string, lines []string) (string, error) {
	if len(lines) == 0 {
		return summary, nil
	}
	ctx, span := tracer.Start(ctx, "engine.Summarize")
	defer span.End()

	prompt, err := render(summarizeHistoryTmpl, struct {
		CurrentSummary string
		NewEvents      string
	}{
		CurrentSummary: summary,
		NewEvents:      strings.Join(lines, "\n"),
	})
	if err != nil {
		return "", err
	}
	text, err := e.generateText(ctx, e.prose, prompt)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

func (e *Engine) generateText(ctx context.Context, model *genai.GenerativeModel, prompt string) (string, error) {
	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", err
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("no content returned from Gemini")
	}

	part := resp.Candidates[0].Content.Parts[0]
	text, ok := part.(genai.Text)
	if !ok {
		return "", fmt.Errorf("unexpected response type from Gemini")
	}
	return string(text), nil
}

func render(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

type promptData struct {
	Kind       string
	RoomName   string
	RoomText   string
	Atmosphere string
	Object     string
	ObjectText string
	Character  string
	Topic      string
	Ability    string
	Direction  string
	Input      string
	Inventory  []string
	History    []string
	Traits     string
}

func newPromptData(req *Request) promptData {
	d := promptData{
		Kind:      string(req.Kind),
		Character: req.Character,
		Topic:     req.Topic,
		Ability:   req.Ability,
		Direction: string(req.Direction),
		Input:     req.Input,
		Inventory: req.Inventory,
		History:   req.History,
		Traits:    traitList(),
	}
	if r := req.Room; r != nil {
		d.RoomName = r.Name
		d.RoomText = r.Description
		d.Atmosphere = atmosphereLine(r.Atmosphere)
	}
	if o := req.Object; o != nil {
		d.Object = o.Name
		d.ObjectText = o.Description
	}
	return d
}

func atmosphereLine(a models.Atmosphere) string {
	var parts []string
	for _, kv := range [][2]string{
		{"lighting", a.Lighting}, {"sound", a.Sound}, {"smell", a.Smell},
		{"temperature", a.Temperature}, {"mood", a.Mood},
	} {
		if kv[1] != "" {
			parts = append(parts, kv[0]+": "+kv[1])
		}
	}
	if len(a.Tags) > 0 {
		parts = append(parts, "tags: "+strings.Join(a.Tags, ", "))
	}
	return strings.Join(parts, "; ")
}

func traitList() string {
	names := make([]string, len(models.Traits))
	for i, t := range models.Traits {
		names[i] = string(t)
	}
	return strings.Join(names, ", ")
}
