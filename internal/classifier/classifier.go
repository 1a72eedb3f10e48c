// Package classifier asks a language model whether an email is a job
// opportunity and which fields it carries.
package classifier

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"

	"github.com/cuongbtq/jobmail/internal/domain"
)

//go:embed prompts/email_prompt.txt
var defaultPrompt string

//go:embed prompts/response_schema.json
var responseSchema string

var schemaLoader = gojsonschema.NewStringLoader(responseSchema)

// Generator produces a JSON document for a prompt
type Generator interface {
	GenerateJSON(ctx context.Context, prompt string) (string, error)
	Close() error
}

// Config holds classifier settings
type Config struct {
	Logger    *slog.Logger
	Generator Generator
	// Prompt overrides the built-in instructions when non-empty
	Prompt string
	// Timeout bounds a single model call; zero means no limit
	Timeout time.Duration
}

// Classifier implements the pipeline's classification collaborator
type Classifier struct {
	logger    *slog.Logger
	generator Generator
	prompt    string
	timeout   time.Duration
}

// New creates a new Classifier
func New(cfg *Config) *Classifier {
	prompt := cfg.Prompt
	if strings.TrimSpace(prompt) == "" {
		prompt = defaultPrompt
	}
	return &Classifier{
		logger:    cfg.Logger,
		generator: cfg.Generator,
		prompt:    prompt,
		timeout:   cfg.Timeout,
	}
}

// Classify cleans text, sends it to the model and decodes the verdict.
// A missing generator is a configuration error; a failed call or a response
// that does not match the schema is a transport error.
func (c *Classifier) Classify(ctx context.Context, text string) (*domain.ClassificationResult, error) {
	if c.generator == nil {
		return nil, domain.NewConfigurationError("classifier", errors.New("no model client configured"))
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	raw, err := c.generator.GenerateJSON(ctx, BuildPrompt(c.prompt, text))
	if err != nil {
		if errors.Is(err, domain.ErrConfiguration) {
			return nil, err
		}
		return nil, domain.NewTransportError("classifier.generate", err)
	}

	result, err := ParseResult(raw)
	if err != nil {
		c.logger.Warn("Classifier returned an unusable response",
			slog.Any("error", err),
			slog.Int("response_bytes", len(raw)),
		)
		return nil, domain.NewTransportError("classifier.parse", err)
	}

	c.logger.Debug("Email classified",
		slog.Bool("relevant", result.Relevant),
		slog.Int("fields", len(result.Fields)),
		slog.Duration("duration", time.Since(start)),
	)
	return result, nil
}

// Close releases the underlying model client
func (c *Classifier) Close() error {
	if c.generator == nil {
		return nil
	}
	return c.generator.Close()
}

// BuildPrompt appends the cleaned email to the instructions
func BuildPrompt(instructions, emailText string) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(instructions))
	b.WriteString("\n\nEMAIL TO CLASSIFY:\n")
	b.WriteString(CleanEmail(emailText))
	b.WriteString("\n\nYou MUST return JSON ONLY. No explanation.\n")
	return b.String()
}

// ParseResult validates raw against the response schema and converts it into
// a ClassificationResult.
func ParseResult(raw string) (*domain.ClassificationResult, error) {
	raw = cleanJSONBlock(raw)
	if raw == "" {
		return nil, errors.New("empty response")
	}

	res, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewStringLoader(raw))
	if err != nil {
		return nil, fmt.Errorf("response is not valid JSON: %w", err)
	}
	if !res.Valid() {
		msgs := make([]string, 0, len(res.Errors()))
		for _, e := range res.Errors() {
			msgs = append(msgs, e.String())
		}
		return nil, fmt.Errorf("response does not match schema: %s", strings.Join(msgs, "; "))
	}

	var doc map[string]any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	relevant, _ := doc["is_relevant"].(bool)
	delete(doc, "is_relevant")

	result := &domain.ClassificationResult{
		Relevant: relevant,
		Fields:   doc,
	}
	switch id := doc[domain.FieldJobID].(type) {
	case string:
		result.SuggestedID = id
	case float64:
		result.SuggestedID = fmt.Sprintf("%.0f", id)
	}

	return result, nil
}

// cleanJSONBlock removes markdown code fences around a JSON document
func cleanJSONBlock(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}
