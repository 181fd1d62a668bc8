// Package claude summarizes free-text submissions with Claude.
package claude

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/classvote/api/internal/config"
	"github.com/classvote/api/internal/core/domain"
	"github.com/classvote/api/internal/core/i18n"
	"github.com/classvote/api/internal/core/ports"
	"go.uber.org/zap"
)

const toolName = "record_summary"

var ErrNoSummary = errors.New("model returned no summary")

type Summarizer struct {
	client    anthropic.Client
	model     string
	maxTokens int64
	lang      i18n.Lang
	log       *zap.Logger
}

var _ ports.Summarizer = (*Summarizer)(nil)

func NewSummarizer(cfg config.LLMConfig, lang i18n.Lang, log *zap.Logger) *Summarizer {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}

	return &Summarizer{
		client:    anthropic.NewClient(opts...),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		lang:      lang,
		log:       log,
	}
}

func (s *Summarizer) Summarize(ctx context.Context, input ports.SummarizeInput) (*ports.SummarizeOutput, error) {
	p := promptFor(s.lang)

	tool := anthropic.ToolParam{
		Name:        toolName,
		Description: anthropic.String(p.toolDescription),
		InputSchema: anthropic.ToolInputSchemaParam{
			Properties: map[string]any{
				"summary": map[string]any{
					"type":        "string",
					"description": p.summaryDescription,
				},
				"themes": map[string]any{
					"type":        "array",
					"items":       map[string]any{"type": "string"},
					"maxItems":    domain.MaxSummaryThemes,
					"description": p.themesDescription,
				},
			},
			Required: []string{"summary", "themes"},
		},
	}

	msg, err := s.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(s.model),
		MaxTokens: s.maxTokens,
		System:    []anthropic.TextBlockParam{{Text: p.system}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(buildPrompt(p, input))),
		},
		Tools:      []anthropic.ToolUnionParam{{OfTool: &tool}},
		ToolChoice: anthropic.ToolChoiceUnionParam{OfTool: &anthropic.ToolChoiceToolParam{Name: toolName}},
	})
	if err != nil {
		return nil, fmt.Errorf("llm api call for %q: %w", input.Title, err)
	}

	out, err := parseOutput(msg.Content)
	if err != nil {
		return nil, fmt.Errorf("parse llm output for %q: %w", input.Title, err)
	}

	s.log.Debug("summary generated",
		zap.String("model", s.model),
		zap.Int64("input_tokens", msg.Usage.InputTokens),
		zap.Int64("output_tokens", msg.Usage.OutputTokens),
	)
	return out, nil
}

// parseOutput reads the forced tool call. A plain text answer carrying a JSON
// object is accepted as well.
func parseOutput(blocks []anthropic.ContentBlockUnion) (*ports.SummarizeOutput, error) {
	var text string
	for _, block := range blocks {
		switch block.Type {
		case "tool_use":
			if block.Name != toolName {
				continue
			}
			return decodeOutput(block.Input)
		case "text":
			text += block.Text
		}
	}

	if text == "" {
		return nil, ErrNoSummary
	}
	jsonStr, err := extractJSON(text)
	if err != nil {
		return nil, err
	}
	return decodeOutput([]byte(jsonStr))
}

func decodeOutput(raw []byte) (*ports.SummarizeOutput, error) {
	var out ports.SummarizeOutput
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode summary: %w", err)
	}
	if strings.TrimSpace(out.Summary) == "" {
		return nil, ErrNoSummary
	}
	if out.Themes == nil {
		out.Themes = []string{}
	}
	return &out, nil
}

// extractJSON finds the first complete JSON object in a string.
func extractJSON(s string) (string, error) {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end == -1 || end <= start {
		return "", fmt.Errorf("no JSON object found in response")
	}
	return s[start : end+1], nil
}
