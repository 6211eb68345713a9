package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"ddreport/domain/mapping"
	"ddreport/internal/errors"
	"ddreport/ports"

	"go.uber.org/zap"
)

// Facts are the scalar values listed at the top of the narrative prompt
type Facts struct {
	Organization string
	Responsible  string
	StartDate    string
	EndDate      string
}

// ExtractFacts reads the fact cells from the workbook
func ExtractFacts(wb ports.CellReader, cells mapping.FactCells) (Facts, error) {
	var facts Facts
	for _, f := range []struct {
		cell string
		dst  *string
	}{
		{cells.Organization, &facts.Organization},
		{cells.Responsible, &facts.Responsible},
		{cells.StartDate, &facts.StartDate},
		{cells.EndDate, &facts.EndDate},
	} {
		v, err := wb.CellValue(f.cell)
		if err != nil {
			return Facts{}, errors.Wrapf(err, "fact cell %s", f.cell)
		}
		*f.dst = v
	}
	return facts, nil
}

// BuildPrompt formats the facts block, a separator line and the document text
func BuildPrompt(facts Facts, documentText string) string {
	var b strings.Builder
	b.WriteString("根据以下内容生成风险评估结论：\n")
	fmt.Fprintf(&b, "支行名称: %s\n", facts.Organization)
	fmt.Fprintf(&b, "负责人: %s\n", facts.Responsible)
	fmt.Fprintf(&b, "任期: %s 至 %s\n", facts.StartDate, facts.EndDate)
	b.WriteString("------\n")
	b.WriteString(documentText)
	return b.String()
}

// NarrativeConfig selects the model used for the narrative
type NarrativeConfig struct {
	Model     string
	MaxTokens int
}

// NarrativeRequester asks the text generator for the risk assessment conclusion
type NarrativeRequester struct {
	generator ports.TextGenerator
	config    NarrativeConfig
	logger    *zap.Logger
}

// NewNarrativeRequester creates a narrative requester
func NewNarrativeRequester(generator ports.TextGenerator, config NarrativeConfig, logger *zap.Logger) *NarrativeRequester {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NarrativeRequester{generator: generator, config: config, logger: logger}
}

// Request sends one prompt and returns the generated text verbatim. A blank
// answer is reported as an error: "" never counts as a narrative.
func (n *NarrativeRequester) Request(ctx context.Context, facts Facts, documentText string) (string, error) {
	prompt := BuildPrompt(facts, documentText)
	start := time.Now()

	resp, err := n.generator.ChatCompletionWithUsage(ctx, n.config.Model, prompt, n.config.MaxTokens)
	if err != nil {
		n.logger.Warn("narrative request failed",
			zap.String("model", n.config.Model),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return "", err
	}

	if strings.TrimSpace(resp.Content) == "" {
		return "", errors.ExternalServiceError("text generation", fmt.Errorf("empty response"))
	}
	text := resp.Content

	fields := []zap.Field{
		zap.String("model", n.config.Model),
		zap.Int("prompt_chars", len([]rune(prompt))),
		zap.Int("narrative_chars", len([]rune(text))),
		zap.Duration("elapsed", time.Since(start)),
	}
	if resp.Usage != nil {
		fields = append(fields, zap.Int("total_tokens", resp.Usage.TotalTokens))
	}
	n.logger.Info("narrative generated", fields...)

	return text, nil
}
