package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"flashfeed/internal/domain/flash"
	"flashfeed/pkg/errors"
	"flashfeed/pkg/logger"
)

const systemPrompt = `You are a professional financial analysis assistant. Your task is to analyze the provided news flash, together with any associated stock symbols, and return a structured assessment.

Return your analysis strictly as the following JSON, parseable as-is, with no extra text or Markdown markers before or after it:
{
  "suggested_title": "a concise attention-grabbing title derived from the flash (max 20 words)",
  "summary": "a brief summary of the flash (max 80 words)",
  "sentiment": "overall market sentiment (options: positive, neutral, negative)",
  "analysis_type": "analysis type (options: stock_specific, macroeconomic, general_no_analysis)",
  "category": "flash category (options: major_opportunity, industry_trend, policy, market_watch, other)",
  "stock_specific_analysis": {
    "analyzed_symbol": "code of the analyzed stock (e.g. SZ000001) or \"not_applicable\"",
    "key_info_points": ["1-3 core points from the flash directly relevant to this stock"],
    "potential_impact": "short description of the likely positive or negative impact on the stock",
    "attention_level": "overall attention recommendation (options: high_value, worth_watching, limited_impact, potential_risk, not_applicable)",
    "reasoning": "combined rationale for the stock assessment (max 100 words)"
  },
  "macro_analysis": {
    "key_macro_points": ["1-3 core macro or industry points from the flash"],
    "potential_market_impact": "short description of the likely impact on the broader market or specific sectors",
    "outlook_tendency": "outlook description (e.g. broadly positive, sector opportunity, short-term caution, policy driven)",
    "reasoning": "combined rationale for the macro assessment (max 100 words)"
  }
}
---
Task instructions:
1. When an "Associated symbols" list is provided, pick the single stock most affected by the flash, set analysis_type to stock_specific, fill every field of stock_specific_analysis (use "not_applicable" or "insufficient information" where needed) and set macro_analysis to null.
2. When no symbols are provided, or the flash is clearly about macroeconomics, policy or broad industry trends, set analysis_type to macroeconomic, fill every field of macro_analysis and set stock_specific_analysis to null.
3. When the flash is too short, vague or speculative to support any financial interpretation, set analysis_type to general_no_analysis and set both stock_specific_analysis and macro_analysis to null; still provide summary, sentiment and category.`

// Analyzer turns a flash into an Analysis by prompting a ChatProvider
// and validating the response shape.
type Analyzer struct {
	provider ChatProvider
	log      *logger.Logger
}

// NewAnalyzer creates a new analyzer
func NewAnalyzer(provider ChatProvider) *Analyzer {
	return &Analyzer{
		provider: provider,
		log:      logger.Get().With("component", "analyzer"),
	}
}

// Model returns the provider model identifier, used to stamp provenance
// on analyses built outside the provider (skips, exhausted retries).
func (a *Analyzer) Model() string {
	return a.provider.Model()
}

// providerAnalysis is the raw response shape expected from the provider
type providerAnalysis struct {
	SuggestedTitle string               `json:"suggested_title"`
	Summary        string               `json:"summary"`
	Sentiment      string               `json:"sentiment"`
	AnalysisType   string               `json:"analysis_type"`
	Category       string               `json:"category"`
	Stock          *flash.StockAnalysis `json:"stock_specific_analysis"`
	Macro          *flash.MacroAnalysis `json:"macro_analysis"`
}

// Analyze prompts the provider with the flash content and validates the
// response. On success the returned Analysis has Success=true and
// exactly the variant matching its type populated. On failure the error
// is non-nil; when the response was at least partially parseable the
// partial Analysis is also returned so callers can log what arrived.
func (a *Analyzer) Analyze(ctx context.Context, content string, symbols []flash.Symbol) (*flash.Analysis, error) {
	raw, err := a.provider.Chat(ctx, systemPrompt, buildUserPrompt(content, symbols))
	if err != nil {
		return nil, err
	}

	result, err := a.parseResponse(raw)
	if result != nil {
		result.ModelUsed = a.provider.Model()
		result.AnalyzedAt = time.Now().UTC()
	}
	return result, err
}

// parseResponse validates the raw provider output, in order: fence
// strip, JSON parse, required top-level fields, analysis_type enum,
// variant presence. Unknown sentiment/category/attention values are
// logged but tolerated.
func (a *Analyzer) parseResponse(raw string) (*flash.Analysis, error) {
	cleaned := stripCodeFence(raw)
	if cleaned == "" {
		return nil, errors.NewValidationError("response empty after stripping markdown fences", raw)
	}

	var parsed providerAnalysis
	if err := json.Unmarshal([]byte(cleaned), &parsed); err != nil {
		return nil, errors.NewValidationError(fmt.Sprintf("response is not valid JSON: %v", err), raw)
	}

	partial := &flash.Analysis{
		Success:        false,
		Summary:        parsed.Summary,
		Sentiment:      flash.Sentiment(parsed.Sentiment),
		Type:           flash.AnalysisType(parsed.AnalysisType),
		Category:       flash.Category(parsed.Category),
		SuggestedTitle: parsed.SuggestedTitle,
	}

	if parsed.Summary == "" || parsed.Sentiment == "" || parsed.AnalysisType == "" || parsed.Category == "" {
		return partial, errors.NewValidationError(
			"response missing required fields (summary, sentiment, analysis_type, category)", cleaned)
	}

	if !partial.Type.Valid() {
		return partial, errors.NewValidationError(
			fmt.Sprintf("invalid analysis_type %q", parsed.AnalysisType), cleaned)
	}

	// Provider drift tolerance: off-vocabulary labels pass with a warning
	if !slices.Contains(flash.KnownSentiments, partial.Sentiment) {
		a.log.Warnf("Provider returned unknown sentiment %q", parsed.Sentiment)
	}
	if !slices.Contains(flash.KnownCategories, partial.Category) {
		a.log.Warnf("Provider returned unknown category %q", parsed.Category)
	}

	switch partial.Type {
	case flash.AnalysisTypeStock:
		if parsed.Stock == nil {
			return partial, errors.NewValidationError(
				"analysis_type is stock_specific but stock_specific_analysis is null", cleaned)
		}
		if !slices.Contains(flash.KnownAttentionLevels, parsed.Stock.AttentionLevel) {
			a.log.Warnf("Provider returned unknown attention_level %q", parsed.Stock.AttentionLevel)
		}
	case flash.AnalysisTypeMacro:
		if parsed.Macro == nil {
			return partial, errors.NewValidationError(
				"analysis_type is macroeconomic but macro_analysis is null", cleaned)
		}
	}

	result := partial
	result.Success = true
	result.Stock = parsed.Stock
	result.Macro = parsed.Macro
	result.EnforceVariant()

	return result, nil
}

// buildUserPrompt assembles the per-flash prompt
func buildUserPrompt(content string, symbols []flash.Symbol) string {
	var b strings.Builder
	b.WriteString("News flash: ")
	b.WriteString(content)
	b.WriteString("\n")

	if len(symbols) > 0 {
		b.WriteString("Associated symbols:\n")
		for _, s := range symbols {
			fmt.Fprintf(&b, "- %s (%s)\n", s.Symbol, s.Name)
		}
		b.WriteString("\nFocus the analysis on the listed symbol most affected by the flash.")
	} else {
		b.WriteString("(No associated symbols; favor a macro, policy or industry level analysis where applicable.)")
	}

	return b.String()
}

// stripCodeFence removes an optional Markdown code fence wrapping the
// response body.
func stripCodeFence(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}

	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
