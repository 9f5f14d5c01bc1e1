package flash

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// SourceName identifies the upstream feed a flash came from
const SourceName = "sina_live"

// Flash represents one normalized news flash from the upstream feed.
// Ingestion fields are written once; only Analysis is ever updated.
type Flash struct {
	ID          string          `json:"flash_id"`
	Content     string          `json:"content"`
	PublishedAt *time.Time      `json:"publish_timestamp_utc,omitempty"`
	CrawledAt   time.Time       `json:"crawl_timestamp_utc"`
	Source      string          `json:"source_name"`
	Tags        []string        `json:"tags"`
	Symbols     []Symbol        `json:"associated_symbols"`
	DetailURL   string          `json:"detail_url,omitempty"`
	RawSource   json.RawMessage `json:"raw_api_response_item,omitempty"`
	Analysis    *Analysis       `json:"llm_analysis,omitempty"`

	// UpstreamID is the numeric id assigned by the feed, kept for cursor
	// tracking. ID is derived from it and never changes.
	UpstreamID int64 `json:"upstream_id"`
}

// Symbol is one instrument associated with a flash.
// Symbol codes are canonicalized to upper case at ingestion.
type Symbol struct {
	Market string `json:"market"`
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
}

// FlashID derives the stable record key from an upstream numeric id
func FlashID(upstreamID int64) string {
	return fmt.Sprintf("%s_%d", SourceName, upstreamID)
}

// CanonicalSymbol upper-cases a raw symbol code (e.g. sz000001 -> SZ000001)
func CanonicalSymbol(raw string) string {
	return strings.ToUpper(raw)
}

// AnalysisType discriminates which analysis variant is populated
type AnalysisType string

const (
	AnalysisTypeStock   AnalysisType = "stock_specific"
	AnalysisTypeMacro   AnalysisType = "macroeconomic"
	AnalysisTypeGeneral AnalysisType = "general_no_analysis"
)

// Valid reports whether the type is one of the enumerated values
func (t AnalysisType) Valid() bool {
	switch t {
	case AnalysisTypeStock, AnalysisTypeMacro, AnalysisTypeGeneral:
		return true
	}
	return false
}

// Sentiment labels the overall market tone of a flash
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

// Category buckets a flash for downstream consumers
type Category string

const (
	CategoryMajorOpportunity Category = "major_opportunity"
	CategoryIndustryTrend    Category = "industry_trend"
	CategoryPolicy           Category = "policy"
	CategoryMarketWatch      Category = "market_watch"
	CategoryOther            Category = "other"
)

// AttentionLevel grades how closely a stock-specific flash deserves watching
type AttentionLevel string

const (
	AttentionHighValue     AttentionLevel = "high_value"
	AttentionWorthWatching AttentionLevel = "worth_watching"
	AttentionLimitedImpact AttentionLevel = "limited_impact"
	AttentionPotentialRisk AttentionLevel = "potential_risk"
	AttentionNotApplicable AttentionLevel = "not_applicable"
)

// KnownSentiments, KnownCategories and KnownAttentionLevels are the
// expected provider vocabularies. Values outside them are tolerated
// (logged, not rejected) to absorb provider drift.
var (
	KnownSentiments = []Sentiment{SentimentPositive, SentimentNeutral, SentimentNegative}

	KnownCategories = []Category{
		CategoryMajorOpportunity, CategoryIndustryTrend,
		CategoryPolicy, CategoryMarketWatch, CategoryOther,
	}

	KnownAttentionLevels = []AttentionLevel{
		AttentionHighValue, AttentionWorthWatching, AttentionLimitedImpact,
		AttentionPotentialRisk, AttentionNotApplicable,
	}
)

// Analysis is the outcome of one enrichment attempt. Exactly one of
// Stock/Macro is non-nil for a successful analysis, matching Type;
// general_no_analysis carries neither.
type Analysis struct {
	Success        bool           `json:"success"`
	Error          string         `json:"error,omitempty"`
	Summary        string         `json:"summary,omitempty"`
	Sentiment      Sentiment      `json:"sentiment,omitempty"`
	Type           AnalysisType   `json:"analysis_type,omitempty"`
	Category       Category       `json:"category,omitempty"`
	SuggestedTitle string         `json:"suggested_title,omitempty"`
	Stock          *StockAnalysis `json:"stock_specific_analysis,omitempty"`
	Macro          *MacroAnalysis `json:"macro_analysis,omitempty"`
	ModelUsed      string         `json:"llm_model_used,omitempty"`
	AnalyzedAt     time.Time      `json:"analysis_timestamp_utc"`
}

// StockAnalysis is the stock_specific variant payload
type StockAnalysis struct {
	AnalyzedSymbol  string         `json:"analyzed_symbol"`
	KeyInfoPoints   []string       `json:"key_info_points"`
	PotentialImpact string         `json:"potential_impact"`
	AttentionLevel  AttentionLevel `json:"attention_level"`
	Reasoning       string         `json:"reasoning"`
}

// MacroAnalysis is the macroeconomic variant payload
type MacroAnalysis struct {
	KeyMacroPoints        []string `json:"key_macro_points"`
	PotentialMarketImpact string   `json:"potential_market_impact"`
	OutlookTendency       string   `json:"outlook_tendency"`
	Reasoning             string   `json:"reasoning"`
}

// EnforceVariant forces the analysis variant that does not match Type to
// nil. Applied before every successful persist so a stock_specific
// analysis can never carry a macro payload and vice versa.
func (a *Analysis) EnforceVariant() {
	switch a.Type {
	case AnalysisTypeStock:
		a.Macro = nil
	case AnalysisTypeMacro:
		a.Stock = nil
	default:
		a.Stock = nil
		a.Macro = nil
	}
}
