package extraction

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Completer is the language-model surface the extractor depends on.
type Completer interface {
	Complete(ctx context.Context, prompt string, maxTokens int) (string, error)
}

// Extractor is the contract the pipeline coordinator drives. Transport
// and model failures come back as errors; a response that is not valid
// JSON comes back as a non-nil Unparseable with a nil error, because
// the raw text still has salvage value.
type Extractor interface {
	ExtractZones(ctx context.Context, jurisdictionID, codeText string) ([]Zone, *Unparseable, error)
	ExtractPermits(ctx context.Context, jurisdictionID, codeText string) ([]Permit, *Unparseable, error)
	ExtractFees(ctx context.Context, jurisdictionID, feeText string) ([]Fee, *Unparseable, error)
	ExtractBuildingCodes(ctx context.Context, jurisdictionID, codeText, codeType string) ([]BuildingCode, *Unparseable, error)
	GenerateQuestions(ctx context.Context, jurisdictionID string, zones []Zone, permits []Permit) ([]Question, *Unparseable, error)
	ExtractIndustryPermits(ctx context.Context, jurisdictionID, codeText, industry string) ([]IndustryPermit, *Unparseable, error)
}

// AIExtractor implements Extractor over any Completer.
type AIExtractor struct {
	completer Completer
	logger    *zap.Logger
}

var _ Extractor = (*AIExtractor)(nil)

// NewAIExtractor wires an extractor to its model backend.
func NewAIExtractor(completer Completer, logger *zap.Logger) *AIExtractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AIExtractor{completer: completer, logger: logger.Named("extractor")}
}

// parseItems decodes a model response into typed items, tolerating
// markdown code fences around the JSON.
func parseItems[T any](text string) ([]T, *Unparseable) {
	cleaned := strings.TrimSpace(text)
	cleaned = strings.ReplaceAll(cleaned, "```json\n", "")
	cleaned = strings.ReplaceAll(cleaned, "```json", "")
	cleaned = strings.ReplaceAll(cleaned, "```\n", "")
	cleaned = strings.ReplaceAll(cleaned, "```", "")

	var items []T
	if err := json.Unmarshal([]byte(cleaned), &items); err != nil {
		return nil, &Unparseable{Reason: "Parse failed", Raw: text}
	}
	return items, nil
}

func extract[T any](ctx context.Context, e *AIExtractor, kind, prompt string, maxTokens int) ([]T, *Unparseable, error) {
	text, err := e.completer.Complete(ctx, prompt, maxTokens)
	if err != nil {
		return nil, nil, fmt.Errorf("extract %s: %w", kind, err)
	}

	items, unparsed := parseItems[T](text)
	if unparsed != nil {
		e.logger.Warn("model response was not valid json",
			zap.String("kind", kind),
			zap.Int("raw_len", len(text)),
		)
		return nil, unparsed, nil
	}
	e.logger.Info("extraction complete",
		zap.String("kind", kind),
		zap.Int("items", len(items)),
	)
	return items, nil, nil
}

// ExtractZones pulls zoning districts out of zoning chapter text.
func (e *AIExtractor) ExtractZones(ctx context.Context, jurisdictionID, codeText string) ([]Zone, *Unparseable, error) {
	return extract[Zone](ctx, e, "zones", zonesPrompt(jurisdictionID, codeText), largeMaxTokens)
}

// ExtractPermits pulls permit requirements out of building chapter text.
func (e *AIExtractor) ExtractPermits(ctx context.Context, jurisdictionID, codeText string) ([]Permit, *Unparseable, error) {
	return extract[Permit](ctx, e, "permits", permitsPrompt(jurisdictionID, codeText), largeMaxTokens)
}

// ExtractFees pulls a fee schedule out of fee text.
func (e *AIExtractor) ExtractFees(ctx context.Context, jurisdictionID, feeText string) ([]Fee, *Unparseable, error) {
	return extract[Fee](ctx, e, "fees", feesPrompt(jurisdictionID, feeText), smallMaxTokens)
}

// ExtractBuildingCodes chunks code text into practical requirements.
func (e *AIExtractor) ExtractBuildingCodes(ctx context.Context, jurisdictionID, codeText, codeType string) ([]BuildingCode, *Unparseable, error) {
	return extract[BuildingCode](ctx, e, "building_codes", buildingCodesPrompt(jurisdictionID, codeText, codeType), largeMaxTokens)
}

// GenerateQuestions synthesizes resident-facing Q&A from extracted
// zones and permits.
func (e *AIExtractor) GenerateQuestions(ctx context.Context, jurisdictionID string, zones []Zone, permits []Permit) ([]Question, *Unparseable, error) {
	return extract[Question](ctx, e, "questions", questionsPrompt(jurisdictionID, zones, permits), smallMaxTokens)
}

// ExtractIndustryPermits pulls permits for one industry vertical.
func (e *AIExtractor) ExtractIndustryPermits(ctx context.Context, jurisdictionID, codeText, industry string) ([]IndustryPermit, *Unparseable, error) {
	return extract[IndustryPermit](ctx, e, "industry_permits_"+industry, industryPermitsPrompt(jurisdictionID, codeText, industry), smallMaxTokens)
}
